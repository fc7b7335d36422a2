package v1

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/upload"
)

type trackPhotoRequest struct {
	PatientID   string         `json:"patientId" binding:"required"`
	TempPath    string         `json:"tempPath" binding:"required"`
	FileName    string         `json:"fileName"`
	FileSize    int64          `json:"fileSize" binding:"min=0"`
	ContentType string         `json:"contentType"`
	UploadID    string         `json:"uploadId"`
	Metadata    map[string]any `json:"metadata"`
}

type repathPhotoRequest struct {
	PlaceholderID string `json:"placeholderId" binding:"required"`
	PatientID     string `json:"patientId" binding:"required"`
}

type cleanupStaleRequest struct {
	OlderThanHours int `json:"olderThanHours" binding:"min=0"`
}

type photoStatusResponse struct {
	PatientID string               `json:"patientId"`
	Active    bool                 `json:"active"`
	Uploads   []*photo.PhotoUpload `json:"uploads"`
}

// uploadPhoto accepts multipart/form-data with a "file" part and a
// "patientId" field. The patient id may be a temp-<millis> placeholder.
func (h *Handler) uploadPhoto(c *gin.Context) {
	file, err := h.readMultipartFile(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid multipart body", nil)
		return
	}

	caller := callerFrom(c)
	res, err := h.svc.Uploads.Upload(c.Request.Context(), upload.Request{
		PatientID:  c.PostForm("patientId"),
		UploadedBy: caller.UserID,
		File:       file,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, res)
}

// readMultipartFile returns a nil file when the form has no "file" part so
// that validation reports NO_FILE. At most maxUploadBytes+1 bytes are read.
func (h *Handler) readMultipartFile(c *gin.Context) (*upload.File, error) {
	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening form file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading form file: %w", err)
	}

	return &upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}, nil
}

func (h *Handler) cancelUpload(c *gin.Context) {
	patientID := c.Param("patientId")
	if !h.svc.Uploads.Cancel(c.Request.Context(), patientID) {
		respondError(c, http.StatusNotFound, "no active upload for patient", nil)
		return
	}
	h.log.Info("upload cancelled by request",
		zap.String("patient_id", patientID),
		zap.String("user_id", callerFrom(c).UserID),
	)
	c.JSON(http.StatusOK, APIResponse[any]{Data: gin.H{"patientId": patientID, "cancelled": true}, Message: "upload cancelled"})
}

func (h *Handler) listActiveUploads(c *gin.Context) {
	respondOK(c, h.svc.Uploads.Active())
}

func (h *Handler) trackPhoto(c *gin.Context) {
	var req trackPhotoRequest
	if !bindJSON(c, &req) {
		return
	}

	caller := callerFrom(c)
	rec, err := h.svc.Photos.Track(c.Request.Context(), &photo.TrackCommand{
		PatientID:   req.PatientID,
		TempPath:    req.TempPath,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ContentType: req.ContentType,
		UploadID:    req.UploadID,
		UploadedBy:  caller.UserID,
		Metadata:    req.Metadata,
	}, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, rec)
}

func (h *Handler) repathPhoto(c *gin.Context) {
	var req repathPhotoRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Photos.Repath(c.Request.Context(), req.PlaceholderID, req.PatientID, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handler) cleanupPhoto(c *gin.Context) {
	rec, err := h.svc.Photos.Cleanup(c.Request.Context(), c.Param("uploadId"), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rec)
}

func (h *Handler) photoStatus(c *gin.Context) {
	patientID := c.Param("patientId")
	uploads, err := h.svc.Photos.Status(c.Request.Context(), patientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, photoStatusResponse{
		PatientID: patientID,
		Active:    h.svc.Uploads.IsActive(patientID),
		Uploads:   uploads,
	})
}

// cleanupStalePhotos accepts an optional JSON body; an empty body uses the
// configured age.
func (h *Handler) cleanupStalePhotos(c *gin.Context) {
	var req cleanupStaleRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	maxAge := h.staleUploadAge
	if req.OlderThanHours > 0 {
		maxAge = time.Duration(req.OlderThanHours) * time.Hour
	}

	n, err := h.svc.Photos.CleanupStale(c.Request.Context(), maxAge, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"cleaned": n, "olderThan": maxAge.String()})
}
