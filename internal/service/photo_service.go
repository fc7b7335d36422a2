package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/upload"
)

// PhotoService keeps the server-side record of uploaded patient photos and
// moves them from placeholder paths to the real patient once it exists.
type PhotoService struct {
	repo     photo.Repository
	patients patient.Repository
	objects  upload.ObjectStore
	auditSvc *AuditService
	log      *zap.Logger
	obs      Observer
	now      func() time.Time
}

var _ upload.Tracker = (*PhotoService)(nil)

func NewPhotoService(
	repo photo.Repository,
	patients patient.Repository,
	objects upload.ObjectStore,
	auditSvc *AuditService,
	log *zap.Logger,
	obs Observer,
) *PhotoService {
	return &PhotoService{
		repo:     repo,
		patients: patients,
		objects:  objects,
		auditSvc: auditSvc,
		log:      log,
		obs:      observerOrNop(obs),
		now:      time.Now,
	}
}

func (s *PhotoService) Track(ctx context.Context, cmd *photo.TrackCommand, caller Caller) (*photo.PhotoUpload, error) {
	var errs []string
	if strings.TrimSpace(cmd.PatientID) == "" {
		errs = append(errs, "patientId is required")
	}
	if strings.TrimSpace(cmd.TempPath) == "" {
		errs = append(errs, "tempPath is required")
	}
	if err := validationError(errs); err != nil {
		return nil, err
	}
	if cmd.UploadedBy == "" {
		cmd.UploadedBy = caller.actor()
	}

	u, err := s.repo.TrackPhotoUpload(ctx, cmd.ToPhotoUpload(s.now().UTC()))
	if err != nil {
		s.log.Error("failed to track photo upload", zap.String("temp_path", cmd.TempPath), zap.Error(err))
		return nil, fmt.Errorf("tracking photo upload: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionUpload,
		EntityType: photo.EntityType,
		EntityID:   u.ID,
		Changes: map[string]any{
			"patientId": u.PatientID,
			"tempPath":  u.TempPath,
			"uploadId":  u.UploadID,
		},
	})

	return u, nil
}

// TrackUpload records an upload reported by the upload manager.
func (s *PhotoService) TrackUpload(ctx context.Context, n upload.Notification) error {
	_, err := s.Track(ctx, &photo.TrackCommand{
		PatientID:   n.PatientID,
		TempPath:    n.TempPath,
		FileName:    n.FileName,
		FileSize:    n.FileSize,
		ContentType: n.ContentType,
		UploadID:    n.UploadID,
		UploadedBy:  n.UploadedBy,
	}, Caller{UserID: n.UploadedBy})
	return err
}

// DiscardUpload marks the record of an upload cancelled after tracking as
// cleaned up.
func (s *PhotoService) DiscardUpload(ctx context.Context, n upload.Notification) error {
	pending, err := s.repo.FindPendingPhotoUpload(ctx, n.PatientID)
	if err != nil {
		return fmt.Errorf("finding tracked upload: %w", err)
	}
	if pending == nil || pending.TempPath != n.TempPath {
		return photo.ErrUploadNotFound
	}
	by := Caller{UserID: n.UploadedBy}.actor()
	if _, err := s.repo.CleanupPhotoUpload(ctx, pending.ID, by); err != nil {
		return fmt.Errorf("discarding tracked upload: %w", err)
	}
	_, _ = s.auditSvc.Record(ctx, AuditEntry{
		UserID:     by,
		Action:     domain.ActionCleanup,
		EntityType: photo.EntityType,
		EntityID:   pending.ID,
		Changes:    map[string]any{"previousStatus": string(pending.Status), "reason": "upload cancelled"},
	})
	return nil
}

type RepathResult struct {
	Upload  *photo.PhotoUpload `json:"upload"`
	Patient *patient.Patient   `json:"patient,omitempty"`
	URL     string             `json:"url"`
}

// Repath moves the newest pending photo of placeholderID to patientID. Every
// outcome leaves one repath audit entry.
func (s *PhotoService) Repath(ctx context.Context, placeholderID, patientID string, caller Caller) (*RepathResult, error) {
	if !photo.IsPlaceholderID(placeholderID) {
		return nil, photo.ErrInvalidPlaceholder
	}
	if strings.TrimSpace(patientID) == "" {
		return nil, &ValidationError{Fields: []string{"patientId is required"}}
	}

	log := s.log.With(zap.String("placeholder_id", placeholderID), zap.String("patient_id", patientID))

	pending, err := s.repo.FindPendingPhotoUpload(ctx, placeholderID)
	if err != nil {
		return nil, fmt.Errorf("finding pending upload: %w", err)
	}
	if pending == nil {
		log.Warn("no pending photo upload to re-path")
		s.repathFailed(ctx, caller, placeholderID, patientID, "", photo.ErrNoPendingUpload)
		return nil, photo.ErrNoPendingUpload
	}

	finalPath := upload.Repath(pending.TempPath, placeholderID, patientID)
	if err := s.objects.Copy(ctx, pending.TempPath, finalPath); err != nil {
		log.Error("failed to copy photo to final path", zap.String("temp_path", pending.TempPath), zap.Error(err))
		if errors.Is(err, upload.ErrObjectNotFound) {
			s.markFailed(ctx, log, pending.TempPath, err)
		}
		s.repathFailed(ctx, caller, placeholderID, patientID, pending.TempPath, err)
		return nil, fmt.Errorf("copying photo: %w", err)
	}

	// Until the patient points at the final copy the temporary object stays
	// the source of truth; any failure below removes the copy instead.
	fail := func(cause error) {
		s.deleteObject(ctx, log, finalPath)
		s.repathFailed(ctx, caller, placeholderID, patientID, pending.TempPath, cause)
	}

	url, err := s.objects.URL(ctx, finalPath)
	if err != nil {
		fail(err)
		return nil, fmt.Errorf("resolving photo url: %w", err)
	}

	now := s.now().UTC()
	confirmed := photo.StatusConfirmed
	by := caller.actor()
	updated, err := s.repo.UpdatePhotoUploadByTempPath(ctx, pending.TempPath, &photo.UpdateCommand{
		PatientID:   &patientID,
		FinalPath:   &finalPath,
		Status:      &confirmed,
		ConfirmedBy: &by,
		ConfirmedAt: &now,
		Metadata: map[string]any{
			"placeholderId": placeholderID,
			"finalUrl":      url,
		},
	})
	if err != nil {
		fail(err)
		return nil, fmt.Errorf("confirming photo upload: %w", err)
	}
	if updated == nil {
		fail(photo.ErrUploadNotFound)
		return nil, photo.ErrUploadNotFound
	}

	p, err := s.patients.UpdatePatient(ctx, patientID, &patient.UpdatePatientCommand{ProfilePhotoURL: &url})
	if err != nil {
		s.revertConfirmation(ctx, log, pending)
		fail(err)
		return nil, fmt.Errorf("updating patient photo url: %w", err)
	}
	if p == nil {
		log.Warn("photo confirmed for a patient that does not exist")
	}

	s.deleteObject(ctx, log, pending.TempPath)

	_, _ = s.auditSvc.Record(ctx, AuditEntry{
		UserID:     by,
		Action:     domain.ActionRepath,
		EntityType: photo.EntityType,
		EntityID:   updated.ID,
		Changes: map[string]any{
			"success":       true,
			"placeholderId": placeholderID,
			"patientId":     patientID,
			"from":          pending.TempPath,
			"to":            finalPath,
		},
	})
	s.obs.ObserveRepath("success")

	log.Info("photo re-pathed", zap.String("final_path", finalPath))
	return &RepathResult{Upload: updated, Patient: p, URL: url}, nil
}

func (s *PhotoService) deleteObject(ctx context.Context, log *zap.Logger, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		log.Warn("failed to delete photo object", zap.String("key", key), zap.Error(err))
	}
}

// revertConfirmation puts a confirmed record back to pending so the re-path
// can be retried against the temporary object.
func (s *PhotoService) revertConfirmation(ctx context.Context, log *zap.Logger, pending *photo.PhotoUpload) {
	uploaded := photo.StatusUploaded
	empty := ""
	_, err := s.repo.UpdatePhotoUploadByTempPath(ctx, pending.TempPath, &photo.UpdateCommand{
		PatientID:         &pending.PatientID,
		FinalPath:         &empty,
		Status:            &uploaded,
		ClearConfirmation: true,
	})
	if err != nil {
		log.Error("failed to revert photo confirmation", zap.String("temp_path", pending.TempPath), zap.Error(err))
	}
}

// markFailed records that the temporary object is gone and the upload can
// never be confirmed.
func (s *PhotoService) markFailed(ctx context.Context, log *zap.Logger, tempPath string, cause error) {
	failed := photo.StatusFailed
	_, err := s.repo.UpdatePhotoUploadByTempPath(ctx, tempPath, &photo.UpdateCommand{
		Status:   &failed,
		Metadata: map[string]any{"failureReason": cause.Error()},
	})
	if err != nil {
		log.Error("failed to mark photo upload failed", zap.String("temp_path", tempPath), zap.Error(err))
	}
}

func (s *PhotoService) repathFailed(ctx context.Context, caller Caller, placeholderID, patientID, tempPath string, cause error) {
	changes := map[string]any{
		"success":       false,
		"placeholderId": placeholderID,
		"patientId":     patientID,
		"error":         cause.Error(),
	}
	if tempPath != "" {
		changes["from"] = tempPath
	}
	_, _ = s.auditSvc.Record(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionRepath,
		EntityType: photo.EntityType,
		EntityID:   placeholderID,
		Changes:    changes,
	})
	s.obs.ObserveRepath("failed")
}

// Cleanup marks one tracked upload as cleaned up and removes its temporary
// object if it was never confirmed.
func (s *PhotoService) Cleanup(ctx context.Context, id string, caller Caller) (*photo.PhotoUpload, error) {
	u, err := s.repo.GetPhotoUpload(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading photo upload: %w", err)
	}
	if u == nil {
		return nil, photo.ErrUploadNotFound
	}

	if u.IsPending() {
		if err := s.objects.Delete(ctx, u.TempPath); err != nil {
			s.log.Warn("failed to delete temporary photo", zap.String("temp_path", u.TempPath), zap.Error(err))
		}
	}

	cleaned, err := s.repo.CleanupPhotoUpload(ctx, id, caller.actor())
	if err != nil {
		return nil, fmt.Errorf("cleaning up photo upload: %w", err)
	}
	if cleaned == nil {
		return nil, photo.ErrUploadNotFound
	}

	_, _ = s.auditSvc.Record(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionCleanup,
		EntityType: photo.EntityType,
		EntityID:   id,
		Changes:    map[string]any{"previousStatus": string(u.Status)},
	})

	return cleaned, nil
}

func (s *PhotoService) Status(ctx context.Context, patientID string) ([]*photo.PhotoUpload, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, &ValidationError{Fields: []string{"patientId is required"}}
	}
	return s.repo.ListPhotoUploadsForPatient(ctx, patientID)
}

// CleanupStale marks every upload still pending after maxAge as cleaned up
// and writes one batch_cleanup audit entry with the count.
func (s *PhotoService) CleanupStale(ctx context.Context, maxAge time.Duration, caller Caller) (int, error) {
	if maxAge <= 0 {
		return 0, &ValidationError{Fields: []string{"maxAge must be positive"}}
	}
	cutoff := s.now().UTC().Add(-maxAge)

	n, err := s.repo.CleanupStalePhotoUploads(ctx, cutoff, caller.actor())
	if err != nil {
		return 0, fmt.Errorf("cleaning up stale uploads: %w", err)
	}

	_, _ = s.auditSvc.Record(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionBatchCleanup,
		EntityType: photo.EntityType,
		Changes: map[string]any{
			"count":     n,
			"olderThan": cutoff.Format(time.RFC3339),
		},
	})

	if n > 0 {
		s.log.Info("stale photo uploads cleaned up", zap.Int("count", n), zap.Duration("max_age", maxAge))
	}
	return n, nil
}
