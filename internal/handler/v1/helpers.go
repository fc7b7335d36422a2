package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/encounter"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/service"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/upload"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error      string `json:"error"`
	Details    any    `json:"details,omitempty"`
	StatusCode int    `json:"statusCode"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details, StatusCode: status})
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		respondError(c, http.StatusBadRequest, "validation failed", validErr.Fields)
		return
	}

	var upErr *upload.Error
	if errors.As(err, &upErr) {
		respondError(c, uploadStatus(upErr.Code), upErr.Message, gin.H{"code": upErr.Code})
		return
	}

	switch {
	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, encounter.ErrEncounterNotFound),
		errors.Is(err, prescription.ErrPrescriptionNotFound),
		errors.Is(err, photo.ErrUploadNotFound),
		errors.Is(err, photo.ErrNoPendingUpload),
		errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, err.Error(), nil)

	case errors.Is(err, encounter.ErrEncounterExists),
		errors.Is(err, service.ErrUserExists):
		respondError(c, http.StatusConflict, err.Error(), nil)

	case errors.Is(err, appointment.ErrScheduledInPast),
		errors.Is(err, appointment.ErrInvalidDuration),
		errors.Is(err, appointment.ErrInvalidStatusTransition),
		errors.Is(err, appointment.ErrInvalidAppointmentType),
		errors.Is(err, appointment.ErrInvalidDate),
		errors.Is(err, patient.ErrInvalidGender),
		errors.Is(err, patient.ErrInvalidDateOfBirth),
		errors.Is(err, prescription.ErrNoMedications),
		errors.Is(err, prescription.ErrInvalidChannel),
		errors.Is(err, photo.ErrInvalidPlaceholder),
		errors.Is(err, upload.ErrMissingPatientID):
		respondError(c, http.StatusBadRequest, err.Error(), nil)

	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrAccountInactive):
		respondError(c, http.StatusForbidden, "access denied", nil)

	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "invalid credentials", nil)

	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "internal server error", nil)
	}
}

func uploadStatus(code upload.Code) int {
	switch {
	case code.IsValidation():
		return http.StatusBadRequest
	case code == upload.CodeDuplicateUpload, code == upload.CodeUploadCancelled:
		return http.StatusConflict
	case code == upload.CodeUploadFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			respondError(c, http.StatusBadRequest, "validation failed", formatValidationErrors(verrs))
			return false
		}
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error(), nil)
		return false
	}
	return true
}

// formatValidationErrors maps binding failures to field -> rule.
func formatValidationErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if field != "" {
			field = strings.ToLower(field[:1]) + field[1:]
		}
		if fe.Param() != "" {
			out[field] = fe.Tag() + "=" + fe.Param()
		} else {
			out[field] = fe.Tag()
		}
	}
	return out
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

func callerFrom(c *gin.Context) service.Caller {
	caller := service.Caller{
		IP:        c.ClientIP(),
		RequestID: middleware.RequestIDFrom(c),
	}
	if claims, ok := middleware.ClaimsFrom(c); ok {
		caller.UserID = claims.UserID
		caller.Role = claims.Role
	}
	return caller
}
