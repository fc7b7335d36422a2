package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
)

const dateLayout = "2006-01-02"

type createPatientRequest struct {
	FirstName                string                            `json:"firstName" binding:"required,max=100"`
	LastName                 string                            `json:"lastName" binding:"required,max=100"`
	DateOfBirth              string                            `json:"dateOfBirth" binding:"required,datetime=2006-01-02"`
	Gender                   patient.Gender                    `json:"gender" binding:"omitempty,oneof=male female other unknown"`
	Phone                    string                            `json:"phone" binding:"required,max=30"`
	Email                    string                            `json:"email" binding:"omitempty,email"`
	Address                  string                            `json:"address"`
	EmergencyContact         *patient.EmergencyContact         `json:"emergencyContact"`
	MedicalHistory           string                            `json:"medicalHistory"`
	Allergies                string                            `json:"allergies"`
	ProfilePhotoURL          string                            `json:"profilePhotoUrl" binding:"omitempty,url"`
	CommunicationPreferences *patient.CommunicationPreferences `json:"communicationPreferences"`
	Consent                  *patient.Consent                  `json:"consent"`
}

type updatePatientRequest struct {
	FirstName                *string                           `json:"firstName" binding:"omitempty,max=100"`
	LastName                 *string                           `json:"lastName" binding:"omitempty,max=100"`
	DateOfBirth              *string                           `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
	Gender                   *patient.Gender                   `json:"gender" binding:"omitempty,oneof=male female other unknown"`
	Phone                    *string                           `json:"phone" binding:"omitempty,max=30"`
	Email                    *string                           `json:"email" binding:"omitempty,email"`
	Address                  *string                           `json:"address"`
	EmergencyContact         *patient.EmergencyContact         `json:"emergencyContact"`
	MedicalHistory           *string                           `json:"medicalHistory"`
	Allergies                *string                           `json:"allergies"`
	ProfilePhotoURL          *string                           `json:"profilePhotoUrl"`
	CommunicationPreferences *patient.CommunicationPreferences `json:"communicationPreferences"`
	Consent                  *patient.Consent                  `json:"consent"`
}

func (h *Handler) createPatient(c *gin.Context) {
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}
	dob, err := time.Parse(dateLayout, req.DateOfBirth)
	if err != nil {
		respondError(c, http.StatusBadRequest, "dateOfBirth must be YYYY-MM-DD", nil)
		return
	}

	p, err := h.svc.Patients.CreatePatient(c.Request.Context(), &patient.CreatePatientCommand{
		FirstName:                req.FirstName,
		LastName:                 req.LastName,
		DateOfBirth:              dob,
		Gender:                   req.Gender,
		Phone:                    req.Phone,
		Email:                    req.Email,
		Address:                  req.Address,
		EmergencyContact:         req.EmergencyContact,
		MedicalHistory:           req.MedicalHistory,
		Allergies:                req.Allergies,
		ProfilePhotoURL:          req.ProfilePhotoURL,
		CommunicationPreferences: req.CommunicationPreferences,
		Consent:                  req.Consent,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

func (h *Handler) getPatient(c *gin.Context) {
	p, err := h.svc.Patients.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *Handler) updatePatient(c *gin.Context) {
	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &patient.UpdatePatientCommand{
		FirstName:                req.FirstName,
		LastName:                 req.LastName,
		Gender:                   req.Gender,
		Phone:                    req.Phone,
		Email:                    req.Email,
		Address:                  req.Address,
		EmergencyContact:         req.EmergencyContact,
		MedicalHistory:           req.MedicalHistory,
		Allergies:                req.Allergies,
		ProfilePhotoURL:          req.ProfilePhotoURL,
		CommunicationPreferences: req.CommunicationPreferences,
		Consent:                  req.Consent,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			respondError(c, http.StatusBadRequest, "dateOfBirth must be YYYY-MM-DD", nil)
			return
		}
		cmd.DateOfBirth = &dob
	}

	p, err := h.svc.Patients.UpdatePatient(c.Request.Context(), c.Param("id"), cmd, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *Handler) listPatients(c *gin.Context) {
	ps, err := h.svc.Patients.ListPatients(c.Request.Context(), parseQueryInt(c, "limit", 100))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ps)
}

func (h *Handler) searchPatients(c *gin.Context) {
	ps, err := h.svc.Patients.SearchPatients(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ps)
}
