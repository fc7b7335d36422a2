package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/encounter"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/service"
)

type createEncounterRequest struct {
	AppointmentID  string            `json:"appointmentId" binding:"required"`
	PatientID      string            `json:"patientId"`
	DoctorID       string            `json:"doctorId"`
	ChiefComplaint string            `json:"chiefComplaint"`
	ClinicalNotes  string            `json:"clinicalNotes"`
	Diagnosis      string            `json:"diagnosis"`
	TreatmentPlan  string            `json:"treatmentPlan"`
	Files          []string          `json:"files" binding:"omitempty,dive,url"`
	Vitals         *encounter.Vitals `json:"vitals"`
}

type updateEncounterRequest struct {
	ChiefComplaint *string           `json:"chiefComplaint"`
	ClinicalNotes  *string           `json:"clinicalNotes"`
	Diagnosis      *string           `json:"diagnosis"`
	TreatmentPlan  *string           `json:"treatmentPlan"`
	Files          []string          `json:"files" binding:"omitempty,dive,url"`
	Vitals         *encounter.Vitals `json:"vitals"`
}

type medicationRequest struct {
	Name         string `json:"name" binding:"required"`
	Dosage       string `json:"dosage" binding:"required"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type issuePrescriptionRequest struct {
	EncounterID string              `json:"encounterId" binding:"required"`
	Medications []medicationRequest `json:"medications" binding:"required,min=1,dive"`
	DocumentURL string              `json:"documentUrl" binding:"omitempty,url"`
}

type updatePrescriptionRequest struct {
	Medications []medicationRequest `json:"medications" binding:"omitempty,min=1,dive"`
	DocumentURL *string             `json:"documentUrl" binding:"omitempty,url"`
}

type markSentRequest struct {
	Channel prescription.Channel `json:"channel" binding:"required,oneof=email whatsapp"`
}

func toMedications(in []medicationRequest) []prescription.Medication {
	if in == nil {
		return nil
	}
	out := make([]prescription.Medication, len(in))
	for i, m := range in {
		out[i] = prescription.Medication(m)
	}
	return out
}

func (h *Handler) createEncounter(c *gin.Context) {
	var req createEncounterRequest
	if !bindJSON(c, &req) {
		return
	}

	e, err := h.svc.Clinical.CreateEncounter(c.Request.Context(), &encounter.CreateEncounterCommand{
		AppointmentID:  req.AppointmentID,
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		ChiefComplaint: req.ChiefComplaint,
		ClinicalNotes:  req.ClinicalNotes,
		Diagnosis:      req.Diagnosis,
		TreatmentPlan:  req.TreatmentPlan,
		Files:          req.Files,
		Vitals:         req.Vitals,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, e)
}

func (h *Handler) getEncounter(c *gin.Context) {
	e, err := h.svc.Clinical.GetEncounter(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, e)
}

func (h *Handler) updateEncounter(c *gin.Context) {
	var req updateEncounterRequest
	if !bindJSON(c, &req) {
		return
	}

	e, err := h.svc.Clinical.UpdateEncounter(c.Request.Context(), c.Param("id"), &encounter.UpdateEncounterCommand{
		ChiefComplaint: req.ChiefComplaint,
		ClinicalNotes:  req.ClinicalNotes,
		Diagnosis:      req.Diagnosis,
		TreatmentPlan:  req.TreatmentPlan,
		Files:          req.Files,
		Vitals:         req.Vitals,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, e)
}

// listEncounters serves ?appointmentId= (at most one) or ?patientId=.
func (h *Handler) listEncounters(c *gin.Context) {
	ctx := c.Request.Context()
	if apptID := c.Query("appointmentId"); apptID != "" {
		e, err := h.svc.Clinical.GetEncounterByAppointment(ctx, apptID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondOK(c, []*encounter.Encounter{e})
		return
	}

	es, err := h.svc.Clinical.ListEncountersByPatient(ctx, c.Query("patientId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, es)
}

func (h *Handler) issuePrescription(c *gin.Context) {
	var req issuePrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.Clinical.IssuePrescription(c.Request.Context(), &prescription.CreatePrescriptionCommand{
		EncounterID: req.EncounterID,
		Medications: toMedications(req.Medications),
		DocumentURL: req.DocumentURL,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

func (h *Handler) getPrescription(c *gin.Context) {
	p, err := h.svc.Clinical.GetPrescription(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *Handler) updatePrescription(c *gin.Context) {
	var req updatePrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.Clinical.UpdatePrescription(c.Request.Context(), c.Param("id"), &prescription.UpdatePrescriptionCommand{
		Medications: toMedications(req.Medications),
		DocumentURL: req.DocumentURL,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *Handler) markPrescriptionSent(c *gin.Context) {
	var req markSentRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.Clinical.MarkSent(c.Request.Context(), c.Param("id"), req.Channel, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *Handler) listPrescriptions(c *gin.Context) {
	ps, err := h.svc.Clinical.ListPrescriptions(c.Request.Context(), service.PrescriptionFilter{
		PatientID:   c.Query("patientId"),
		EncounterID: c.Query("encounterId"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ps)
}

func (h *Handler) listAuditLogs(c *gin.Context) {
	ctx := c.Request.Context()
	entityType, entityID := c.Query("entityType"), c.Query("entityId")
	if entityType != "" || entityID != "" {
		logs, err := h.svc.Audit.ListForEntity(ctx, entityType, entityID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondOK(c, logs)
		return
	}

	logs, err := h.svc.Audit.List(ctx, parseQueryInt(c, "limit", 100))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse[any]{Data: logs})
}
