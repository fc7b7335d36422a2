package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/service"
)

type scheduleAppointmentRequest struct {
	PatientID    string                      `json:"patientId" binding:"required"`
	DoctorID     string                      `json:"doctorId" binding:"required"`
	ScheduledAt  time.Time                   `json:"scheduledAt" binding:"required"`
	DurationMins int                         `json:"durationMins" binding:"omitempty,min=5,max=480"`
	Type         appointment.AppointmentType `json:"type" binding:"required"`
	Notes        string                      `json:"notes" binding:"max=2000"`
}

type updateAppointmentRequest struct {
	DoctorID     *string                        `json:"doctorId"`
	ScheduledAt  *time.Time                     `json:"scheduledAt"`
	DurationMins *int                           `json:"durationMins" binding:"omitempty,min=5,max=480"`
	Type         *appointment.AppointmentType   `json:"type"`
	Status       *appointment.AppointmentStatus `json:"status"`
	Notes        *string                        `json:"notes" binding:"omitempty,max=2000"`
}

func (h *Handler) scheduleAppointment(c *gin.Context) {
	var req scheduleAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Appointments.ScheduleAppointment(c.Request.Context(), &appointment.CreateAppointmentCommand{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		ScheduledAt:  req.ScheduledAt,
		DurationMins: req.DurationMins,
		Type:         req.Type,
		Notes:        req.Notes,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, a)
}

func (h *Handler) getAppointment(c *gin.Context) {
	a, err := h.svc.Appointments.GetAppointment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *Handler) updateAppointment(c *gin.Context) {
	var req updateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Appointments.UpdateAppointment(c.Request.Context(), c.Param("id"), &appointment.UpdateAppointmentCommand{
		DoctorID:     req.DoctorID,
		ScheduledAt:  req.ScheduledAt,
		DurationMins: req.DurationMins,
		Type:         req.Type,
		Status:       req.Status,
		Notes:        req.Notes,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *Handler) listAppointments(c *gin.Context) {
	as, err := h.svc.Appointments.ListAppointments(c.Request.Context(), service.AppointmentFilter{
		Date:      c.Query("date"),
		DoctorID:  c.Query("doctorId"),
		PatientID: c.Query("patientId"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, as)
}
