package appointment

import (
	"context"
)

type Repository interface {
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, id string, cmd *UpdateAppointmentCommand) (*Appointment, error)

	// ListAppointments returns newest first.
	ListAppointments(ctx context.Context) ([]*Appointment, error)

	// ListAppointmentsByDate returns one day's queue, earliest first.
	ListAppointmentsByDate(ctx context.Context, date string) ([]*Appointment, error)

	// ListAppointmentsByDoctor returns a doctor's appointments earliest first,
	// optionally restricted to one date.
	ListAppointmentsByDoctor(ctx context.Context, doctorID, date string) ([]*Appointment, error)

	ListAppointmentsByPatient(ctx context.Context, patientID string) ([]*Appointment, error)
}
