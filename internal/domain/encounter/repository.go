package encounter

import (
	"context"
)

type Repository interface {
	GetEncounter(ctx context.Context, id string) (*Encounter, error)
	GetEncounterByAppointment(ctx context.Context, appointmentID string) (*Encounter, error)
	CreateEncounter(ctx context.Context, e *Encounter) (*Encounter, error)
	UpdateEncounter(ctx context.Context, id string, cmd *UpdateEncounterCommand) (*Encounter, error)
	ListEncountersByPatient(ctx context.Context, patientID string) ([]*Encounter, error)
}
