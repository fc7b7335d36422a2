package prescription

import (
	"context"
)

type Repository interface {
	GetPrescription(ctx context.Context, id string) (*Prescription, error)
	CreatePrescription(ctx context.Context, p *Prescription) (*Prescription, error)
	UpdatePrescription(ctx context.Context, id string, cmd *UpdatePrescriptionCommand) (*Prescription, error)
	ListPrescriptionsByPatient(ctx context.Context, patientID string) ([]*Prescription, error)
	ListPrescriptionsByEncounter(ctx context.Context, encounterID string) ([]*Prescription, error)
}
