package patient

import "context"

type Repository interface {
	// GetPatient returns (nil, nil) when the id does not exist.
	GetPatient(ctx context.Context, id string) (*Patient, error)

	// CreatePatient persists p with a generated id, creation time and
	// denormalized fields, and returns the stored copy.
	CreatePatient(ctx context.Context, p *Patient) (*Patient, error)

	// UpdatePatient applies partial changes. Returns (nil, nil) if absent.
	UpdatePatient(ctx context.Context, id string, cmd *UpdatePatientCommand) (*Patient, error)

	// ListPatients returns newest first. limit <= 0 means no limit.
	ListPatients(ctx context.Context, limit int) ([]*Patient, error)

	// SearchPatients matches name, phone or email; deduplicated, newest first.
	SearchPatients(ctx context.Context, query string) ([]*Patient, error)
}
