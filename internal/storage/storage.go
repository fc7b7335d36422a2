// Package storage implements the clinic's persistence contract over a
// PostgreSQL document adapter, an in-memory store and a hybrid façade that
// fails over from the first to the second.
package storage

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/encounter"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/prescription"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Store is the full persistence contract. Lookups of absent entities return
// (nil, nil); only genuine failures produce an error.
type Store interface {
	// Ping performs a cheap read against the users collection.
	Ping(ctx context.Context) error

	domain.UserRepository
	domain.AuditRepository
	patient.Repository
	appointment.Repository
	encounter.Repository
	prescription.Repository
	photo.Repository
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
	_ Store = (*Hybrid)(nil)
)
