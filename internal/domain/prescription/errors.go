package prescription

import "errors"

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrNoMedications        = errors.New("prescription must list at least one medication")
	ErrInvalidChannel       = errors.New("channel must be email or whatsapp")
)
