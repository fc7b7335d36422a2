package encounter

import "errors"

var (
	ErrEncounterNotFound = errors.New("encounter not found")
	ErrEncounterExists   = errors.New("an encounter already exists for this appointment")
)
