package service

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
)

var (
	ErrForbidden    = errors.New("forbidden: insufficient permissions")
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("a user with this email or external id already exists")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// validate checks commands that do not arrive through a bound request.
var validate = validator.New()

func validEmail(email string) bool {
	return validate.Var(strings.TrimSpace(email), "required,email") == nil
}

func validationError(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Caller identifies who is acting on a request. The zero value is the system.
type Caller struct {
	UserID    string
	Role      domain.Role
	IP        string
	RequestID string
}

const systemActor = "system"

// SystemCaller is used by background jobs.
var SystemCaller = Caller{UserID: systemActor}

func (c Caller) actor() string {
	if c.UserID == "" {
		return systemActor
	}
	return c.UserID
}

// Observer receives business events for metrics. Every method must be safe
// for concurrent use.
type Observer interface {
	PatientCreated()
	AppointmentWritten(status string)
	PrescriptionIssued()
	ObserveRepath(result string)
	AuditWritten()
	AuditDropped()
}

type nopObserver struct{}

func (nopObserver) PatientCreated()           {}
func (nopObserver) AppointmentWritten(string) {}
func (nopObserver) PrescriptionIssued()       {}
func (nopObserver) ObserveRepath(string)      {}
func (nopObserver) AuditWritten()             {}
func (nopObserver) AuditDropped()             {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
