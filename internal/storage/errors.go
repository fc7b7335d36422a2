package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind int

const (
	KindStore Kind = iota
	KindPermissionDenied
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	default:
		return "store_error"
	}
}

var (
	ErrPermissionDenied = errors.New("storage: permission denied")
	ErrNotFound         = errors.New("storage: not found")
	ErrStore            = errors.New("storage: store error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindNotFound:
		return ErrNotFound
	default:
		return ErrStore
	}
}

// Error is a failure reported by a backing store, tagged with its kind and
// the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause so that
// errors.Is(err, ErrPermissionDenied) and errors.As(err, &pgErr) both work.
func (e *Error) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

// classify wraps a driver error into an *Error. nil stays nil.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: kindOf(err), Op: op, Err: err}
}

func kindOf(err error) Kind {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 42501 insufficient_privilege, class 28 invalid authorization.
		if pgErr.Code == "42501" || strings.HasPrefix(pgErr.Code, "28") {
			return KindPermissionDenied
		}
		return KindStore
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission denied") || strings.Contains(msg, "password authentication failed") {
		return KindPermissionDenied
	}
	return KindStore
}

// IsPermissionDenied reports whether err carries the permission-denied kind.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
