package upload

import (
	"errors"
	"fmt"
)

// Code is the machine-readable reason attached to an upload failure.
type Code string

const (
	CodeNoFile             Code = "NO_FILE"
	CodeInvalidFileType    Code = "INVALID_FILE_TYPE"
	CodeFileTooLarge       Code = "FILE_TOO_LARGE"
	CodeDangerousExtension Code = "DANGEROUS_EXTENSION"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"
	CodeDuplicateUpload    Code = "DUPLICATE_UPLOAD"
	CodeUploadFailed       Code = "UPLOAD_FAILED"
	CodeUploadCancelled    Code = "UPLOAD_CANCELLED"

	// CodeRollbackFailed is only ever logged.
	CodeRollbackFailed Code = "ROLLBACK_FAILED"
)

// IsValidation reports whether c is raised by Validate before any I/O.
func (c Code) IsValidation() bool {
	switch c {
	case CodeNoFile, CodeInvalidFileType, CodeFileTooLarge, CodeDangerousExtension, CodeInvalidSignature:
		return true
	}
	return false
}

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// CodeOf extracts the upload code from err, if any.
func CodeOf(err error) (Code, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code, true
	}
	return "", false
}

var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrMissingPatientID = errors.New("patient id is required")
)
