package photo

import "errors"

var (
	ErrUploadNotFound     = errors.New("photo upload not found")
	ErrNoPendingUpload    = errors.New("no pending photo upload for placeholder")
	ErrInvalidPlaceholder = errors.New("temp patient id must look like temp-<digits>")
)
