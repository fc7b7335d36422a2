package photo

import (
	"context"
	"time"
)

type Repository interface {
	TrackPhotoUpload(ctx context.Context, u *PhotoUpload) (*PhotoUpload, error)
	GetPhotoUpload(ctx context.Context, id string) (*PhotoUpload, error)

	// FindPendingPhotoUpload returns the newest upload still in the uploaded
	// state for patientID, or nil.
	FindPendingPhotoUpload(ctx context.Context, patientID string) (*PhotoUpload, error)

	UpdatePhotoUploadByTempPath(ctx context.Context, tempPath string, cmd *UpdateCommand) (*PhotoUpload, error)
	CleanupPhotoUpload(ctx context.Context, id, by string) (*PhotoUpload, error)
	ListPhotoUploadsForPatient(ctx context.Context, patientID string) ([]*PhotoUpload, error)

	// CleanupStalePhotoUploads marks every upload still in the uploaded state
	// and uploaded before olderThan as cleaned up, returning how many changed.
	CleanupStalePhotoUploads(ctx context.Context, olderThan time.Time, by string) (int, error)
}
