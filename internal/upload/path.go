package upload

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultFolder = "patient-photos"

// BuildPath returns <folder>/<yyyy>/<mm>/<patientID>/<patientID>_<unixMillis>.<ext>.
func BuildPath(folder, patientID string, at time.Time, ext string) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s/%s_%d.%s",
		strings.TrimSuffix(folder, "/"),
		at.Year(), int(at.Month()),
		patientID, patientID, at.UnixMilli(),
		strings.TrimPrefix(ext, "."),
	)
}

// NewUploadID returns a correlation id of the form upload_<unixMillis>_<suffix>.
func NewUploadID(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("upload_%d_%s", at.UnixMilli(), suffix)
}

// ParseUploadStart recovers the start time encoded in an upload id.
func ParseUploadStart(uploadID string) (time.Time, bool) {
	parts := strings.SplitN(uploadID, "_", 3)
	if len(parts) != 3 || parts[0] != "upload" || parts[2] == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// Repath rewrites every occurrence of the placeholder id in an object key.
func Repath(key, placeholder, patientID string) string {
	return strings.ReplaceAll(key, placeholder, patientID)
}
