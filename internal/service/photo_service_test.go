package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/storage"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/upload"
)

const testPhotoBaseURL = "https://cdn.clinic.test/"

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type testEnv struct {
	store    *storage.Memory
	objects  *upload.MemoryObjectStore
	audit    *AuditService
	photos   *PhotoService
	patients *PatientService
	uploads  *upload.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	objects := upload.NewMemoryObjectStore(testPhotoBaseURL)
	return newTestEnvWithObjects(t, objects, objects)
}

// newTestEnvWithObjects lets a test wrap the memory object store; mem must be
// the store objects delegates to.
func newTestEnvWithObjects(t *testing.T, objects upload.ObjectStore, mem *upload.MemoryObjectStore) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := storage.NewMemory()

	audit := NewAuditService(store, log, nil)
	t.Cleanup(func() { audit.Shutdown(time.Second) })

	photos := NewPhotoService(store, store, objects, audit, log, nil)
	patients := NewPatientService(store, photos, audit, log, nil)
	uploads := upload.NewManager(objects, upload.NewMemoryGuard(), upload.Config{
		Folder:         "patient-photos",
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	}, log, upload.WithTracker(photos))

	return &testEnv{
		store:    store,
		objects:  mem,
		audit:    audit,
		photos:   photos,
		patients: patients,
		uploads:  uploads,
	}
}

func photoFile() *upload.File {
	data := make([]byte, 512)
	copy(data, pngHeader)
	return &upload.File{Name: "face.png", ContentType: "image/png", Size: int64(len(data)), Data: data}
}

func newPatientCommand(photoURL string) *patient.CreatePatientCommand {
	return &patient.CreatePatientCommand{
		FirstName:       "Asha",
		LastName:        "Verma",
		DateOfBirth:     time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Phone:           "+91 98000 00001",
		Email:           "asha@example.com",
		ProfilePhotoURL: photoURL,
	}
}

func TestPhotoRepath_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const placeholder = "temp-1700000000000"

	res, err := env.uploads.Upload(ctx, upload.Request{PatientID: placeholder, UploadedBy: "staff-1", File: photoFile()})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !res.Tracked {
		t.Fatal("expected the upload to be tracked")
	}
	if res.URL != testPhotoBaseURL+res.Path {
		t.Fatalf("unexpected url %q", res.URL)
	}

	p, err := env.patients.CreatePatient(ctx, newPatientCommand(res.URL), Caller{UserID: "staff-1"})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}

	finalPath := strings.ReplaceAll(res.Path, placeholder, p.ID)
	if p.ProfilePhotoURL != testPhotoBaseURL+finalPath {
		t.Errorf("profile photo url = %q, want %q", p.ProfilePhotoURL, testPhotoBaseURL+finalPath)
	}
	if strings.Contains(p.ProfilePhotoURL, placeholder) {
		t.Error("placeholder must not survive in the stored url")
	}

	stored, _ := env.store.GetPatient(ctx, p.ID)
	if stored.ProfilePhotoURL != p.ProfilePhotoURL {
		t.Errorf("stored url %q differs from returned %q", stored.ProfilePhotoURL, p.ProfilePhotoURL)
	}

	if _, ok := env.objects.Get(res.Path); ok {
		t.Error("temporary object should be deleted")
	}
	if _, ok := env.objects.Get(finalPath); !ok {
		t.Error("object should exist at the final path")
	}

	ups, _ := env.store.ListPhotoUploadsForPatient(ctx, p.ID)
	if len(ups) != 1 {
		t.Fatalf("expected one upload for the patient, got %d", len(ups))
	}
	u := ups[0]
	if u.Status != photo.StatusConfirmed || u.FinalPath != finalPath || u.ConfirmedBy != "staff-1" || u.ConfirmedAt == nil {
		t.Errorf("unexpected upload record %+v", u)
	}
	if u.Metadata["placeholderId"] != placeholder {
		t.Errorf("unexpected metadata %v", u.Metadata)
	}

	logs, _ := env.store.ListAuditLogsForEntity(ctx, photo.EntityType, u.ID)
	var repaths int
	for _, l := range logs {
		if l.Action == domain.ActionRepath {
			repaths++
			if l.Changes["success"] != true || l.Changes["to"] != finalPath {
				t.Errorf("unexpected repath audit %v", l.Changes)
			}
		}
	}
	if repaths != 1 {
		t.Errorf("expected exactly one repath audit entry, got %d", repaths)
	}

	if pending, _ := env.store.FindPendingPhotoUpload(ctx, placeholder); pending != nil {
		t.Error("no upload should remain pending for the placeholder")
	}
}

func TestPhotoRepath_NoPendingUploadKeepsPatient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	url := testPhotoBaseURL + "patient-photos/2026/01/temp-1700000000001/temp-1700000000001_1.png"

	p, err := env.patients.CreatePatient(ctx, newPatientCommand(url), Caller{UserID: "staff-1"})
	if err != nil {
		t.Fatalf("patient creation must survive a failed re-path: %v", err)
	}
	if p.ProfilePhotoURL != url {
		t.Errorf("url should be left untouched, got %q", p.ProfilePhotoURL)
	}

	logs, _ := env.store.ListAuditLogsForEntity(ctx, photo.EntityType, "temp-1700000000001")
	if len(logs) != 1 || logs[0].Action != domain.ActionRepath || logs[0].Changes["success"] != false {
		t.Fatalf("expected one failed repath audit entry, got %+v", logs)
	}
}

// finalURLFailingStore cannot resolve URLs for keys outside the placeholder
// folder while failFinal is set.
type finalURLFailingStore struct {
	*upload.MemoryObjectStore
	failFinal atomic.Bool
}

func (s *finalURLFailingStore) URL(ctx context.Context, key string) (string, error) {
	if s.failFinal.Load() && !strings.Contains(key, "temp-") {
		return "", errors.New("cdn unavailable")
	}
	return s.MemoryObjectStore.URL(ctx, key)
}

func TestPhotoRepath_FailureKeepsUploadRetryable(t *testing.T) {
	objects := &finalURLFailingStore{MemoryObjectStore: upload.NewMemoryObjectStore(testPhotoBaseURL)}
	env := newTestEnvWithObjects(t, objects, objects.MemoryObjectStore)
	ctx := context.Background()
	const placeholder = "temp-1700000000003"

	res, err := env.uploads.Upload(ctx, upload.Request{PatientID: placeholder, File: photoFile()})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	p, err := env.store.CreatePatient(ctx, newTestPatientRecord())
	if err != nil {
		t.Fatal(err)
	}
	finalPath := strings.ReplaceAll(res.Path, placeholder, p.ID)

	objects.failFinal.Store(true)
	if _, err := env.photos.Repath(ctx, placeholder, p.ID, SystemCaller); err == nil {
		t.Fatal("expected the re-path to fail while urls cannot be resolved")
	}
	if _, ok := env.objects.Get(res.Path); !ok {
		t.Fatal("temporary object must survive a failed re-path")
	}
	if _, ok := env.objects.Get(finalPath); ok {
		t.Error("final copy must be removed after a failed re-path")
	}
	pending, _ := env.store.FindPendingPhotoUpload(ctx, placeholder)
	if pending == nil || pending.TempPath != res.Path {
		t.Fatalf("upload should still be pending at its temp path, got %+v", pending)
	}

	objects.failFinal.Store(false)
	out, err := env.photos.Repath(ctx, placeholder, p.ID, SystemCaller)
	if err != nil {
		t.Fatalf("retrying the re-path: %v", err)
	}
	if out.Upload.Status != photo.StatusConfirmed || out.Upload.FinalPath != finalPath {
		t.Errorf("unexpected record after retry %+v", out.Upload)
	}
	if _, ok := env.objects.Get(res.Path); ok {
		t.Error("temporary object should be deleted once the re-path succeeds")
	}
	if _, ok := env.objects.Get(finalPath); !ok {
		t.Error("object should exist at the final path")
	}
}

func TestPhotoRepath_MissingObjectMarksUploadFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const placeholder = "temp-1700000000004"

	res, err := env.uploads.Upload(ctx, upload.Request{PatientID: placeholder, File: photoFile()})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	_ = env.objects.Delete(ctx, res.Path)

	if _, err := env.photos.Repath(ctx, placeholder, "patient-1", SystemCaller); !errors.Is(err, upload.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	ups, _ := env.photos.Status(ctx, placeholder)
	if len(ups) != 1 || ups[0].Status != photo.StatusFailed {
		t.Fatalf("expected the upload to be marked failed, got %+v", ups)
	}
	if _, err := env.photos.Repath(ctx, placeholder, "patient-1", SystemCaller); !errors.Is(err, photo.ErrNoPendingUpload) {
		t.Errorf("a failed upload must not be picked up again, got %v", err)
	}
}

func TestUploadCancelledAfterTrackingIsDiscarded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const placeholder = "temp-1700000000005"

	n := upload.Notification{PatientID: placeholder, TempPath: "patient-photos/x/" + placeholder + "_1.png", UploadedBy: "staff-1"}
	if err := env.photos.TrackUpload(ctx, n); err != nil {
		t.Fatal(err)
	}
	if err := env.photos.DiscardUpload(ctx, n); err != nil {
		t.Fatalf("discard: %v", err)
	}
	ups, _ := env.photos.Status(ctx, placeholder)
	if len(ups) != 1 || ups[0].Status != photo.StatusCleanedUp || ups[0].CleanedUpBy != "staff-1" {
		t.Fatalf("expected the record cleaned up, got %+v", ups)
	}
	if err := env.photos.DiscardUpload(ctx, n); !errors.Is(err, photo.ErrUploadNotFound) {
		t.Errorf("second discard should find nothing pending, got %v", err)
	}
}

func TestPhotoRepath_RejectsNonPlaceholder(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.photos.Repath(context.Background(), "patient-42", "p1", SystemCaller)
	if !errors.Is(err, photo.ErrInvalidPlaceholder) {
		t.Fatalf("expected ErrInvalidPlaceholder, got %v", err)
	}
}

func TestPhotoCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.uploads.Upload(ctx, upload.Request{PatientID: "temp-1700000000002", File: photoFile()})
	if err != nil {
		t.Fatal(err)
	}
	ups, _ := env.photos.Status(ctx, "temp-1700000000002")
	if len(ups) != 1 {
		t.Fatalf("expected one tracked upload, got %d", len(ups))
	}

	cleaned, err := env.photos.Cleanup(ctx, ups[0].ID, Caller{UserID: "admin-1"})
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if cleaned.Status != photo.StatusCleanedUp || cleaned.CleanedUpBy != "admin-1" {
		t.Errorf("unexpected record %+v", cleaned)
	}
	if _, ok := env.objects.Get(res.Path); ok {
		t.Error("temporary object should be removed on cleanup")
	}

	if _, err := env.photos.Cleanup(ctx, "missing", SystemCaller); !errors.Is(err, photo.ErrUploadNotFound) {
		t.Errorf("expected ErrUploadNotFound, got %v", err)
	}
}

func TestPhotoCleanupStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	env.photos.now = func() time.Time { return now.Add(-48 * time.Hour) }
	if _, err := env.photos.Track(ctx, &photo.TrackCommand{PatientID: "temp-1", TempPath: "patient-photos/old.png"}, SystemCaller); err != nil {
		t.Fatal(err)
	}
	env.photos.now = func() time.Time { return now }
	if _, err := env.photos.Track(ctx, &photo.TrackCommand{PatientID: "temp-2", TempPath: "patient-photos/new.png"}, SystemCaller); err != nil {
		t.Fatal(err)
	}

	n, err := env.photos.CleanupStale(ctx, 24*time.Hour, SystemCaller)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected one stale upload, got %d", n)
	}
	if pending, _ := env.store.FindPendingPhotoUpload(ctx, "temp-2"); pending == nil {
		t.Error("fresh upload must stay pending")
	}

	logs, _ := env.store.ListAuditLogsForEntity(ctx, photo.EntityType, "")
	if len(logs) != 1 || logs[0].Action != domain.ActionBatchCleanup || logs[0].Changes["count"] != 1 {
		t.Fatalf("expected one batch_cleanup entry with count 1, got %+v", logs)
	}

	if _, err := env.photos.CleanupStale(ctx, 0, SystemCaller); err == nil {
		t.Error("non-positive age must be rejected")
	}
}

func TestPhotoTrack_Validation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.photos.Track(context.Background(), &photo.TrackCommand{}, SystemCaller)
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 2 {
		t.Fatalf("expected two validation failures, got %v", err)
	}
}

func newTestPatientRecord() *patient.Patient {
	return &patient.Patient{
		FirstName:   "Meera",
		LastName:    "Nair",
		DateOfBirth: time.Date(1978, 11, 2, 0, 0, 0, 0, time.UTC),
		Phone:       "+91 98000 00003",
	}
}
