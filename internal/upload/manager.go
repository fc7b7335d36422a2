package upload

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notification is what the manager reports to the tracker after an object has
// been stored.
type Notification struct {
	PatientID   string
	TempPath    string
	FileName    string
	FileSize    int64
	ContentType string
	UploadID    string
	UploadedBy  string
}

// Tracker records successful uploads. Failures are logged and do not fail the
// upload. DiscardUpload is called when an upload that was already tracked is
// cancelled before it completes.
type Tracker interface {
	TrackUpload(ctx context.Context, n Notification) error
	DiscardUpload(ctx context.Context, n Notification) error
}

// Observer receives the outcome of every Upload call.
type Observer interface {
	ObserveUpload(outcome string, attempts int)
}

const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
)

type Config struct {
	Folder         string
	MaxFileSize    int64
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type Request struct {
	PatientID  string
	UploadedBy string
	File       *File
}

type Result struct {
	PatientID string `json:"patientId"`
	UploadID  string `json:"uploadId"`
	Path      string `json:"path"`
	URL       string `json:"url,omitempty"`
	Attempts  int    `json:"attempts"`
	Tracked   bool   `json:"tracked"`
}

// ActiveUpload is a snapshot of one in-flight upload.
type ActiveUpload struct {
	PatientID string    `json:"patientId"`
	UploadID  string    `json:"uploadId"`
	Path      string    `json:"path,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

type activeUpload struct {
	uploadID  string
	token     string
	startedAt time.Time
	path      string
	cancel    context.CancelFunc
}

// Manager runs the photo upload lifecycle: validate, guard, store with
// retry and rollback, then notify the tracker.
type Manager struct {
	store    ObjectStore
	guard    Guard
	tracker  Tracker
	observer Observer
	cfg      Config
	log      *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*activeUpload
}

type ManagerOption func(*Manager)

func WithTracker(t Tracker) ManagerOption {
	return func(m *Manager) { m.tracker = t }
}

func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(store ObjectStore, guard Guard, cfg Config, log *zap.Logger, opts ...ManagerOption) *Manager {
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if guard == nil {
		guard = NewMemoryGuard()
	}
	if log == nil {
		log = zap.NewNop()
	}

	m := &Manager{
		store:  store,
		guard:  guard,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		active: make(map[string]*activeUpload),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) observe(outcome string, attempts int) {
	if m.observer != nil {
		m.observer.ObserveUpload(outcome, attempts)
	}
}

// Upload stores req.File under a fresh path for req.PatientID.
func (m *Manager) Upload(ctx context.Context, req Request) (*Result, error) {
	if err := Validate(req.File, m.cfg.MaxFileSize); err != nil {
		m.observe(OutcomeInvalid, 0)
		return nil, err
	}
	if req.PatientID == "" {
		m.observe(OutcomeInvalid, 0)
		return nil, ErrMissingPatientID
	}

	token, ok, err := m.guard.Acquire(ctx, req.PatientID)
	if err != nil {
		m.observe(OutcomeFailed, 0)
		return nil, newError(CodeUploadFailed, "Upload failed. Please try again.", err)
	}
	if !ok {
		m.observe(OutcomeDuplicate, 0)
		return nil, newError(CodeDuplicateUpload, "An upload is already in progress for this patient", nil)
	}

	startedAt := m.now()
	uploadID := NewUploadID(startedAt)
	upCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.active[req.PatientID] = &activeUpload{
		uploadID:  uploadID,
		token:     token,
		startedAt: startedAt,
		cancel:    cancel,
	}
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		if cur, ok := m.active[req.PatientID]; ok && cur.uploadID == uploadID {
			delete(m.active, req.PatientID)
		}
		m.mu.Unlock()
		if err := m.guard.Release(context.WithoutCancel(ctx), req.PatientID, token); err != nil {
			m.log.Warn("failed to release upload guard",
				zap.String("patient_id", req.PatientID),
				zap.Error(err),
			)
		}
	}()

	log := m.log.With(
		zap.String("patient_id", req.PatientID),
		zap.String("upload_id", uploadID),
	)

	path, attempts, err := m.put(upCtx, log, req, uploadID)
	if err != nil {
		if code, _ := CodeOf(err); code == CodeUploadCancelled {
			m.observe(OutcomeCancelled, attempts)
		} else {
			m.observe(OutcomeFailed, attempts)
		}
		return nil, err
	}

	result := &Result{
		PatientID: req.PatientID,
		UploadID:  uploadID,
		Path:      path,
		Attempts:  attempts,
	}

	url, err := m.store.URL(upCtx, path)
	if err != nil {
		log.Warn("could not resolve photo url", zap.String("path", path), zap.Error(err))
	}
	result.URL = url
	if upCtx.Err() != nil {
		return nil, m.abandon(ctx, log, path, attempts, nil)
	}

	n := Notification{
		PatientID:   req.PatientID,
		TempPath:    path,
		FileName:    req.File.Name,
		FileSize:    req.File.size(),
		ContentType: req.File.ContentType,
		UploadID:    uploadID,
		UploadedBy:  req.UploadedBy,
	}
	if m.tracker != nil {
		if err := m.tracker.TrackUpload(upCtx, n); err != nil {
			log.Warn("upload tracking failed", zap.String("path", path), zap.Error(err))
		} else {
			result.Tracked = true
		}
	}

	if !m.complete(upCtx, req.PatientID, uploadID) {
		var tracked *Notification
		if result.Tracked {
			tracked = &n
		}
		return nil, m.abandon(ctx, log, path, attempts, tracked)
	}

	log.Info("photo uploaded", zap.String("path", path), zap.Int("attempts", attempts))
	m.observe(OutcomeSuccess, attempts)
	return result, nil
}

// complete removes the upload from the active set unless it was cancelled.
// Cancel takes the same lock, so once complete succeeds a later Cancel is a
// no-op.
func (m *Manager) complete(ctx context.Context, patientID, uploadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.active[patientID]
	if !ok || cur.uploadID != uploadID || ctx.Err() != nil {
		return false
	}
	delete(m.active, patientID)
	return true
}

// abandon undoes an upload cancelled after its object was stored: the object
// is removed and a tracked record, if any, is discarded.
func (m *Manager) abandon(ctx context.Context, log *zap.Logger, path string, attempts int, tracked *Notification) error {
	ctx = context.WithoutCancel(ctx)
	m.rollback(ctx, log, path)
	if tracked != nil {
		if err := m.tracker.DiscardUpload(ctx, *tracked); err != nil {
			log.Warn("could not discard tracked upload", zap.String("path", path), zap.Error(err))
		}
	}
	log.Info("photo upload cancelled after store", zap.String("path", path))
	m.observe(OutcomeCancelled, attempts)
	return newError(CodeUploadCancelled, "Upload was cancelled", context.Canceled)
}

// put stores the object, retrying up to MaxRetries more times with a linear
// backoff. Every failed attempt is rolled back before the next one.
func (m *Manager) put(ctx context.Context, log *zap.Logger, req Request, uploadID string) (string, int, error) {
	ext := Extension(req.File)
	attempts := 0

	for attempt := 0; ; attempt++ {
		at := m.now()
		path := BuildPath(m.cfg.Folder, req.PatientID, at, ext)
		m.setActivePath(req.PatientID, uploadID, path)

		metadata := map[string]string{
			"patientId":    req.PatientID,
			"uploadId":     uploadID,
			"originalName": req.File.Name,
			"uploadedAt":   at.UTC().Format(time.RFC3339),
		}

		attempts++
		err := m.store.Put(ctx, path, req.File.ContentType, metadata, bytes.NewReader(req.File.Data))
		if err == nil && ctx.Err() == nil {
			return path, attempts, nil
		}

		m.rollback(context.WithoutCancel(ctx), log, path)

		if ctx.Err() != nil {
			log.Info("photo upload cancelled", zap.String("path", path))
			return "", attempts, newError(CodeUploadCancelled, "Upload was cancelled", ctx.Err())
		}

		log.Warn("photo upload attempt failed",
			zap.Int("attempt", attempts),
			zap.String("path", path),
			zap.Error(err),
		)

		if attempt >= m.cfg.MaxRetries {
			log.Error("photo upload failed after retries", zap.Int("attempts", attempts), zap.Error(err))
			return "", attempts, newError(CodeUploadFailed, "Upload failed. Please try again.", err)
		}

		delay := time.Duration(attempt+1) * m.cfg.RetryBaseDelay
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", attempts, newError(CodeUploadCancelled, "Upload was cancelled", ctx.Err())
		case <-timer.C:
		}
	}
}

// rollback removes a partially written object. A missing object counts as
// success; any other failure is logged and swallowed.
func (m *Manager) rollback(ctx context.Context, log *zap.Logger, path string) {
	err := m.store.Delete(ctx, path)
	if err == nil || errors.Is(err, ErrObjectNotFound) {
		return
	}
	log.Warn("rollback of partial upload failed",
		zap.String("code", string(CodeRollbackFailed)),
		zap.String("path", path),
		zap.Error(err),
	)
}

func (m *Manager) setActivePath(patientID, uploadID, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.active[patientID]; ok && a.uploadID == uploadID {
		a.path = path
	}
}

// Cancel aborts the in-flight upload for patientID, deletes any partial
// object and frees the guard. It reports whether an upload was active.
func (m *Manager) Cancel(ctx context.Context, patientID string) bool {
	m.mu.Lock()
	a, ok := m.active[patientID]
	if ok {
		delete(m.active, patientID)
	}
	var path string
	if ok {
		path = a.path
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	a.cancel()
	log := m.log.With(zap.String("patient_id", patientID), zap.String("upload_id", a.uploadID))
	if path != "" {
		m.rollback(ctx, log, path)
	}
	if err := m.guard.Release(ctx, patientID, a.token); err != nil {
		log.Warn("failed to release upload guard", zap.Error(err))
	}
	log.Info("photo upload cancelled by request")
	return true
}

// SweepStale cancels in-flight uploads that started more than maxAge ago and
// returns how many were cancelled.
func (m *Manager) SweepStale(ctx context.Context, maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	var stale []string
	for patientID, a := range m.active {
		started, ok := ParseUploadStart(a.uploadID)
		if !ok {
			started = a.startedAt
		}
		if started.Before(cutoff) {
			stale = append(stale, patientID)
		}
	}
	m.mu.Unlock()

	n := 0
	for _, patientID := range stale {
		if m.Cancel(ctx, patientID) {
			n++
		}
	}
	if n > 0 {
		m.log.Info("stale uploads swept", zap.Int("count", n), zap.Duration("max_age", maxAge))
	}
	return n
}

// Active returns the in-flight uploads, oldest first.
func (m *Manager) Active() []ActiveUpload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ActiveUpload, 0, len(m.active))
	for patientID, a := range m.active {
		out = append(out, ActiveUpload{
			PatientID: patientID,
			UploadID:  a.uploadID,
			Path:      a.path,
			StartedAt: a.startedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// IsActive reports whether an upload is in flight for patientID.
func (m *Manager) IsActive(patientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[patientID]
	return ok
}
