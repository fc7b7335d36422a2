package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
)

type AuditEntry struct {
	UserID     string
	Action     domain.AuditAction
	EntityType string
	EntityID   string
	Changes    map[string]any
}

func (e AuditEntry) toLog() *domain.AuditLog {
	userID := e.UserID
	if userID == "" {
		userID = systemActor
	}
	return &domain.AuditLog{
		UserID:     userID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Changes:    e.Changes,
	}
}

type AuditService struct {
	repo domain.AuditRepository
	log  *zap.Logger
	obs  Observer

	mu      sync.RWMutex
	closed  bool
	entries chan *domain.AuditLog
	done    chan struct{}
}

const auditBufferSize = 10_000

func NewAuditService(repo domain.AuditRepository, log *zap.Logger, obs Observer) *AuditService {
	svc := &AuditService{
		repo:    repo,
		log:     log,
		obs:     observerOrNop(obs),
		entries: make(chan *domain.AuditLog, auditBufferSize),
		done:    make(chan struct{}),
	}
	go svc.worker()
	return svc
}

// LogAsync enqueues an audit entry for background persistence. When the
// buffer is full the entry is dropped and a warning is emitted.
func (s *AuditService) LogAsync(_ context.Context, entry AuditEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.log.Warn("audit service stopped, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("entity_type", entry.EntityType),
		)
		s.obs.AuditDropped()
		return
	}

	select {
	case s.entries <- entry.toLog():
	default:
		s.log.Warn("audit log buffer full, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("entity_type", entry.EntityType),
		)
		s.obs.AuditDropped()
	}
}

// Record persists entry before returning. Photo lifecycle events use it so
// callers can rely on the trail being written.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) (*domain.AuditLog, error) {
	stored, err := s.repo.CreateAuditLog(ctx, entry.toLog())
	if err != nil {
		s.log.Error("failed to persist audit log",
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("recording audit entry: %w", err)
	}
	s.obs.AuditWritten()
	return stored, nil
}

func (s *AuditService) List(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *AuditService) ListForEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditLog, error) {
	var errs []string
	if entityType == "" {
		errs = append(errs, "entityType is required")
	}
	if entityID == "" {
		errs = append(errs, "entityId is required")
	}
	if err := validationError(errs); err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogsForEntity(ctx, entityType, entityID)
}

// Shutdown stops accepting entries and waits for the buffer to drain.
func (s *AuditService) Shutdown(timeout time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.entries)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(timeout):
		s.log.Warn("audit service shutdown timed out; some entries may be lost")
	}
}

func (s *AuditService) worker() {
	defer close(s.done)
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := s.repo.CreateAuditLog(ctx, entry); err != nil {
			s.log.Error("failed to persist audit log", zap.Error(err))
		} else {
			s.obs.AuditWritten()
		}
		cancel()
	}
}
