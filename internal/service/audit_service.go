package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditSink is one destination for audit entries.
type AuditSink interface {
	Name() string
	Write(ctx context.Context, entry *domain.AuditLog) error
}

// AuditRepository is the durable sink, which can also be queried.
type AuditRepository interface {
	AuditSink
	List(ctx context.Context, q *domain.ListAuditLogsQuery) (*domain.PagedAuditLogs, error)
}

// Auditor is what the domain services depend on.
type Auditor interface {
	LogAsync(ctx context.Context, entry AuditEntry)
}

type AuditService struct {
	repo    AuditRepository
	sinks   []AuditSink
	metrics *metrics.Collector
	log     *zap.Logger

	mu      sync.RWMutex
	closed  bool
	entries chan *domain.AuditLog
	done    chan struct{}
}

const (
	auditWriteTimeout    = 5 * time.Second
	auditShutdownTimeout = 10 * time.Second
)

// NewAuditService starts the background writer. Entries go to repo first and
// then to every extra sink, each independently.
func NewAuditService(repo AuditRepository, bufferSize int, m *metrics.Collector, log *zap.Logger, extra ...AuditSink) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	svc := &AuditService{
		repo:    repo,
		sinks:   append([]AuditSink{repo}, extra...),
		metrics: m,
		log:     log,
		entries: make(chan *domain.AuditLog, bufferSize),
		done:    make(chan struct{}),
	}
	go svc.worker()
	return svc
}

// LogAsync enqueues an audit entry for async persistence. It never blocks:
// if the buffer is full, the entry is dropped and counted.
func (s *AuditService) LogAsync(_ context.Context, entry AuditEntry) {
	al := s.toLog(entry)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn("audit service stopped, dropping entry", zap.String("action", string(entry.Action)))
		s.metrics.AuditBufferDropped.Inc()
		return
	}

	select {
	case s.entries <- al:
	default:
		s.metrics.AuditBufferDropped.Inc()
		s.log.Warn("audit log buffer full, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("target", string(entry.TargetType)),
			zap.String("target_id", entry.TargetID),
		)
	}
}

func (s *AuditService) ListAuditLogs(ctx context.Context, caller Caller, q *domain.ListAuditLogsQuery) (*domain.PagedAuditLogs, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	return s.repo.List(ctx, q)
}

// Shutdown stops accepting entries and waits for the buffer to drain.
func (s *AuditService) Shutdown() {
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
	case <-time.After(auditShutdownTimeout):
		s.log.Warn("audit service shutdown timed out; some entries may be lost")
	}
}

func (s *AuditService) worker() {
	defer close(s.done)
	for entry := range s.entries {
		for i, sink := range s.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			err := sink.Write(ctx, entry)
			cancel()
			if err != nil {
				s.metrics.AuditSinkFailures.WithLabelValues(sink.Name()).Inc()
				s.log.Error("failed to write audit log",
					zap.String("sink", sink.Name()),
					zap.String("action", string(entry.Action)),
					zap.Error(err),
				)
				continue
			}
			if i == 0 {
				s.metrics.AuditEntriesTotal.Inc()
			}
		}
	}
}

func (s *AuditService) toLog(entry AuditEntry) *domain.AuditLog {
	al := &domain.AuditLog{
		ID:         uuid.New(),
		OccurredAt: time.Now().UTC(),
		UserRole:   entry.Caller.Role,
		IPAddress:  entry.Caller.IPAddress,
		UserAgent:  entry.Caller.UserAgent,
		RequestID:  entry.Caller.RequestID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
	}
	if entry.Caller.UserID != uuid.Nil {
		id := entry.Caller.UserID
		al.UserID = &id
	}

	meta := make(map[string]any, len(entry.Meta)+2)
	for k, v := range entry.Meta {
		meta[k] = v
	}
	if entry.Before != nil {
		meta["before"] = entry.Before
	}
	if entry.After != nil {
		meta["after"] = entry.After
	}
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			s.log.Warn("audit snapshot not serialisable", zap.String("action", string(entry.Action)), zap.Error(err))
		} else {
			al.Meta = string(raw)
		}
	}
	return al
}
