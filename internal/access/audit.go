package access

import (
	"context"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/queue"
)

// AuditSink records granted accesses.
type AuditSink interface {
	Record(ctx context.Context, a models.WebinarAccess) error
}

// QueueSink hands audit rows to the Redis job queue; the worker writes them to Postgres.
type QueueSink struct {
	q *queue.Queue
}

// NewQueueSink creates a queue-backed audit sink.
func NewQueueSink(q *queue.Queue) *QueueSink {
	return &QueueSink{q: q}
}

// Record enqueues an access audit job.
func (s *QueueSink) Record(ctx context.Context, a models.WebinarAccess) error {
	return s.q.EnqueueAccessAudit(ctx, queue.AccessAuditPayload{
		WebinarID:  a.WebinarID,
		UserID:     a.UserID,
		AccessedAt: a.AccessedAt,
		IPAddress:  a.IPAddress,
		UserAgent:  a.UserAgent,
	})
}

// RepositorySink writes audit rows straight to Postgres. Used when no queue is configured.
type RepositorySink struct {
	repo *Repository
}

// NewRepositorySink creates a direct audit sink.
func NewRepositorySink(repo *Repository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

// Record inserts the audit row.
func (s *RepositorySink) Record(ctx context.Context, a models.WebinarAccess) error {
	return s.repo.Insert(ctx, &a)
}
