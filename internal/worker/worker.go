// Package worker drains background jobs from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/metrics"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/queue"
)

// JobQueue is the queue the processor drains.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// AuditWriter persists access audit rows.
type AuditWriter interface {
	Insert(ctx context.Context, a *models.WebinarAccess) error
}

// AccessAuditProcessor writes queued access audit jobs to Postgres.
// Failed jobs are retried up to queue.MaxRetries times, then moved to the DLQ.
type AccessAuditProcessor struct {
	audit   AuditWriter
	queue   JobQueue
	backoff time.Duration
	logger  *zap.Logger
}

// NewAccessAuditProcessor creates an access audit processor.
func NewAccessAuditProcessor(audit AuditWriter, q JobQueue, logger *zap.Logger) *AccessAuditProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessAuditProcessor{audit: audit, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one access audit job.
func (p *AccessAuditProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAccessAudit {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AccessAuditPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	row := &models.WebinarAccess{
		WebinarID:  payload.WebinarID,
		UserID:     payload.UserID,
		AccessedAt: payload.AccessedAt,
		IPAddress:  payload.IPAddress,
		UserAgent:  payload.UserAgent,
	}
	if err := p.audit.Insert(ctx, row); err != nil {
		return fmt.Errorf("insert access audit: %w", err)
	}
	p.logger.Debug("access audit stored", zap.String("job_id", job.ID), zap.Int64("audit_id", row.ID))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *AccessAuditProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("access audit worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.Process(ctx, job); err != nil {
			metrics.AuditJobsTotal.WithLabelValues("retry").Inc()
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
			continue
		}
		metrics.AuditJobsTotal.WithLabelValues("ok").Inc()
	}
}

func (p *AccessAuditProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
