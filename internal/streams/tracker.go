// Package streams records one session per live run of a webinar and its peak presence.
package streams

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// Store is the session persistence the tracker needs.
type Store interface {
	Start(ctx context.Context, webinarID int64) (*models.StreamSession, error)
	End(ctx context.Context, webinarID int64) (*models.StreamSession, error)
	RaisePeaks(ctx context.Context, webinarID int64, viewers, participants int) error
	ListByWebinar(ctx context.Context, webinarID int64) ([]models.StreamSession, error)
	ListOpen(ctx context.Context) ([]models.StreamSession, error)
}

type peak struct {
	viewers      int
	participants int
}

// Tracker opens a session when a webinar goes live, closes it when the webinar
// ends and raises its peaks from presence counts.
type Tracker struct {
	store  Store
	mu     sync.Mutex
	peaks  map[int64]peak // open sessions only
	logger *zap.Logger
}

// NewTracker creates a stream session tracker.
func NewTracker(store Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, peaks: make(map[int64]peak), logger: logger}
}

// Restore reloads the sessions left open by a previous process, so webinars that
// stayed live across a restart keep recording peaks. Call once before traffic flows.
func (t *Tracker) Restore(ctx context.Context) (int, error) {
	open, err := t.store.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open sessions: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range open {
		t.peaks[s.WebinarID] = peak{viewers: s.PeakViewers, participants: s.PeakParticipants}
	}
	return len(open), nil
}

// OnStatusChange starts or ends the session of a webinar. Use as a webinar status hook.
func (t *Tracker) OnStatusChange(ctx context.Context, w *models.Webinar, from models.WebinarStatus) {
	switch w.Status {
	case models.StatusLive:
		s, err := t.store.Start(ctx, w.ID)
		if err != nil {
			t.logger.Error("start stream session", zap.Int64("webinar_id", w.ID), zap.Error(err))
			return
		}
		t.mu.Lock()
		t.peaks[w.ID] = peak{viewers: s.PeakViewers, participants: s.PeakParticipants}
		t.mu.Unlock()
		t.logger.Info("stream session started", zap.Int64("webinar_id", w.ID), zap.Int64("session_id", s.ID))
	case models.StatusCompleted, models.StatusCancelled:
		t.mu.Lock()
		delete(t.peaks, w.ID)
		t.mu.Unlock()
		s, err := t.store.End(ctx, w.ID)
		if errors.Is(err, database.ErrNotFound) {
			return
		}
		if err != nil {
			t.logger.Error("end stream session", zap.Int64("webinar_id", w.ID), zap.Error(err))
			return
		}
		t.logger.Info("stream session ended",
			zap.Int64("webinar_id", w.ID), zap.String("from", string(from)),
			zap.Int("peak_viewers", s.PeakViewers), zap.Int("peak_participants", s.PeakParticipants))
	}
}

// ObserveCounts raises the peaks of an open session. Use as a presence counts hook.
// Counts for webinars without an open session are ignored.
func (t *Tracker) ObserveCounts(ctx context.Context, webinarID int64, viewers, participants int) {
	t.mu.Lock()
	p, open := t.peaks[webinarID]
	if !open || (viewers <= p.viewers && participants <= p.participants) {
		t.mu.Unlock()
		return
	}
	p.viewers = max(p.viewers, viewers)
	p.participants = max(p.participants, participants)
	t.peaks[webinarID] = p
	t.mu.Unlock()

	if err := t.store.RaisePeaks(ctx, webinarID, viewers, participants); err != nil {
		t.logger.Warn("raise stream peaks", zap.Int64("webinar_id", webinarID), zap.Error(err))
	}
}

// Sessions lists the sessions of a webinar.
func (t *Tracker) Sessions(ctx context.Context, webinarID int64) ([]models.StreamSession, error) {
	return t.store.ListByWebinar(ctx, webinarID)
}
