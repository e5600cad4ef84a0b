// Package presence tracks which connections are attached to which webinar and
// publishes live viewer/participant counts.
package presence

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// ReasonReplaced is sent to a connection superseded by a newer one of the same user in the same webinar.
const ReasonReplaced = "joined this webinar from another connection"

// Store is the persistence the registry needs.
type Store interface {
	Upsert(ctx context.Context, p *models.Participant) (replacedConnID string, err error)
	GetByConnection(ctx context.Context, connID string) (*models.Participant, error)
	GetByUserAndWebinar(ctx context.Context, userID, webinarID int64) (*models.Participant, error)
	DeleteByConnection(ctx context.Context, connID string) (*models.Participant, error)
	DeleteByUser(ctx context.Context, userID int64) ([]models.Participant, error)
	Counts(ctx context.Context, webinarID int64) (viewers, participants int, err error)
	ExistsForUser(ctx context.Context, userID int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Router is the group transport the registry drives.
type Router interface {
	Join(webinarID int64, connID string) bool
	Leave(webinarID int64, connID string)
	BroadcastCounts(webinarID int64, viewers, participants int)
	Disconnect(connID, reason, newLocation string) bool
}

// CountsHook observes every counts broadcast (peak tracking, metrics).
type CountsHook func(ctx context.Context, webinarID int64, viewers, participants int)

// Registry maintains participant rows and group membership.
// Register, Deregister and the following count for one webinar are serialised,
// so counts broadcast by a single instance reflect the committed state.
type Registry struct {
	store  Store
	router Router
	locks  *keyedMutex
	hooks  []CountsHook
	logger *zap.Logger
}

// NewRegistry creates a presence registry.
func NewRegistry(store Store, router Router, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, router: router, locks: newKeyedMutex(), logger: logger}
}

// OnCounts adds a hook called after each counts broadcast. Not safe to call once traffic flows.
func (r *Registry) OnCounts(h CountsHook) {
	r.hooks = append(r.hooks, h)
}

// Register tracks a connection in a webinar. userID <= 0 is replaced by a synthetic id.
// A previous connection of the same user in the same webinar is dropped from the group
// and told to disconnect.
func (r *Registry) Register(ctx context.Context, connID string, webinarID, userID int64, role models.ParticipantRole) (*models.Participant, error) {
	if webinarID <= 0 {
		return nil, ErrInvalidWebinar
	}
	if userID <= 0 {
		userID = SyntheticUserID(connID)
	}
	if role != models.ParticipantHost {
		role = models.ParticipantViewer
	}

	unlock := r.locks.Lock(webinarID)
	defer unlock()

	p := &models.Participant{WebinarID: webinarID, UserID: userID, ConnectionID: connID, Role: role}
	replaced, err := r.store.Upsert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("upsert participant: %w", err)
	}
	if replaced != "" && replaced != connID {
		r.router.Leave(webinarID, replaced)
		r.router.Disconnect(replaced, ReasonReplaced, "")
		r.logger.Info("participant connection replaced",
			zap.Int64("webinar_id", webinarID), zap.Int64("user_id", userID),
			zap.String("old_connection_id", replaced), zap.String("connection_id", connID))
	}
	r.router.Join(webinarID, connID)
	r.emitCountsLocked(ctx, webinarID)
	return p, nil
}

// Deregister stops tracking a connection. Unknown connections are a no-op and return (nil, nil).
func (r *Registry) Deregister(ctx context.Context, connID string) (*models.Participant, error) {
	p, err := r.store.GetByConnection(ctx, connID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}

	unlock := r.locks.Lock(p.WebinarID)
	defer unlock()

	p, err = r.store.DeleteByConnection(ctx, connID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete participant: %w", err)
	}
	r.router.Leave(p.WebinarID, connID)
	r.emitCountsLocked(ctx, p.WebinarID)
	return p, nil
}

// CountsFor returns the live (viewers, participants) of a webinar.
func (r *Registry) CountsFor(ctx context.Context, webinarID int64) (int, int, error) {
	return r.store.Counts(ctx, webinarID)
}

// Lookup returns the participant row of a connection.
func (r *Registry) Lookup(ctx context.Context, connID string) (*models.Participant, error) {
	return r.store.GetByConnection(ctx, connID)
}

// RoleOf returns the role a user holds in a webinar, or database.ErrNotFound.
func (r *Registry) RoleOf(ctx context.Context, userID, webinarID int64) (models.ParticipantRole, error) {
	p, err := r.store.GetByUserAndWebinar(ctx, userID, webinarID)
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

// HasActiveSession reports whether the user has any live connection.
func (r *Registry) HasActiveSession(ctx context.Context, userID int64) (bool, error) {
	return r.store.ExistsForUser(ctx, userID)
}

// EvictUser removes every participant row of a user, sends ForceDisconnect to
// each of its connections and refreshes counts of the affected webinars.
func (r *Registry) EvictUser(ctx context.Context, userID int64, reason, newLocation string) (int, error) {
	rows, err := r.store.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete participants: %w", err)
	}
	webinars := make(map[int64]struct{})
	for _, p := range rows {
		r.router.Leave(p.WebinarID, p.ConnectionID)
		r.router.Disconnect(p.ConnectionID, reason, newLocation)
		webinars[p.WebinarID] = struct{}{}
	}
	for id := range webinars {
		unlock := r.locks.Lock(id)
		r.emitCountsLocked(ctx, id)
		unlock()
	}
	if len(rows) > 0 {
		r.logger.Info("user sessions evicted", zap.Int64("user_id", userID), zap.Int("connections", len(rows)))
	}
	return len(rows), nil
}

// ClearStale deletes every participant row. Run once at startup: no connection survives a restart.
// Rows are not scoped per instance, so with the Redis backplane it also drops the rows of
// instances still running; restart all instances together.
func (r *Registry) ClearStale(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear participants: %w", err)
	}
	r.logger.Info("stale participants cleared", zap.Int64("rows", n))
	return n, nil
}

func (r *Registry) emitCountsLocked(ctx context.Context, webinarID int64) {
	viewers, participants, err := r.store.Counts(ctx, webinarID)
	if err != nil {
		r.logger.Error("count participants", zap.Int64("webinar_id", webinarID), zap.Error(err))
		return
	}
	r.router.BroadcastCounts(webinarID, viewers, participants)
	for _, h := range r.hooks {
		h(ctx, webinarID, viewers, participants)
	}
}
