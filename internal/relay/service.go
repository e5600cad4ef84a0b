// Package relay validates and fans out host overlays and audience chat.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/auth"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/pkg/database"
)

// MaxChatLength bounds a chat line in runes.
const MaxChatLength = 1000

var (
	ErrForbidden      = errors.New("only the webinar host may broadcast overlays")
	ErrNotParticipant = errors.New("connection is not a participant of this webinar")
	ErrInvalidMessage = errors.New("invalid message")
)

// Participants resolves who is connected to a webinar.
type Participants interface {
	RoleOf(ctx context.Context, userID, webinarID int64) (models.ParticipantRole, error)
	Lookup(ctx context.Context, connID string) (*models.Participant, error)
}

// TokenValidator checks signed broadcast tokens.
type TokenValidator interface {
	ValidateBroadcast(token string, webinarID int64) (*auth.Claims, error)
}

// Broadcaster delivers typed payloads to a webinar group.
type Broadcaster interface {
	BroadcastOverlay(webinarID int64, o realtime.Overlay)
	BroadcastChat(webinarID int64, m realtime.ChatMessage)
}

// Service relays overlays and chat to webinar groups.
type Service struct {
	participants Participants
	tokens       TokenValidator
	out          Broadcaster
	now          func() time.Time
	logger       *zap.Logger
}

// NewService creates a relay service.
func NewService(participants Participants, tokens TokenValidator, out Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{participants: participants, tokens: tokens, out: out, now: time.Now, logger: logger}
}

// BroadcastOverlay sends an overlay to every connection of the webinar. The caller must
// be connected as host AND present a broadcast token for that webinar issued to them.
func (s *Service) BroadcastOverlay(ctx context.Context, webinarID, userID int64, token string, o realtime.Overlay) error {
	o.Kind = strings.ToLower(strings.TrimSpace(o.Kind))
	if o.Kind == "" {
		return fmt.Errorf("%w: overlay kind is required", ErrInvalidMessage)
	}
	if err := s.authorizeHost(ctx, webinarID, userID, token); err != nil {
		return err
	}
	o.SentBy = userID
	o.SentAt = s.now().UTC()
	s.out.BroadcastOverlay(webinarID, o)
	s.logger.Info("overlay broadcast",
		zap.Int64("webinar_id", webinarID), zap.Int64("user_id", userID), zap.String("kind", o.Kind))
	return nil
}

func (s *Service) authorizeHost(ctx context.Context, webinarID, userID int64, token string) error {
	role, err := s.participants.RoleOf(ctx, userID, webinarID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("participant role: %w", err)
	}
	if role != models.ParticipantHost {
		return ErrForbidden
	}
	claims, err := s.tokens.ValidateBroadcast(token, webinarID)
	if err != nil || claims.UserID != userID {
		s.logger.Warn("overlay rejected: broadcast token mismatch",
			zap.Int64("webinar_id", webinarID), zap.Int64("user_id", userID))
		return ErrForbidden
	}
	return nil
}

// SendChat relays a chat line from a tracked connection to its webinar.
func (s *Service) SendChat(ctx context.Context, connID string, webinarID int64, name, text string) (*realtime.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > MaxChatLength {
		return nil, fmt.Errorf("%w: chat text must be 1-%d characters", ErrInvalidMessage, MaxChatLength)
	}
	p, err := s.participants.Lookup(ctx, connID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("lookup participant: %w", err)
	}
	if p.WebinarID != webinarID {
		return nil, ErrNotParticipant
	}
	m := realtime.ChatMessage{
		ID:     uuid.New().String(),
		UserID: p.UserID,
		Name:   strings.TrimSpace(name),
		Text:   text,
		SentAt: s.now().UTC(),
	}
	s.out.BroadcastChat(webinarID, m)
	m.Version = realtime.PayloadVersion
	m.WebinarID = webinarID
	return &m, nil
}
