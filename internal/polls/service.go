// Package polls runs multiple-choice polls during a webinar.
package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/pkg/database"
)

var (
	ErrNotFound     = errors.New("poll not found")
	ErrForbidden    = errors.New("only the webinar host or an admin may manage polls")
	ErrNotOpen      = errors.New("poll is not open for answers")
	ErrInvalidInput = errors.New("invalid poll")
)

// Store is the poll persistence the service needs.
type Store interface {
	Create(ctx context.Context, p *models.Poll) error
	GetByID(ctx context.Context, id int64) (*models.Poll, error)
	ListByWebinar(ctx context.Context, webinarID int64) ([]models.Poll, error)
	Launch(ctx context.Context, id int64) error
	Close(ctx context.Context, id int64) error
	Answer(ctx context.Context, pollID, userID int64, option string) error
	Tally(ctx context.Context, pollID int64) (models.PollTally, error)
}

// HostLookup returns the host user of a webinar.
type HostLookup interface {
	HostOf(ctx context.Context, webinarID int64) (int64, error)
}

// Broadcaster sends an event to every connection of a webinar.
type Broadcaster interface {
	Broadcast(webinarID int64, event string, payload interface{})
}

// Input carries a new poll.
type Input struct {
	Question string
	Options  [4]string // A..D; C and D may be empty
}

// Service manages polls.
type Service struct {
	store  Store
	hosts  HostLookup
	out    Broadcaster
	logger *zap.Logger
}

// NewService creates a poll service.
func NewService(store Store, hosts HostLookup, out Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, hosts: hosts, out: out, logger: logger}
}

func (s *Service) authorize(ctx context.Context, webinarID, userID int64, role models.Role) error {
	if role == models.RoleAdmin {
		return nil
	}
	host, err := s.hosts.HostOf(ctx, webinarID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("webinar host: %w", err)
	}
	if host != userID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) get(ctx context.Context, id int64) (*models.Poll, error) {
	p, err := s.store.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

// Create stores a poll. It stays hidden from the audience until launched.
func (s *Service) Create(ctx context.Context, userID int64, role models.Role, webinarID int64, in Input) (*models.Poll, error) {
	for i := range in.Options {
		in.Options[i] = strings.TrimSpace(in.Options[i])
	}
	in.Question = strings.TrimSpace(in.Question)
	if in.Question == "" || in.Options[0] == "" || in.Options[1] == "" {
		return nil, fmt.Errorf("%w: question and options A and B are required", ErrInvalidInput)
	}
	if in.Options[2] == "" && in.Options[3] != "" {
		return nil, fmt.Errorf("%w: option D needs option C", ErrInvalidInput)
	}
	if err := s.authorize(ctx, webinarID, userID, role); err != nil {
		return nil, err
	}
	p := &models.Poll{
		WebinarID: webinarID,
		Question:  in.Question,
		OptionA:   in.Options[0],
		OptionB:   in.Options[1],
		OptionC:   in.Options[2],
		OptionD:   in.Options[3],
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}
	return p, nil
}

// Launch opens a poll and announces it to the webinar.
func (s *Service) Launch(ctx context.Context, userID int64, role models.Role, pollID int64) (*models.Poll, error) {
	p, err := s.get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p.WebinarID, userID, role); err != nil {
		return nil, err
	}
	if err := s.store.Launch(ctx, pollID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: already launched", ErrInvalidInput)
		}
		return nil, fmt.Errorf("launch poll: %w", err)
	}
	p.Launched = true
	s.out.Broadcast(p.WebinarID, realtime.EventPollCreated, realtime.PollCreated{
		Version:   realtime.PayloadVersion,
		PollID:    p.ID,
		WebinarID: p.WebinarID,
		Question:  p.Question,
		Options:   options(p),
	})
	return p, nil
}

// Close stops a poll and announces the final tally.
func (s *Service) Close(ctx context.Context, userID int64, role models.Role, pollID int64) (models.PollTally, error) {
	p, err := s.get(ctx, pollID)
	if err != nil {
		return models.PollTally{}, err
	}
	if err := s.authorize(ctx, p.WebinarID, userID, role); err != nil {
		return models.PollTally{}, err
	}
	if err := s.store.Close(ctx, pollID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.PollTally{}, ErrNotOpen
		}
		return models.PollTally{}, fmt.Errorf("close poll: %w", err)
	}
	t, err := s.store.Tally(ctx, pollID)
	if err != nil {
		return models.PollTally{}, fmt.Errorf("tally poll: %w", err)
	}
	s.out.Broadcast(p.WebinarID, realtime.EventPollClosed, realtime.PollClosed{
		Version:   realtime.PayloadVersion,
		PollID:    p.ID,
		WebinarID: p.WebinarID,
		Results:   results(p, t),
	})
	return t, nil
}

// Answer records the caller's choice on an open poll.
func (s *Service) Answer(ctx context.Context, userID, pollID int64, option string) error {
	p, err := s.get(ctx, pollID)
	if err != nil {
		return err
	}
	if !p.Launched || p.Closed {
		return ErrNotOpen
	}
	option = strings.ToUpper(strings.TrimSpace(option))
	if !hasOption(p, option) {
		return fmt.Errorf("%w: unknown option %q", ErrInvalidInput, option)
	}
	if err := s.store.Answer(ctx, pollID, userID, option); err != nil {
		return fmt.Errorf("answer poll: %w", err)
	}
	return nil
}

// Results returns the current tally of a poll.
func (s *Service) Results(ctx context.Context, pollID int64) (models.PollTally, error) {
	if _, err := s.get(ctx, pollID); err != nil {
		return models.PollTally{}, err
	}
	return s.store.Tally(ctx, pollID)
}

// List returns the polls of a webinar. The audience only sees launched polls.
func (s *Service) List(ctx context.Context, webinarID int64, staff bool) ([]models.Poll, error) {
	list, err := s.store.ListByWebinar(ctx, webinarID)
	if err != nil || staff {
		return list, err
	}
	visible := list[:0]
	for _, p := range list {
		if p.Launched {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

func options(p *models.Poll) []string {
	out := []string{p.OptionA, p.OptionB}
	for _, o := range []string{p.OptionC, p.OptionD} {
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func hasOption(p *models.Poll, option string) bool {
	switch option {
	case "A", "B":
		return true
	case "C":
		return p.OptionC != ""
	case "D":
		return p.OptionD != ""
	}
	return false
}

func results(p *models.Poll, t models.PollTally) map[string]int {
	out := map[string]int{"A": t.A, "B": t.B}
	if p.OptionC != "" {
		out["C"] = t.C
	}
	if p.OptionD != "" {
		out["D"] = t.D
	}
	return out
}
