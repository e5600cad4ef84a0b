// Package questions collects audience questions and publishes the approved ones.
package questions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/pkg/database"
)

// MaxContentLength bounds a question in runes.
const MaxContentLength = 1000

var (
	ErrNotFound        = errors.New("question not found")
	ErrWebinarNotFound = errors.New("webinar not found")
	ErrForbidden       = errors.New("only the webinar host or an admin may moderate questions")
	ErrAlreadyApproved = errors.New("question already approved")
	ErrInvalidContent  = errors.New("question must be 1-1000 characters")
)

// Store is the question persistence the service needs.
type Store interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id int64) (*models.Question, error)
	ListByWebinar(ctx context.Context, webinarID int64, approvedOnly bool) ([]models.Question, error)
	Approve(ctx context.Context, id int64) error
	MarkAnswered(ctx context.Context, id int64) error
}

// HostLookup returns the host user of a webinar.
type HostLookup interface {
	HostOf(ctx context.Context, webinarID int64) (int64, error)
}

// Broadcaster sends an event to every connection of a webinar.
type Broadcaster interface {
	Broadcast(webinarID int64, event string, payload interface{})
}

// Service moderates audience questions.
type Service struct {
	store  Store
	hosts  HostLookup
	out    Broadcaster
	logger *zap.Logger
}

// NewService creates a question service.
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
		return ErrWebinarNotFound
	}
	if err != nil {
		return fmt.Errorf("webinar host: %w", err)
	}
	if host != userID {
		return ErrForbidden
	}
	return nil
}

// Ask stores a question for moderation. Nothing is broadcast until it is approved.
func (s *Service) Ask(ctx context.Context, userID, webinarID int64, content string) (*models.Question, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrInvalidContent
	}
	if _, err := s.hosts.HostOf(ctx, webinarID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrWebinarNotFound
		}
		return nil, fmt.Errorf("webinar host: %w", err)
	}
	q := &models.Question{WebinarID: webinarID, UserID: userID, Content: content}
	if err := s.store.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

func (s *Service) moderate(ctx context.Context, userID int64, role models.Role, id int64) (*models.Question, error) {
	q, err := s.store.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	if err := s.authorize(ctx, q.WebinarID, userID, role); err != nil {
		return nil, err
	}
	return q, nil
}

// Approve publishes a question to the webinar as QuestionAsked.
func (s *Service) Approve(ctx context.Context, userID int64, role models.Role, id int64) (*models.Question, error) {
	q, err := s.moderate(ctx, userID, role, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Approve(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAlreadyApproved
		}
		return nil, fmt.Errorf("approve question: %w", err)
	}
	q.Approved = true
	s.out.Broadcast(q.WebinarID, realtime.EventQuestionAsked, realtime.QuestionAsked{
		Version:    realtime.PayloadVersion,
		QuestionID: q.ID,
		WebinarID:  q.WebinarID,
		UserID:     q.UserID,
		Content:    q.Content,
		AskedAt:    q.CreatedAt,
	})
	return q, nil
}

// MarkAnswered flags a question as answered by the host.
func (s *Service) MarkAnswered(ctx context.Context, userID int64, role models.Role, id int64) (*models.Question, error) {
	q, err := s.moderate(ctx, userID, role, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkAnswered(ctx, id); err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	q.Answered = true
	return q, nil
}

// List returns questions of a webinar. Staff also see the moderation queue.
func (s *Service) List(ctx context.Context, webinarID int64, staff bool) ([]models.Question, error) {
	return s.store.ListByWebinar(ctx, webinarID, !staff)
}
