// Package overlays manages host overlay images stored in S3.
package overlays

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/pkg/database"
	"github.com/aura-webinar/live/pkg/storage"
)

var (
	ErrWebinarNotFound = errors.New("webinar not found")
	ErrForbidden       = errors.New("only the webinar host or an admin may manage overlays")
	ErrUnsupportedType = errors.New("unsupported overlay file type")
	ErrTooLarge        = errors.New("overlay file exceeds 5MB")
	ErrInvalidKey      = errors.New("overlay key does not belong to this webinar")
)

// Storage is the object store for overlay assets.
type Storage interface {
	PresignOverlayUpload(ctx context.Context, key, contentType string) (string, error)
	UploadOverlay(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	PublicURL(key string) string
	PresignExpire() time.Duration
}

// HostLookup returns the host user of a webinar.
type HostLookup interface {
	HostOf(ctx context.Context, webinarID int64) (int64, error)
}

// OverlayBroadcaster publishes an authorized overlay.
type OverlayBroadcaster interface {
	BroadcastOverlay(ctx context.Context, webinarID, userID int64, token string, o realtime.Overlay) error
}

// UploadTicket tells the browser where to PUT an overlay image.
type UploadTicket struct {
	UploadURL   string    `json:"upload_url"`
	Key         string    `json:"key"`
	PublicURL   string    `json:"public_url"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service issues upload URLs and shows uploaded overlays.
type Service struct {
	storage Storage
	hosts   HostLookup
	relay   OverlayBroadcaster
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates an overlay asset service.
func NewService(storage Storage, hosts HostLookup, relay OverlayBroadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{storage: storage, hosts: hosts, relay: relay, now: time.Now, logger: logger}
}

func (s *Service) authorize(ctx context.Context, webinarID, userID int64, role models.Role) error {
	host, err := s.hosts.HostOf(ctx, webinarID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrWebinarNotFound
	}
	if err != nil {
		return fmt.Errorf("webinar host: %w", err)
	}
	if role != models.RoleAdmin && host != userID {
		return ErrForbidden
	}
	return nil
}

func checkFile(filename string, size int64) (string, error) {
	contentType := storage.ContentTypeFor(filename)
	if contentType == "" {
		return "", ErrUnsupportedType
	}
	if size <= 0 || size > storage.MaxOverlayFileSize {
		return "", ErrTooLarge
	}
	return contentType, nil
}

// RequestUpload returns a presigned PUT URL for a new overlay image.
func (s *Service) RequestUpload(ctx context.Context, userID int64, role models.Role, webinarID int64, filename string, size int64) (*UploadTicket, error) {
	contentType, err := checkFile(filename, size)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, webinarID, userID, role); err != nil {
		return nil, err
	}
	now := s.now()
	key := storage.OverlayKey(webinarID, filename, now)
	url, err := s.storage.PresignOverlayUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign overlay: %w", err)
	}
	return &UploadTicket{
		UploadURL:   url,
		Key:         key,
		PublicURL:   s.storage.PublicURL(key),
		ContentType: contentType,
		ExpiresAt:   now.Add(s.storage.PresignExpire()),
	}, nil
}

// Upload stores an overlay image sent through the API and returns its key and URL.
func (s *Service) Upload(ctx context.Context, userID int64, role models.Role, webinarID int64, filename string, size int64, body io.Reader) (string, string, error) {
	contentType, err := checkFile(filename, size)
	if err != nil {
		return "", "", err
	}
	if err := s.authorize(ctx, webinarID, userID, role); err != nil {
		return "", "", err
	}
	key := storage.OverlayKey(webinarID, filename, s.now())
	url, err := s.storage.UploadOverlay(ctx, key, contentType, io.LimitReader(body, storage.MaxOverlayFileSize))
	if err != nil {
		return "", "", fmt.Errorf("upload overlay: %w", err)
	}
	s.logger.Info("overlay uploaded", zap.Int64("webinar_id", webinarID), zap.String("key", key))
	return key, url, nil
}

// Show broadcasts an uploaded image as an overlay. The relay enforces host role and broadcast token.
func (s *Service) Show(ctx context.Context, userID, webinarID int64, token, key, caption string) (string, error) {
	prefix := path.Join(storage.FolderOverlays, strconv.FormatInt(webinarID, 10)) + "/"
	if !strings.HasPrefix(key, prefix) || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	url := s.storage.PublicURL(key)
	err := s.relay.BroadcastOverlay(ctx, webinarID, userID, token, realtime.Overlay{
		Kind:     realtime.OverlayImage,
		ImageURL: url,
		Text:     caption,
	})
	if err != nil {
		return "", err
	}
	return url, nil
}
