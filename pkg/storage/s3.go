package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const (
	// MaxOverlayFileSize is the maximum allowed overlay asset size (5MB).
	MaxOverlayFileSize = 5 * 1024 * 1024
	// FolderOverlays is the S3 prefix for overlay assets.
	FolderOverlays = "overlays"
)

// AllowedOverlayExtensions maps accepted overlay file extensions to MIME types.
var AllowedOverlayExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	OverlayBucket        string
	PresignExpireMinutes int
}

// S3 stores host overlay assets (banners, lower thirds, logos).
type S3 struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client. Static credentials are used when configured, otherwise the default chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	logger.Info("S3 overlay storage ready", zap.String("region", cfg.Region), zap.String("bucket", cfg.OverlayBucket))
	return &S3{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ContentTypeFor returns the MIME type for an overlay filename, or "" if the extension is not allowed.
func ContentTypeFor(filename string) string {
	return AllowedOverlayExtensions[strings.ToLower(path.Ext(filename))]
}

// OverlayKey returns the object key overlays/{webinar_id}/{unix_nano}-{filename}.
func OverlayKey(webinarID int64, filename string, now time.Time) string {
	name := strconv.FormatInt(now.UnixNano(), 10) + "-" + path.Base(filename)
	return path.Join(FolderOverlays, strconv.FormatInt(webinarID, 10), name)
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PresignOverlayUpload returns a pre-signed PUT URL for a direct browser upload.
func (s *S3) PresignOverlayUpload(ctx context.Context, key, contentType string) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.OverlayBucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
	})
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, nil
}

// UploadOverlay streams an overlay asset to the public overlay bucket and returns its URL.
func (s *S3) UploadOverlay(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.OverlayBucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return s.PublicURL(key), nil
}

// PublicURL returns the unsigned URL of an overlay object.
func (s *S3) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.OverlayBucket, s.cfg.Region, key)
}
