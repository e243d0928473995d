package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
	"github.com/noah-isme/studio-api/pkg/jobs"
	"github.com/noah-isme/studio-api/pkg/storage"
)

// MediaScheme prefixes the stable references stored on content items.
const MediaScheme = "media://"

const (
	sniffLen           = 3072
	jobKindMediaDelete = "media.cleanup"
)

// MediaConfig configures uploads.
type MediaConfig struct {
	MaxFileSize     int64
	AllowedPrefixes []string
	// PublicPath is prepended to tokens to build download URLs, e.g. "/api/v1/media".
	PublicPath string
}

type mediaCleanupPayload struct {
	OwnerID string
	Path    string
}

// MediaService stores content attachments on disk and hands out signed download links.
type MediaService struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	queue   *jobs.Queue
	metrics *MetricsService
	cfg     MediaConfig
	logger  *zap.Logger
}

// NewMediaService constructs a MediaService. queue and metrics may be nil.
func NewMediaService(store *storage.LocalStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg MediaConfig, logger *zap.Logger) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 * 1024 * 1024
	}
	cfg.PublicPath = strings.TrimRight(cfg.PublicPath, "/")
	return &MediaService{storage: store, signer: signer, metrics: metrics, cfg: cfg, logger: logger}
}

// AttachQueue routes cleanup work through queue. The queue handler must be CleanupJob.
func (s *MediaService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Upload sniffs, validates and stores an attachment for ownerID.
func (s *MediaService) Upload(ctx context.Context, ownerID string, r io.Reader) (*models.MediaUpload, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, appErrors.ErrAuthRequired
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Validation("failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return nil, appErrors.Validation("file is empty")
	}

	mtype := mimetype.Detect(head)
	if !s.allowed(mtype.String()) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("media type %s is not allowed", mtype.String()))
	}

	relPath := path.Join(ownerID, uuid.NewString()+mtype.Extension())
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.cfg.MaxFileSize+1)
	size, err := s.storage.SaveStream(relPath, body)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store media")
	}
	if size > s.cfg.MaxFileSize {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Validation(fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileSize))
	}
	if s.metrics != nil {
		s.metrics.AddMediaBytes(size)
	}

	signed, err := s.sign(ownerID, relPath)
	if err != nil {
		return nil, err
	}
	s.logger.Info("media stored", zap.String("owner_id", ownerID), zap.String("uri", signed.URI), zap.Int64("size", size))
	return &models.MediaUpload{
		URI:         signed.URI,
		URL:         signed.URL,
		ContentType: mtype.String(),
		Size:        size,
		ExpiresAt:   signed.ExpiresAt,
	}, nil
}

// Sign issues a fresh download link for a media URI owned by ownerID.
func (s *MediaService) Sign(ownerID, uri string) (*models.SignedMediaURL, error) {
	relPath, ok := s.ownedPath(ownerID, uri)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
	}
	if !s.storage.Exists(relPath) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
	}
	return s.sign(ownerID, relPath)
}

// Open resolves a download token to the stored file and its media type. The caller
// closes the file.
func (s *MediaService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	case err != nil:
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "media not found")
	}
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		file.Close()
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read media")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read media")
	}
	return file, mtype.String(), nil
}

// ScheduleCleanup queues deletion of the attachments in uris that belong to ownerID.
// Foreign URLs are ignored.
func (s *MediaService) ScheduleCleanup(ownerID string, uris []string) {
	for _, uri := range uris {
		relPath, ok := s.ownedPath(ownerID, uri)
		if !ok {
			continue
		}
		job := jobs.Job{
			ID:      uuid.NewString(),
			Kind:    jobKindMediaDelete,
			Payload: mediaCleanupPayload{OwnerID: ownerID, Path: relPath},
		}
		if s.queue == nil {
			if err := s.CleanupJob(context.Background(), job); err != nil {
				s.logger.Warn("media cleanup failed", zap.String("uri", uri), zap.Error(err))
			}
			continue
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("media cleanup not queued", zap.String("uri", uri), zap.Error(err))
		}
	}
}

// CleanupJob is the jobs.Handler deleting one orphaned attachment.
func (s *MediaService) CleanupJob(_ context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(mediaCleanupPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Kind)
	}
	if err := s.storage.Delete(payload.Path); err != nil {
		return err
	}
	s.logger.Debug("media deleted", zap.String("owner_id", payload.OwnerID), zap.String("path", payload.Path))
	return nil
}

func (s *MediaService) sign(ownerID, relPath string) (*models.SignedMediaURL, error) {
	token, expiresAt, err := s.signer.Generate(ownerID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign media url")
	}
	return &models.SignedMediaURL{
		URI:       MediaScheme + relPath,
		URL:       s.cfg.PublicPath + "/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// ownedPath extracts the storage path of a media URI if it lives under ownerID.
func (s *MediaService) ownedPath(ownerID, uri string) (string, bool) {
	if ownerID == "" || !strings.HasPrefix(uri, MediaScheme) {
		return "", false
	}
	relPath := path.Clean(strings.TrimPrefix(uri, MediaScheme))
	if !strings.HasPrefix(relPath, ownerID+"/") {
		return "", false
	}
	return relPath, true
}

func (s *MediaService) allowed(contentType string) bool {
	if len(s.cfg.AllowedPrefixes) == 0 {
		return true
	}
	for _, prefix := range s.cfg.AllowedPrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
