package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

type contentRepository interface {
	Create(ctx context.Context, item *models.ContentItem) error
	FindByID(ctx context.Context, id string) (*models.ContentItem, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.ContentItem, error)
	Update(ctx context.Context, item *models.ContentItem) error
	Delete(ctx context.Context, id string) error
}

type mediaCleaner interface {
	ScheduleCleanup(ownerID string, uris []string)
}

type mediaReferences interface {
	ReferencesMedia(ctx context.Context, uri string) (bool, error)
}

// ContentService manages one content type owned by teachers.
type ContentService struct {
	kind      models.ContentType
	repo      contentRepository
	cache     *CacheService
	media     mediaCleaner
	refs      []mediaReferences
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContentService constructs a ContentService for kind. cache and media may be nil.
func NewContentService(kind models.ContentType, repo contentRepository, cache *CacheService, media mediaCleaner, validate *validator.Validate, logger *zap.Logger) *ContentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ContentService{
		kind:      kind,
		repo:      repo,
		cache:     cache,
		media:     media,
		validator: validate,
		logger:    logger.With(zap.String("content_type", string(kind))),
	}
	if own, ok := repo.(mediaReferences); ok {
		svc.refs = []mediaReferences{own}
	}
	return svc
}

// WithMediaReferences replaces the collections consulted before an attachment is
// cleaned up. An attachment still referenced by any of them is kept.
func (s *ContentService) WithMediaReferences(refs ...mediaReferences) *ContentService {
	s.refs = refs
	return s
}

// Kind returns the content type handled by the service.
func (s *ContentService) Kind() models.ContentType {
	return s.kind
}

// Create stores a new item owned by ownerID.
func (s *ContentService) Create(ctx context.Context, ownerID string, input models.ContentInput) (*models.ContentItem, error) {
	input.Normalize()
	if input.Title == "" {
		return nil, appErrors.Validation("title is required")
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, appErrors.Validation("owner is required")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err, fmt.Sprintf("invalid %s payload", s.kind))
	}

	item := s.fromInput(input)
	item.UserID = ownerID
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, remoteError(err, fmt.Sprintf("failed to create %s", s.kind))
	}
	s.invalidate(ctx, ownerID)
	s.logger.Info("content created", zap.String("id", item.ID), zap.String("owner_id", ownerID))
	return item, nil
}

// ListForOwner returns the owner's items newest first. The second result reports a
// cache hit.
func (s *ContentService) ListForOwner(ctx context.Context, ownerID string) ([]models.ContentItem, bool, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, false, appErrors.ErrAuthRequired
	}
	var cached []models.ContentItem
	if s.cache.Get(ctx, s.cacheKey(ownerID), &cached) {
		return cached, true, nil
	}

	items, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, false, remoteError(err, fmt.Sprintf("failed to fetch %ss", s.kind))
	}
	models.SortNewestFirst(items, func(i models.ContentItem) *models.Timestamp { return i.CreatedAt })
	s.cache.Set(ctx, s.cacheKey(ownerID), items, 0)
	return items, false, nil
}

// Get returns a single item.
func (s *ContentService) Get(ctx context.Context, id string) (*models.ContentItem, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Validation("id is required")
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return item, nil
}

// Update overwrites every mutable field of the item. ownerID must be present but is
// not compared against the stored owner.
func (s *ContentService) Update(ctx context.Context, id, ownerID string, input models.ContentInput) (*models.ContentItem, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(ownerID) == "" {
		return nil, appErrors.Validation("id and owner are required")
	}
	input.Normalize()
	if input.Title == "" {
		return nil, appErrors.Validation("title is required")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err, fmt.Sprintf("invalid %s payload", s.kind))
	}

	previous, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, s.lookupError(err)
		}
		s.logger.Warn("could not load item before update", zap.String("id", id), zap.Error(err))
	}

	item := s.fromInput(input)
	item.ID = id
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, s.lookupError(err)
	}
	s.invalidate(ctx, item.UserID)
	if previous != nil {
		s.release(ctx, previous.UserID, droppedMedia(previous.MediaURIs(), item.MediaURIs()))
	}
	return item, nil
}

// Delete removes the item. Unknown ids succeed. Attachments of a deleted item are
// scheduled for cleanup.
func (s *ContentService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Validation("id is required")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil && !isNotFound(err) {
		s.logger.Warn("could not load item before delete", zap.String("id", id), zap.Error(err))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return remoteError(err, fmt.Sprintf("failed to delete %s", s.kind))
	}

	if existing == nil {
		s.cache.Invalidate(ctx, s.cacheKey("*"))
		return nil
	}
	s.invalidate(ctx, existing.UserID)
	s.release(ctx, existing.UserID, existing.MediaURIs())
	return nil
}

// release schedules cleanup of the attachments no stored item references any more.
// When the reference check fails the attachment is kept.
func (s *ContentService) release(ctx context.Context, ownerID string, uris []string) {
	if s.media == nil || len(uris) == 0 {
		return
	}
	orphaned := make([]string, 0, len(uris))
	for _, uri := range uris {
		shared, err := s.referenced(ctx, uri)
		if err != nil {
			s.logger.Warn("media reference check failed", zap.String("uri", uri), zap.Error(err))
			continue
		}
		if !shared {
			orphaned = append(orphaned, uri)
		}
	}
	if len(orphaned) > 0 {
		s.media.ScheduleCleanup(ownerID, orphaned)
	}
}

func (s *ContentService) referenced(ctx context.Context, uri string) (bool, error) {
	for _, refs := range s.refs {
		shared, err := refs.ReferencesMedia(ctx, uri)
		if err != nil || shared {
			return shared, err
		}
	}
	return false, nil
}

func droppedMedia(before, after []string) []string {
	kept := make(map[string]struct{}, len(after))
	for _, uri := range after {
		kept[uri] = struct{}{}
	}
	var dropped []string
	for _, uri := range before {
		if _, ok := kept[uri]; !ok {
			dropped = append(dropped, uri)
		}
	}
	return dropped
}

func (s *ContentService) fromInput(input models.ContentInput) *models.ContentItem {
	item := &models.ContentItem{
		Title:       input.Title,
		Description: input.Description,
		UserEmail:   input.UserEmail,
		ImageURL:    input.ImageURL,
		VideoURL:    input.VideoURL,
		AudioURL:    input.AudioURL,
	}
	if s.kind == models.ContentTechnic {
		item.Difficulty = input.Difficulty
		item.Instrument = input.Instrument
		item.Level = input.Level
	}
	return item
}

func (s *ContentService) lookupError(err error) error {
	if isNotFound(err) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", s.kind))
	}
	return remoteError(err, fmt.Sprintf("failed to access %s", s.kind))
}

func (s *ContentService) invalidate(ctx context.Context, ownerID string) {
	if ownerID == "" {
		ownerID = "*"
	}
	s.cache.Invalidate(ctx, s.cacheKey(ownerID))
}

func (s *ContentService) cacheKey(ownerID string) string {
	return fmt.Sprintf("content:%s:%s", s.kind, ownerID)
}
