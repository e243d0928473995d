package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/pkg/docstore"
)

// ContentRepository stores one content type (lessons or techniques).
type ContentRepository struct {
	store docstore.Store
	kind  models.ContentType
}

// NewContentRepository binds the repository to the collection of kind.
func NewContentRepository(store docstore.Store, kind models.ContentType) *ContentRepository {
	return &ContentRepository{store: store, kind: kind}
}

// Kind returns the content type served by the repository.
func (r *ContentRepository) Kind() models.ContentType {
	return r.kind
}

// Create assigns an id, writes the item with server timestamps and reloads it.
func (r *ContentRepository) Create(ctx context.Context, item *models.ContentItem) error {
	id := r.store.NewID()
	fields := r.mutableFields(item)
	fields["userId"] = item.UserID
	fields["createdAt"] = docstore.ServerTimestamp()
	fields["updatedAt"] = docstore.ServerTimestamp()

	if err := r.store.Set(ctx, r.kind.Collection(), id, fields); err != nil {
		return fmt.Errorf("create %s: %w", r.kind, err)
	}
	return r.reload(ctx, id, item)
}

// FindByID returns a single item.
func (r *ContentRepository) FindByID(ctx context.Context, id string) (*models.ContentItem, error) {
	doc, err := r.store.Get(ctx, r.kind.Collection(), id)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", r.kind, err)
	}
	return decodeContent(doc)
}

// ListByOwner returns the items whose userId equals ownerID, in store order.
func (r *ContentRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ContentItem, error) {
	docs, err := r.store.Query(ctx, r.kind.Collection(), docstore.Where("userId", docstore.OpEqual, ownerID))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.kind, err)
	}
	items := make([]models.ContentItem, 0, len(docs))
	for i := range docs {
		item, err := decodeContent(&docs[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// Update overwrites every mutable field of item.ID and reloads it.
func (r *ContentRepository) Update(ctx context.Context, item *models.ContentItem) error {
	fields := r.mutableFields(item)
	fields["updatedAt"] = docstore.ServerTimestamp()
	if err := r.store.Update(ctx, r.kind.Collection(), item.ID, fields); err != nil {
		return fmt.Errorf("update %s: %w", r.kind, err)
	}
	return r.reload(ctx, item.ID, item)
}

// Delete removes the item. Missing ids are not an error.
func (r *ContentRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.kind.Collection(), id); err != nil {
		return fmt.Errorf("delete %s: %w", r.kind, err)
	}
	return nil
}

// ReferencesMedia reports whether any stored item attaches uri as its image, video or
// audio.
func (r *ContentRepository) ReferencesMedia(ctx context.Context, uri string) (bool, error) {
	for _, field := range []string{"imageUrl", "videoUrl", "audioUrl"} {
		docs, err := r.store.Query(ctx, r.kind.Collection(), docstore.Where(field, docstore.OpEqual, uri))
		if err != nil {
			return false, fmt.Errorf("query %s by %s: %w", r.kind, field, err)
		}
		if len(docs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *ContentRepository) mutableFields(item *models.ContentItem) docstore.Fields {
	fields := docstore.Fields{
		"title":       item.Title,
		"description": item.Description,
		"userEmail":   item.UserEmail,
		"imageUrl":    item.ImageURL,
		"videoUrl":    item.VideoURL,
		"audioUrl":    item.AudioURL,
	}
	if r.kind == models.ContentTechnic {
		fields["difficulty"] = item.Difficulty
		fields["instrument"] = item.Instrument
		fields["level"] = item.Level
	}
	return fields
}

func (r *ContentRepository) reload(ctx context.Context, id string, item *models.ContentItem) error {
	stored, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	*item = *stored
	return nil
}

func decodeContent(doc *docstore.Document) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := doc.DataTo(&item); err != nil {
		return nil, err
	}
	item.ID = doc.ID
	return &item, nil
}
