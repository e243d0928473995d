package session

import (
	"context"
	"sync"

	"github.com/noah-isme/studio-api/internal/models"
)

// Library is a teacher's list of lessons or techniques. Mutations are written to the
// backend first; the local list only changes once the backend accepted the write.
type Library struct {
	kind    models.ContentType
	backend ContentBackend
	scope   *Scope
	tracker *Tracker

	mu    sync.RWMutex
	items []models.ContentItem
}

func newLibrary(kind models.ContentType, backend ContentBackend, scope *Scope, tracker *Tracker) *Library {
	return &Library{kind: kind, backend: backend, scope: scope, tracker: tracker}
}

// Kind returns the content type held by the library.
func (l *Library) Kind() models.ContentType {
	return l.kind
}

// Items returns a copy of the list, newest first.
func (l *Library) Items() []models.ContentItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.ContentItem, len(l.items))
	copy(out, l.items)
	return out
}

// Find returns the item with the given id.
func (l *Library) Find(id string) (models.ContentItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if item.ID == id {
			return item, true
		}
	}
	return models.ContentItem{}, false
}

// Refresh replaces the list with the backend's.
func (l *Library) Refresh(ctx context.Context) error {
	return l.tracker.Track(ctx, func(ctx context.Context) error {
		items, err := l.backend.ListContent(ctx, l.kind)
		if err != nil {
			return err
		}
		return l.apply(func() {
			l.items = items
			l.sort()
		})
	})
}

// Create writes a new item and merges it into the list.
func (l *Library) Create(ctx context.Context, input models.ContentInput) (*models.ContentItem, error) {
	var created *models.ContentItem
	err := l.tracker.Track(ctx, func(ctx context.Context) error {
		item, err := l.backend.CreateContent(ctx, l.kind, input)
		if err != nil {
			return err
		}
		created = item
		return l.apply(func() { l.upsert(*item) })
	})
	return created, err
}

// Update overwrites an item and replaces it in the list.
func (l *Library) Update(ctx context.Context, id string, input models.ContentInput) (*models.ContentItem, error) {
	var updated *models.ContentItem
	err := l.tracker.Track(ctx, func(ctx context.Context) error {
		item, err := l.backend.UpdateContent(ctx, l.kind, id, input)
		if err != nil {
			return err
		}
		updated = item
		return l.apply(func() { l.upsert(*item) })
	})
	return updated, err
}

// Delete removes an item remotely, then locally.
func (l *Library) Delete(ctx context.Context, id string) error {
	return l.tracker.Track(ctx, func(ctx context.Context) error {
		if err := l.backend.DeleteContent(ctx, l.kind, id); err != nil {
			return err
		}
		return l.apply(func() {
			for i, item := range l.items {
				if item.ID == id {
					l.items = append(l.items[:i:i], l.items[i+1:]...)
					return
				}
			}
		})
	})
}

func (l *Library) apply(fn func()) error {
	applied := l.scope.Apply(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		fn()
	})
	if !applied {
		return ErrStale
	}
	return nil
}

// upsert must be called with mu held.
func (l *Library) upsert(item models.ContentItem) {
	for i := range l.items {
		if l.items[i].ID == item.ID {
			l.items[i] = item
			l.sort()
			return
		}
	}
	l.items = append([]models.ContentItem{item}, l.items...)
	l.sort()
}

func (l *Library) sort() {
	models.SortNewestFirst(l.items, func(c models.ContentItem) *models.Timestamp { return c.CreatedAt })
}
