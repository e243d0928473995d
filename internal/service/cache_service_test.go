package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/studio-api/internal/models"
)

type brokenCacheRepo struct{ *memoryCacheRepo }

func (b *brokenCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)

	svc.Set(context.Background(), "k", []models.ContentItem{{ID: "1"}}, 0)
	assert.Empty(t, repo.entries)

	var out []models.ContentItem
	assert.False(t, svc.Get(context.Background(), "k", &out))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Get(context.Background(), "k", &out))
	nilSvc.Invalidate(context.Background(), "k")
}

func TestCacheServiceFailuresAreMisses(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(&brokenCacheRepo{memoryCacheRepo: newMemoryCacheRepo()}, metrics, time.Minute, nil, true)

	var out []models.ContentItem
	assert.False(t, svc.Get(context.Background(), "k", &out))
	assert.EqualValues(t, 1, metrics.Snapshot().CacheMisses)
}
