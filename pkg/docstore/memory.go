package docstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRecord struct {
	data       map[string]interface{}
	createTime time.Time
	updateTime time.Time
}

// MemoryStore keeps documents in process. It is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryRecord
	now         func() time.Time
	failures    map[string]error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memoryRecord),
		now:         func() time.Time { return time.Now().UTC() },
		failures:    make(map[string]error),
	}
}

// SetClock overrides the commit time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext makes the next call of op ("set", "get", "query", "update", "delete") on
// collection return err. Used to simulate backend outages.
func (s *MemoryStore) FailNext(op, collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op+":"+collection] = err
}

func (s *MemoryStore) takeFailure(op, collection string) error {
	key := op + ":" + collection
	if err, ok := s.failures[key]; ok {
		delete(s.failures, key)
		return err
	}
	return nil
}

func (s *MemoryStore) NewID() string { return newID() }

func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields Fields, opts ...SetOption) error {
	if err := checkRef(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable("context done", err)
	}
	o := applySetOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("set", collection); err != nil {
		return err
	}
	coll := s.collection(collection)
	now := s.now()
	existing := coll[id]
	var base map[string]interface{}
	if existing != nil && o.merge {
		base = existing.data
	}
	data, err := apply(base, fields, now, o.merge)
	if err != nil {
		return err
	}
	if existing == nil {
		coll[id] = &memoryRecord{data: data, createTime: now, updateTime: now}
		return nil
	}
	existing.data = data
	existing.updateTime = now
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := checkRef(collection, id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("get", collection); err != nil {
		return nil, err
	}
	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, notFound(collection, id)
	}
	doc := rec.document(id)
	return &doc, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if collection == "" {
		return nil, invalidArgument("collection required")
	}
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("query", collection); err != nil {
		return nil, err
	}
	coll := s.collections[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]Document, 0)
	for _, id := range ids {
		rec := coll[id]
		ok, err := matches(rec.data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, rec.document(id))
		}
	}
	return docs, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := checkRef(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("update", collection); err != nil {
		return err
	}
	rec, ok := s.collections[collection][id]
	if !ok {
		return notFound(collection, id)
	}
	now := s.now()
	data, err := apply(rec.data, fields, now, true)
	if err != nil {
		return err
	}
	rec.data = data
	rec.updateTime = now
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkRef(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("delete", collection); err != nil {
		return err
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) collection(name string) map[string]*memoryRecord {
	coll, ok := s.collections[name]
	if !ok {
		coll = make(map[string]*memoryRecord)
		s.collections[name] = coll
	}
	return coll
}

// document returns a deep copy so callers cannot mutate stored state.
func (r *memoryRecord) document(id string) Document {
	data, _ := normalize(r.data)
	m, _ := data.(map[string]interface{})
	if m == nil {
		m = map[string]interface{}{}
	}
	return Document{ID: id, Data: m, CreateTime: r.createTime, UpdateTime: r.updateTime}
}
