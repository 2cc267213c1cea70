// Package bookmark stores named report filter sets. All report types share
// one durable key; a Store adds a per-session in-memory view on top of it.
//
// Writes are read-modify-write of the whole collection with no versioning,
// so two sessions writing at the same time can lose one of the writes.
package bookmark

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/surveillance-api/internal/model"
	"github.com/jwalitptl/surveillance-api/internal/repository"
	"github.com/jwalitptl/surveillance-api/pkg/logger"
	"github.com/jwalitptl/surveillance-api/pkg/metrics"
)

var (
	ErrReportTypeRequired = errors.New("report type is required")
	// ErrCorruptCollection is returned by writes when the persisted value
	// cannot be decoded. The value is left as is; Clear removes it.
	ErrCorruptCollection = errors.New("saved filter collection is corrupt")
)

type Options struct {
	// Key defaults to DefaultStorageKey.
	Key     string
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() string
}

type Store struct {
	kv      repository.KeyValueStore
	key     string
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	mu   sync.Mutex
	view []model.SavedFilterSet
}

func NewStore(kv repository.KeyValueStore, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultStorageKey
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New("bookmarks", nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return "filter-" + uuid.NewString() }
	}

	return &Store{
		kv:      kv,
		key:     opts.Key,
		logger:  opts.Logger.WithFields(map[string]interface{}{"storage_key": opts.Key}),
		metrics: opts.Metrics,
		now:     opts.Now,
		newID:   opts.NewID,
	}
}

// Initialize loads the filter sets of one report type in storage order and
// makes them the session's view. A missing or undecodable collection yields
// an empty result.
func (s *Store) Initialize(ctx context.Context, reportTypeID string) ([]model.SavedFilterSet, error) {
	if reportTypeID == "" {
		s.record("initialize", ErrReportTypeRequired)
		return nil, ErrReportTypeRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sets, _, err := s.read(ctx)
	if err != nil {
		s.record("initialize", err)
		return nil, err
	}

	s.view = filterByReportType(sets, reportTypeID)
	s.record("initialize", nil)
	return copySets(s.view), nil
}

// SaveFilter appends a new filter set to the durable collection and to the
// view. On a write failure nothing changes and the error is returned.
func (s *Store) SaveFilter(ctx context.Context, reportTypeID, name string, filters map[string]string) (model.SavedFilterSet, error) {
	if reportTypeID == "" {
		s.record("save", ErrReportTypeRequired)
		return model.SavedFilterSet{}, ErrReportTypeRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sets, corrupt, err := s.read(ctx)
	if err == nil && corrupt {
		err = ErrCorruptCollection
	}
	if err != nil {
		s.record("save", err)
		return model.SavedFilterSet{}, err
	}

	entry := model.SavedFilterSet{
		ID:           s.uniqueID(sets),
		Name:         name,
		ReportTypeID: reportTypeID,
		Filters:      copyFilters(filters),
		CreatedAt:    s.now().UTC().Format(createdAtLayout),
	}

	if err := s.write(ctx, append(sets, entry)); err != nil {
		s.record("save", err)
		return model.SavedFilterSet{}, err
	}

	s.view = append(s.view, entry)
	s.record("save", nil)
	return copySet(entry), nil
}

// RemoveFilter drops a filter set. Unknown ids are a no-op.
func (s *Store) RemoveFilter(ctx context.Context, filterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets, corrupt, err := s.read(ctx)
	if err == nil && corrupt {
		err = ErrCorruptCollection
	}
	if err != nil {
		s.record("remove", err)
		return err
	}

	if remaining, removed := removeByID(sets, filterID); removed {
		if err := s.write(ctx, remaining); err != nil {
			s.record("remove", err)
			return err
		}
	}

	s.view, _ = removeByID(s.view, filterID)
	s.record("remove", nil)
	return nil
}

// LoadFilter returns the parameters of a filter set in the current view.
// It does not consult durable storage: sets that were neither loaded by the
// last Initialize nor saved in this session give an empty map.
func (s *Store) LoadFilter(filterID string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("load", nil)
	entry, ok := findByID(s.view, filterID)
	if !ok {
		return map[string]string{}
	}
	return copyFilters(entry.Filters)
}

// FindFilter looks an id up in durable storage, regardless of the view.
func (s *Store) FindFilter(ctx context.Context, filterID string) (model.SavedFilterSet, bool, error) {
	sets, _, err := s.read(ctx)
	if err != nil {
		s.record("find", err)
		return model.SavedFilterSet{}, false, err
	}

	entry, ok := findByID(sets, filterID)
	s.record("find", nil)
	if !ok {
		return model.SavedFilterSet{}, false, nil
	}
	return copySet(entry), true, nil
}

// View returns a copy of the session's current view.
func (s *Store) View() []model.SavedFilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySets(s.view)
}

// Clear deletes the whole durable collection, every report type included,
// and empties the view.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.key); err != nil {
		err = fmt.Errorf("failed to clear saved filters: %w", err)
		s.record("clear", err)
		return err
	}

	s.view = nil
	s.record("clear", nil)
	return nil
}

// read returns the durable collection. Missing keys and undecodable values
// both give an empty collection; corrupt reports the latter.
func (s *Store) read(ctx context.Context) (sets []model.SavedFilterSet, corrupt bool, err error) {
	start := time.Now()
	raw, found, err := s.kv.Get(ctx, s.key)
	s.metrics.BackendLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("failed to read saved filters: %w", err)
	}
	if !found {
		return []model.SavedFilterSet{}, false, nil
	}

	sets, err = decodeCollection(raw)
	if err != nil {
		s.metrics.DecodeFailures.Inc()
		s.logger.Warn(err, "saved filter collection could not be decoded", "bytes", len(raw))
		return []model.SavedFilterSet{}, true, nil
	}
	return sets, false, nil
}

func (s *Store) write(ctx context.Context, sets []model.SavedFilterSet) error {
	raw, err := encodeCollection(sets)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.kv.Set(ctx, s.key, raw)
	s.metrics.BackendLatency.WithLabelValues("set").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to write saved filters: %w", err)
	}
	return nil
}

// uniqueID draws ids until one is free in both the collection and the view.
func (s *Store) uniqueID(sets []model.SavedFilterSet) string {
	for {
		id := s.newID()
		if !containsID(sets, id) && !containsID(s.view, id) {
			return id
		}
	}
}

func (s *Store) record(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.Operations.WithLabelValues(op, status).Inc()
}
