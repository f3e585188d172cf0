// Package cache serves TTL-bounded in-memory snapshots of the five system
// blobs. Concurrent refreshes of the same snapshot collapse into a single
// fetch; invalidation drops both the snapshot and any in-flight refresh.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/ninjahq/ninja-backend/internal/metrics"
	"github.com/ninjahq/ninja-backend/internal/models"
	"github.com/ninjahq/ninja-backend/internal/store"
)

// Kind identifies one cached system snapshot.
type Kind string

const (
	KindApps          Kind = "apps"
	KindUsers         Kind = "users"
	KindOrganizations Kind = "organizations"
	KindBlocked       Kind = "blocked"
	KindDunning       Kind = "dunning"
)

// Kinds lists every cached snapshot.
var Kinds = []Kind{KindApps, KindUsers, KindOrganizations, KindBlocked, KindDunning}

// DefaultTTL matches the upstream CACHE_TTL_MS.
const DefaultTTL = 60 * time.Second

type entry struct {
	data     any
	loadedAt time.Time
}

// Manager is the process-wide snapshot cache. All methods are safe for
// concurrent use.
type Manager struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[Kind]entry
	// gens invalidates in-flight refreshes: a refresh only stores its result
	// if the generation it started under is still current.
	gens map[Kind]uint64

	flight singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the snapshot TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithClock overrides the time source. Tests use this to step through TTL
// boundaries.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager over the given store.
func New(s store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   s,
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[Kind]entry),
		gens:    make(map[Kind]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured snapshot TTL.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Invalidate drops one snapshot and any in-flight refresh for it. A refresh
// that already started keeps running but its result is discarded.
func (m *Manager) Invalidate(kind Kind) {
	m.mu.Lock()
	m.gens[kind]++
	delete(m.entries, kind)
	m.mu.Unlock()
	m.flight.Forget(string(kind))
}

// InvalidateAll drops every snapshot and in-flight refresh.
func (m *Manager) InvalidateAll() {
	for _, kind := range Kinds {
		m.Invalidate(kind)
	}
}

// snapshot returns the current data for kind, refreshing when no entry
// exists or the entry's age has reached the TTL (validity is strictly
// now-loadedAt < TTL). Concurrent callers share one refresh.
func (m *Manager) snapshot(ctx context.Context, kind Kind) (any, error) {
	if data, ok := m.fresh(kind); ok {
		return data, nil
	}

	data, err, _ := m.flight.Do(string(kind), func() (any, error) {
		// A refresh may have completed while this caller queued.
		if data, ok := m.fresh(kind); ok {
			return data, nil
		}
		m.mu.RLock()
		gen := m.gens[kind]
		m.mu.RUnlock()

		data, err := m.load(ctx, kind)
		if err != nil {
			metrics.CacheRefreshes.WithLabelValues(string(kind), "error").Inc()
			return nil, err
		}
		m.mu.Lock()
		// An invalidation during the fetch means this data may predate it.
		if m.gens[kind] == gen {
			m.entries[kind] = entry{data: data, loadedAt: m.now()}
		}
		m.mu.Unlock()
		metrics.CacheRefreshes.WithLabelValues(string(kind), "ok").Inc()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Manager) fresh(kind Kind) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[kind]
	if !ok || m.now().Sub(e.loadedAt) >= m.ttl {
		return nil, false
	}
	return e.data, true
}

func (m *Manager) load(ctx context.Context, kind Kind) (any, error) {
	switch kind {
	case KindApps:
		return store.NewBlob[[]models.App](m.store, store.PathApps).ReadOr(ctx, nil)
	case KindUsers:
		return store.NewBlob[[]models.UserProfile](m.store, store.PathUsers).ReadOr(ctx, nil)
	case KindOrganizations:
		return store.NewBlob[[]models.Organization](m.store, store.PathOrganizations).ReadOr(ctx, nil)
	case KindBlocked:
		return store.NewBlob[models.BlockedOrganizations](m.store, store.PathBlocked).ReadOr(ctx, models.BlockedOrganizations{})
	case KindDunning:
		return store.NewBlob[[]models.DunningEntry](m.store, store.PathDunning).ReadOr(ctx, nil)
	default:
		return nil, fmt.Errorf("unknown cache kind %q", kind)
	}
}

// Apps returns the cached app list.
func (m *Manager) Apps(ctx context.Context) ([]models.App, error) {
	data, err := m.snapshot(ctx, KindApps)
	if err != nil {
		return nil, err
	}
	return data.([]models.App), nil
}

// Users returns the cached user profile list.
func (m *Manager) Users(ctx context.Context) ([]models.UserProfile, error) {
	data, err := m.snapshot(ctx, KindUsers)
	if err != nil {
		return nil, err
	}
	return data.([]models.UserProfile), nil
}

// Organizations returns the cached organization list.
func (m *Manager) Organizations(ctx context.Context) ([]models.Organization, error) {
	data, err := m.snapshot(ctx, KindOrganizations)
	if err != nil {
		return nil, err
	}
	return data.([]models.Organization), nil
}

// Blocked returns the cached blocked-organizations blob.
func (m *Manager) Blocked(ctx context.Context) (models.BlockedOrganizations, error) {
	data, err := m.snapshot(ctx, KindBlocked)
	if err != nil {
		return models.BlockedOrganizations{}, err
	}
	return data.(models.BlockedOrganizations), nil
}

// Dunning returns the cached dunning list. Dunning is warn-only, so a failed
// refresh is logged and treated as an empty list instead of surfacing.
func (m *Manager) Dunning(ctx context.Context) []models.DunningEntry {
	data, err := m.snapshot(ctx, KindDunning)
	if err != nil {
		log.Warn().Err(err).Msg("dunning snapshot refresh failed, treating as empty")
		return nil
	}
	return data.([]models.DunningEntry)
}
