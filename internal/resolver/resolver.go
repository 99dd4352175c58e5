// Package resolver answers "which catalogs are live for this title right now".
// Answers are short-lived snapshots with an ETag, cached per (title, scope).
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kosarica/catalog-service/internal/apperror"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Scope selects which catalog types a lookup returns.
type Scope string

const (
	ScopeMain   Scope = "MAIN"
	ScopeCoupon Scope = "COUPON"
	ScopeAll    Scope = "ALL"
)

// ParseScope parses a catalog type or "ALL". Empty means ALL.
func ParseScope(s string) (Scope, error) {
	if strings.TrimSpace(s) == "" || strings.EqualFold(s, string(ScopeAll)) {
		return ScopeAll, nil
	}
	t, ok := catalog.ParseType(s)
	if !ok {
		return "", apperror.Client(catalog.TypeDescription)
	}
	return ScopeOf(t), nil
}

// ScopeOf returns the scope of a single catalog type.
func ScopeOf(t catalog.Type) Scope {
	return Scope(t.String())
}

// Types returns the catalog types the scope covers.
func (s Scope) Types() []catalog.Type {
	switch s {
	case ScopeMain:
		return []catalog.Type{catalog.TypeMain}
	case ScopeCoupon:
		return []catalog.Type{catalog.TypeCoupon}
	default:
		return catalog.Types
	}
}

// Snapshot is the active catalog set of one lookup.
type Snapshot struct {
	TitleCode string            `json:"title_code,omitempty"`
	Scope     Scope             `json:"scope"`
	Catalogs  []catalog.Catalog `json:"catalogs"`
	ETag      string            `json:"etag"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Fresh reports whether the snapshot may still be served at now.
func (s *Snapshot) Fresh(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// ComputeETag hashes the codes and lifecycle timestamps of a catalog set.
func ComputeETag(catalogs []catalog.Catalog) string {
	h := sha256.New()
	for _, c := range catalogs {
		fmt.Fprintf(h, "%s|%s|%s\n", c.Code, formatTime(c.ActivatedAt), formatTime(c.TerminatedAt))
	}
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Store reads titles and active catalogs.
type Store interface {
	Title(ctx context.Context, code string) (*catalog.Title, error)
	ActiveCatalogs(ctx context.Context, titleID int64, types []catalog.Type) ([]catalog.Catalog, error)
	ActiveCatalogsOfType(ctx context.Context, typ catalog.Type) ([]catalog.Catalog, error)
}

// ErrTitleNotFound is returned by a Store for an unknown title.
var ErrTitleNotFound = errors.New("title not found")

// Cache keeps snapshots. Implementations must not return expired snapshots.
type Cache interface {
	Get(ctx context.Context, key string) (*Snapshot, bool)
	Set(ctx context.Context, key string, s *Snapshot, ttl time.Duration)
	// Invalidate drops every entry of a title and every list-all entry.
	Invalidate(ctx context.Context, titleCode string)
}

// Resolver resolves active catalogs with caching.
type Resolver struct {
	store   Store
	cache   Cache
	ttl     atomic.Int64
	group   singleflight.Group
	metrics *metrics.Recorder
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a resolver. A zero ttl disables caching.
func New(store Store, cache Cache, ttl time.Duration, m *metrics.Recorder, log zerolog.Logger) *Resolver {
	r := &Resolver{
		store:   store,
		cache:   cache,
		metrics: m,
		log:     log.With().Str("component", "resolver").Logger(),
		now:     time.Now,
	}
	r.SetTTL(ttl)
	return r
}

// SetTTL changes the snapshot lifetime.
func (r *Resolver) SetTTL(ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	r.ttl.Store(int64(ttl))
}

// TTL returns the snapshot lifetime.
func (r *Resolver) TTL() time.Duration {
	return time.Duration(r.ttl.Load())
}

func titleKey(title string, scope Scope) string {
	return "title:" + title + ":" + string(scope)
}

func allKey(t catalog.Type) string {
	return "all:" + t.String()
}

// GetActive returns the active catalogs of a title. It fails with
// TITLE_NOT_FOUND for an unknown or inactive title and CATALOG_NOT_FOUND
// when nothing in scope is active.
func (r *Resolver) GetActive(ctx context.Context, titleCode string, scope Scope) (*Snapshot, error) {
	snap, err := r.cached(ctx, titleKey(titleCode, scope), func() (*Snapshot, error) {
		title, err := r.store.Title(ctx, titleCode)
		if err != nil {
			if errors.Is(err, ErrTitleNotFound) {
				return nil, apperror.TitleNotFound(titleCode)
			}
			return nil, err
		}
		if !title.Active {
			return nil, apperror.TitleNotFound(titleCode)
		}
		catalogs, err := r.store.ActiveCatalogs(ctx, title.ID, scope.Types())
		if err != nil {
			return nil, err
		}
		return &Snapshot{TitleCode: titleCode, Scope: scope, Catalogs: catalogs}, nil
	})
	if err != nil {
		return nil, err
	}
	if len(snap.Catalogs) == 0 {
		return nil, apperror.CatalogNotFound("").
			With("title_code", titleCode).
			With("catalog_type", string(scope))
	}
	return snap, nil
}

// ListAll returns the active catalog of type t for every active title.
func (r *Resolver) ListAll(ctx context.Context, t catalog.Type) (*Snapshot, error) {
	return r.cached(ctx, allKey(t), func() (*Snapshot, error) {
		catalogs, err := r.store.ActiveCatalogsOfType(ctx, t)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Scope: ScopeOf(t), Catalogs: catalogs}, nil
	})
}

// Invalidate drops cached snapshots of a title after its catalogs changed.
func (r *Resolver) Invalidate(ctx context.Context, titleCode string) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, titleCode)
	}
}

func (r *Resolver) cached(ctx context.Context, key string, load func() (*Snapshot, error)) (*Snapshot, error) {
	ttl := r.TTL()
	if ttl > 0 && r.cache != nil {
		if snap, ok := r.cache.Get(ctx, key); ok && snap.Fresh(r.now()) {
			r.recordHit()
			return snap, nil
		}
	}
	r.recordMiss()

	v, err, _ := r.group.Do(key, func() (any, error) {
		snap, err := load()
		if err != nil {
			return nil, err
		}
		snap.ETag = ComputeETag(snap.Catalogs)
		snap.ExpiresAt = r.now().Add(ttl)
		if ttl > 0 && r.cache != nil {
			r.cache.Set(ctx, key, snap, ttl)
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (r *Resolver) recordHit() {
	if r.metrics != nil {
		r.metrics.RecordResolverHit()
	}
}

func (r *Resolver) recordMiss() {
	if r.metrics != nil {
		r.metrics.RecordResolverMiss()
	}
}
