package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
)

const defaultSnapshotTTL = 5 * time.Minute

// Snapshot is the active catalog keyed by id, used for pricing lookups.
type Snapshot struct {
	CabinetTypes      map[uuid.UUID]models.CabinetType      `json:"cabinet_types"`
	DoorStyles        map[uuid.UUID]models.DoorStyle        `json:"door_styles"`
	Colors            map[uuid.UUID]models.Color            `json:"colors"`
	Finishes          map[uuid.UUID]models.Finish           `json:"finishes"`
	ProductionOptions map[uuid.UUID]models.ProductionOption `json:"production_options"`
}

type snapshotCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

// Reader serves active catalog rows from a Redis-cached snapshot, falling
// back to the database when the cache is absent or unreachable.
type Reader struct {
	repo  *Repository
	cache snapshotCache
	ttl   time.Duration
	logg  *logger.Logger
}

// NewReader builds a reader; cache may be nil to always read through.
func NewReader(repo *Repository, cache snapshotCache, ttl time.Duration, logg *logger.Logger) *Reader {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &Reader{repo: repo, cache: cache, ttl: ttl, logg: logg}
}

func (r *Reader) key() string {
	return r.cache.CacheKey("catalog", "snapshot")
}

// Snapshot returns the active catalog.
func (r *Reader) Snapshot(ctx context.Context) (*Snapshot, error) {
	if r.cache != nil {
		raw, err := r.cache.Get(ctx, r.key())
		switch {
		case err == nil:
			var snap Snapshot
			if jsonErr := json.Unmarshal([]byte(raw), &snap); jsonErr == nil {
				return &snap, nil
			}
		case !errors.Is(err, goredis.Nil):
			r.warn(ctx, "catalog cache read failed", err)
		}
	}

	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if payload, err := json.Marshal(snap); err == nil {
			if err := r.cache.Set(ctx, r.key(), string(payload), r.ttl); err != nil {
				r.warn(ctx, "catalog cache write failed", err)
			}
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot after an admin write.
func (r *Reader) Invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, r.key()); err != nil {
		r.warn(ctx, "catalog cache invalidate failed", err)
	}
}

// CabinetType returns nil when the id is unknown or inactive.
func (r *Reader) CabinetType(ctx context.Context, id uuid.UUID) (*models.CabinetType, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(snap.CabinetTypes, id), nil
}

func (r *Reader) DoorStyle(ctx context.Context, id uuid.UUID) (*models.DoorStyle, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(snap.DoorStyles, id), nil
}

func (r *Reader) Color(ctx context.Context, id uuid.UUID) (*models.Color, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(snap.Colors, id), nil
}

func (r *Reader) Finish(ctx context.Context, id uuid.UUID) (*models.Finish, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(snap.Finishes, id), nil
}

func (r *Reader) ProductionOption(ctx context.Context, id uuid.UUID) (*models.ProductionOption, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(snap.ProductionOptions, id), nil
}

func (r *Reader) load(ctx context.Context) (*Snapshot, error) {
	cabinetTypes, err := r.repo.ListCabinetTypes(ctx, false)
	if err != nil {
		return nil, err
	}
	doorStyles, err := r.repo.ListDoorStyles(ctx, false)
	if err != nil {
		return nil, err
	}
	colors, err := r.repo.ListColors(ctx, false)
	if err != nil {
		return nil, err
	}
	finishes, err := r.repo.ListFinishes(ctx, false)
	if err != nil {
		return nil, err
	}
	options, err := r.repo.ListProductionOptions(ctx, false)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		CabinetTypes:      index(cabinetTypes, func(m models.CabinetType) uuid.UUID { return m.ID }),
		DoorStyles:        index(doorStyles, func(m models.DoorStyle) uuid.UUID { return m.ID }),
		Colors:            index(colors, func(m models.Color) uuid.UUID { return m.ID }),
		Finishes:          index(finishes, func(m models.Finish) uuid.UUID { return m.ID }),
		ProductionOptions: index(options, func(m models.ProductionOption) uuid.UUID { return m.ID }),
	}, nil
}

func (r *Reader) warn(ctx context.Context, msg string, err error) {
	if r.logg == nil {
		return
	}
	r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), msg)
}

func index[T any](rows []T, id func(T) uuid.UUID) map[uuid.UUID]T {
	out := make(map[uuid.UUID]T, len(rows))
	for _, row := range rows {
		out[id(row)] = row
	}
	return out
}

func lookup[T any](rows map[uuid.UUID]T, id uuid.UUID) *T {
	row, ok := rows[id]
	if !ok {
		return nil
	}
	return &row
}
