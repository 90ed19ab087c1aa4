package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"github.com/shopspring/decimal"
)

const conversionCacheKey = "ConversionSnapshot"

// unitPair keys the explicit override table by (from, to).
type unitPair struct {
	From int
	To   int
}

// conversionSnapshot is an immutable view of the active units and explicit
// conversions. Resolution runs entirely against a snapshot so a refresh never
// races an in-flight conversion.
type conversionSnapshot struct {
	LoadedAt    time.Time                    `json:"loaded_at"`
	Units       map[int]*Unit                `json:"units"`
	Conversions map[unitPair]*UnitConversion `json:"-"`
	// ConversionRows is the serializable form of Conversions (map keys must be
	// strings for JSON/redis round-trips).
	ConversionRows []*UnitConversion `json:"conversion_rows"`
}

func (s *conversionSnapshot) index() {
	s.Conversions = make(map[unitPair]*UnitConversion, len(s.ConversionRows))
	for _, c := range s.ConversionRows {
		s.Conversions[unitPair{From: c.FromUnitId, To: c.ToUnitId}] = c
	}
}

// convert resolves a quantity between two units, in order of precedence:
// identity, direct override, reverse override (divide), shared-base-unit
// computation. The bool reports whether a non-identity conversion was applied.
func (s *conversionSnapshot) convert(quantity decimal.Decimal, fromUnitId, toUnitId int) (decimal.Decimal, bool, error) {
	// Identity never requires a seeded row.
	if fromUnitId == toUnitId {
		return quantity, false, nil
	}

	if c, ok := s.Conversions[unitPair{From: fromUnitId, To: toUnitId}]; ok {
		return quantity.Mul(c.ConversionFactor), true, nil
	}
	if c, ok := s.Conversions[unitPair{From: toUnitId, To: fromUnitId}]; ok {
		// Factors are validated positive at write time; guard anyway so a bad
		// seed row can never cause a division by zero.
		if !c.ConversionFactor.IsPositive() {
			return decimal.Zero, false, &ConversionNotFoundError{FromUnitId: fromUnitId, ToUnitId: toUnitId}
		}
		return quantity.Div(c.ConversionFactor), true, nil
	}

	from, okFrom := s.Units[fromUnitId]
	to, okTo := s.Units[toUnitId]
	if okFrom && okTo &&
		from.MeasurementType == to.MeasurementType &&
		from.BaseUnitName == to.BaseUnitName &&
		to.ConversionFactor.IsPositive() {
		base := quantity.Mul(from.ConversionFactor)
		return base.Div(to.ConversionFactor), true, nil
	}

	return decimal.Zero, false, &ConversionNotFoundError{FromUnitId: fromUnitId, ToUnitId: toUnitId}
}

// ConversionService resolves quantities between units against a cached
// snapshot of the reference tables. It is constructed explicitly and passed to
// its callers; there is no package-level singleton.
type ConversionService struct {
	mu   sync.RWMutex
	snap *conversionSnapshot
	ttl  time.Duration
}

// NewConversionService returns a service whose snapshot is reloaded on demand
// and after ttl expires. A ttl of zero disables expiry (refresh only).
func NewConversionService(ttl time.Duration) *ConversionService {
	return &ConversionService{ttl: ttl}
}

// Refresh discards the cached snapshot and reloads the reference tables.
func (cs *ConversionService) Refresh(ctx context.Context) error {
	snap, err := loadConversionSnapshot(ctx)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	cs.snap = snap
	cs.mu.Unlock()
	return nil
}

// snapshot returns the current snapshot, loading it if missing or stale.
// Load failures are logged and degrade to an empty snapshot: listings fail
// soft (empty result) while conversions fail hard with ConversionNotFoundError.
func (cs *ConversionService) snapshot(ctx context.Context) *conversionSnapshot {
	cs.mu.RLock()
	snap := cs.snap
	cs.mu.RUnlock()

	if snap != nil && (cs.ttl <= 0 || time.Since(snap.LoadedAt) < cs.ttl) {
		return snap
	}

	fresh, err := loadConversionSnapshot(ctx)
	if err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "conversionService.go", "snapshot", "loadConversionSnapshot", nil, err)
		if snap != nil {
			// Serve the stale snapshot over nothing.
			return snap
		}
		empty := &conversionSnapshot{LoadedAt: time.Now()}
		empty.index()
		return empty
	}

	cs.mu.Lock()
	cs.snap = fresh
	cs.mu.Unlock()
	return fresh
}

func loadConversionSnapshot(ctx context.Context) (*conversionSnapshot, error) {
	var snap conversionSnapshot

	// Reference data is small and changes rarely; redis keeps instances of the
	// service warm across restarts. Cache misses fall through to the database.
	if exists, err := config.GetRedisObject(conversionCacheKey, &snap); err == nil && exists && len(snap.Units) > 0 {
		return snapshotFromCache(&snap), nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	var units []*Unit
	if err := db.WithContext(ctx).Where("is_active = ?", true).Find(&units).Error; err != nil {
		return nil, err
	}
	var conversions []*UnitConversion
	if err := db.WithContext(ctx).Where("is_active = ?", true).Find(&conversions).Error; err != nil {
		return nil, err
	}

	snap = conversionSnapshot{
		LoadedAt:       time.Now(),
		Units:          make(map[int]*Unit, len(units)),
		ConversionRows: conversions,
	}
	for _, u := range units {
		snap.Units[u.ID] = u
	}
	snap.index()

	if err := config.SetRedisObject(conversionCacheKey, &snap, 10*time.Minute); err != nil {
		config.LogError(config.GetLogger(), "conversionService.go", "loadConversionSnapshot", "SetRedisObject", nil, err)
	}

	return &snap, nil
}

// snapshotFromCache prepares a snapshot restored from redis for serving: the
// override index is not serialized and must be rebuilt, and LoadedAt is
// re-stamped so the service TTL measures time since this restore, not since
// the original database load. Without the re-stamp a restored-but-old
// snapshot reads as already expired and every lookup goes back to redis.
func snapshotFromCache(snap *conversionSnapshot) *conversionSnapshot {
	snap.LoadedAt = time.Now()
	snap.index()
	return snap
}

// InvalidateConversionCache drops the redis copy of the reference snapshot.
// Call after mutating units or conversions.
func InvalidateConversionCache() error {
	return config.RemoveRedisKey(conversionCacheKey)
}

// GetUnits returns the active units from the cached snapshot.
func (cs *ConversionService) GetUnits(ctx context.Context) []*Unit {
	snap := cs.snapshot(ctx)
	units := make([]*Unit, 0, len(snap.Units))
	for _, u := range snap.Units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units
}

// GetConversions returns the active explicit conversions from the cached snapshot.
func (cs *ConversionService) GetConversions(ctx context.Context) []*UnitConversion {
	snap := cs.snapshot(ctx)
	return snap.ConversionRows
}

// ConvertQuantity converts quantity from one unit to another. The returned
// bool reports whether a non-identity conversion was applied. A missing path
// is a hard ConversionNotFoundError; it is never defaulted to 1:1.
func (cs *ConversionService) ConvertQuantity(ctx context.Context, quantity decimal.Decimal, fromUnitId, toUnitId int) (decimal.Decimal, bool, error) {
	snap := cs.snapshot(ctx)
	return snap.convert(quantity, fromUnitId, toUnitId)
}
