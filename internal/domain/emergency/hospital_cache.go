package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medisos/dispatch/internal/platform/metrics"
)

const hospitalCacheType = "hospital"

// cachedHospitalRepo is a cache-aside layer over a HospitalRepository. Only
// hospitals with a complete location are cached, so a location registered
// after a miss is seen on the next worklist call. Redis failures fall through
// to the wrapped repository.
type cachedHospitalRepo struct {
	inner   HospitalRepository
	rdb     *redis.Client
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewCachedHospitalRepo(inner HospitalRepository, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger, m *metrics.Metrics) HospitalRepository {
	return &cachedHospitalRepo{
		inner:   inner,
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger.With().Str("component", "hospital_cache").Logger(),
		metrics: m,
	}
}

func hospitalCacheKey(id int64) string {
	return fmt.Sprintf("sos:hospital:%d", id)
}

func (r *cachedHospitalRepo) Get(ctx context.Context, id int64) (*Hospital, error) {
	key := hospitalCacheKey(id)

	data, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var h Hospital
		if jerr := json.Unmarshal(data, &h); jerr == nil {
			r.metrics.CacheHit(hospitalCacheType)
			return &h, nil
		}
		r.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case errors.Is(err, redis.Nil):
	default:
		r.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	r.metrics.CacheMiss(hospitalCacheType)

	h, err := r.inner.Get(ctx, id)
	if err != nil || h == nil {
		return h, err
	}
	if _, _, ok := h.Location(); !ok {
		return h, nil
	}

	data, err = json.Marshal(h)
	if err != nil {
		return h, nil
	}
	if err := r.rdb.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return h, nil
}
