package repository

import (
	"context"
	"sync/atomic"
	"time"

	"repairhub/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverTrackingLimiter prefers the primary limiter and drops to the
// fallback when it errors. After a minute it tries the primary again.
type FailoverTrackingLimiter struct {
	primary  domain.TrackingLimiter
	fallback domain.TrackingLimiter
	logger   *zerolog.Logger
	isDown   atomic.Bool
	// lastCheck holds the UnixNano of the last failed primary attempt.
	lastCheck atomic.Int64
}

func NewFailoverTrackingLimiter(primary, fallback domain.TrackingLimiter, logger *zerolog.Logger) *FailoverTrackingLimiter {
	return &FailoverTrackingLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverTrackingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("primary tracking limiter failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Now().UnixNano()-r.lastCheck.Load() > int64(time.Minute) {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Allow(ctx, key, limit, window)
}
