// Package admin serves read-only rollups over the ledger for operators.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"go.uber.org/zap"
)

const (
	// DefaultRecentLimit is the number of activity rows in a stats snapshot.
	DefaultRecentLimit = 10
	statsCacheKey      = "admin:stats"
)

// ErrStatsUnavailable is returned when the read model cannot be queried.
var ErrStatsUnavailable = errors.New("admin stats unavailable")

// Activity is one ledger entry joined with its owner's profile.
type Activity struct {
	EntryID     string           `json:"entry_id"`
	Kind        ledger.EntryKind `json:"kind"`
	Amount      int64            `json:"amount"`
	Reference   string           `json:"reference,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UserID      string           `json:"user_id"`
	Email       string           `json:"email"`
	DisplayName string           `json:"display_name"`
}

// Stats is a point-in-time rollup. Revenue is the sum of service fee magnitudes.
type Stats struct {
	TotalUsers     int64      `json:"total_users"`
	TotalEntries   int64      `json:"total_entries"`
	Revenue        int64      `json:"revenue"`
	FundingTotal   int64      `json:"funding_total"`
	RecentActivity []Activity `json:"recent_activity"`
}

// Reader is the read model backing Stats.
type Reader interface {
	CountUsers(ctx context.Context) (int64, error)
	CountEntries(ctx context.Context) (int64, error)
	SumAmountByKind(ctx context.Context, kind ledger.EntryKind) (int64, error)
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)
}

// Cache stores serialized snapshots. Get reports found=false on a miss.
type Cache interface {
	Get(ctx context.Context, key string, target any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables snapshot caching for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(service *Service) {
		service.cache = cache
		service.cacheTTL = ttl
	}
}

// WithLogger sets the logger used for cache failures.
func WithLogger(logger *zap.Logger) Option {
	return func(service *Service) {
		if logger != nil {
			service.logger = logger
		}
	}
}

// WithRecentLimit overrides DefaultRecentLimit.
func WithRecentLimit(limit int) Option {
	return func(service *Service) {
		if limit > 0 {
			service.recentLimit = limit
		}
	}
}

// Service computes admin stats.
type Service struct {
	reader      Reader
	cache       Cache
	cacheTTL    time.Duration
	recentLimit int
	logger      *zap.Logger
}

// NewService wires a Service.
func NewService(reader Reader, options ...Option) (*Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: reader dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	service := &Service{reader: reader, recentLimit: DefaultRecentLimit, logger: zap.NewNop()}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Stats returns the current rollup, served from cache when one is configured and warm.
func (service *Service) Stats(ctx context.Context) (Stats, error) {
	if service.cache != nil {
		var cached Stats
		found, err := service.cache.Get(ctx, statsCacheKey, &cached)
		if err != nil {
			service.logger.Warn("admin stats cache read failed", zap.Error(err))
		}
		if found && err == nil {
			return cached, nil
		}
	}

	stats, err := service.compute(ctx)
	if err != nil {
		service.logger.Error("admin stats query failed", zap.Error(err))
		return Stats{}, ErrStatsUnavailable
	}

	if service.cache != nil {
		if err := service.cache.Set(ctx, statsCacheKey, stats, service.cacheTTL); err != nil {
			service.logger.Warn("admin stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (service *Service) compute(ctx context.Context) (Stats, error) {
	users, err := service.reader.CountUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	entries, err := service.reader.CountEntries(ctx)
	if err != nil {
		return Stats{}, err
	}
	fees, err := service.reader.SumAmountByKind(ctx, ledger.EntryServiceFee)
	if err != nil {
		return Stats{}, err
	}
	funding, err := service.reader.SumAmountByKind(ctx, ledger.EntryFunding)
	if err != nil {
		return Stats{}, err
	}
	activity, err := service.reader.RecentActivity(ctx, service.recentLimit)
	if err != nil {
		return Stats{}, err
	}
	if fees < 0 {
		fees = -fees
	}
	return Stats{
		TotalUsers:     users,
		TotalEntries:   entries,
		Revenue:        fees,
		FundingTotal:   funding,
		RecentActivity: activity,
	}, nil
}
