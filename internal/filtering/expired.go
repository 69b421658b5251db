package filtering

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/catalog"
	"github.com/spigell/internship-recommender/internal/dates"
)

type expiredFilter struct {
	toggle
}

// NewExpired creates a filter that removes listings whose apply_by date has
// passed. Listings without a parseable deadline are kept.
func NewExpired() Filter {
	return &expiredFilter{}
}

func (f *expiredFilter) Name() string { return "expired" }

func (f *expiredFilter) Validate(*Config) error { return nil }

func dropExpired(cfg *Config) bool { return cfg != nil && cfg.DropExpired }

func (f *expiredFilter) Apply(_ context.Context, cfg *Config, deps Deps, records *catalog.Records) (*catalog.Records, Step, error) {
	initial := records.Len()
	if !dropExpired(cfg) || initial == 0 {
		return records, unchanged(records), nil
	}

	now := deps.Now
	if now.IsZero() {
		now = dates.SystemClock()
	}
	today := now.UTC().Truncate(24 * time.Hour)

	excluded := records.Retain(func(r *catalog.Record) bool {
		deadline, ok := dates.ParseDayMonthYear(r.ApplyBy)
		return !ok || !deadline.Before(today)
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding listings past their deadline",
			zap.Strings("excluded_listings", catalog.Titles(excluded)),
			zap.Int("listings_left", records.Len()),
		)
	}

	return records, Step{Initial: initial, Dropped: len(excluded), Left: records.Len()}, nil
}

func (f *expiredFilter) Status(cfg *Config) Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"drop_expired": strconv.FormatBool(dropExpired(cfg))},
	}
}
