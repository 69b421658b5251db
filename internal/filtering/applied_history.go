package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/catalog"
)

type appliedHistoryFilter struct {
	toggle
}

// NewAppliedHistory creates a filter that removes listings the user already tracks
// as applications.
func NewAppliedHistory() Filter {
	return &appliedHistoryFilter{}
}

func (f *appliedHistoryFilter) Name() string { return "applied_history" }

func (f *appliedHistoryFilter) Validate(*Config) error { return nil }

func excludeApplied(cfg *Config) bool { return cfg != nil && cfg.ExcludeApplied }

func (f *appliedHistoryFilter) Apply(ctx context.Context, cfg *Config, deps Deps, records *catalog.Records) (*catalog.Records, Step, error) {
	initial := records.Len()
	if !excludeApplied(cfg) || deps.UserID == "" || initial == 0 {
		return records, unchanged(records), nil
	}

	if deps.Applications == nil {
		return records, Step{}, fmt.Errorf("application store is required")
	}

	keys, err := deps.Applications.AppliedSourceKeys(ctx, deps.UserID)
	if err != nil {
		return records, Step{}, fmt.Errorf("get applied listings: %w", err)
	}
	if len(keys) == 0 {
		return records, unchanged(records), nil
	}

	applied := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		applied[key] = struct{}{}
	}

	excluded := records.Retain(func(r *catalog.Record) bool {
		_, ok := applied[r.SourceKey()]
		return !ok
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding listings already applied to",
			zap.Strings("excluded_listings", catalog.Titles(excluded)),
			zap.Int("listings_left", records.Len()),
		)
	}

	return records, Step{Initial: initial, Dropped: len(excluded), Left: records.Len()}, nil
}

func (f *appliedHistoryFilter) Status(cfg *Config) Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"exclude_applied": strconv.FormatBool(excludeApplied(cfg))},
	}
}
