package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/catalog"
)

type minStipendFilter struct {
	toggle
}

// NewMinStipend creates a filter that removes listings paying less than the
// configured stipend.
func NewMinStipend() Filter {
	return &minStipendFilter{}
}

func (f *minStipendFilter) Name() string { return "min_stipend" }

func (f *minStipendFilter) Validate(cfg *Config) error {
	if cfg != nil && cfg.MinStipend < 0 {
		return fmt.Errorf("minimum stipend must not be negative, got %d", cfg.MinStipend)
	}
	return nil
}

func minStipend(cfg *Config) int {
	if cfg == nil || cfg.MinStipend < 0 {
		return 0
	}
	return cfg.MinStipend
}

func (f *minStipendFilter) Apply(_ context.Context, cfg *Config, deps Deps, records *catalog.Records) (*catalog.Records, Step, error) {
	initial := records.Len()
	floor := minStipend(cfg)
	if floor == 0 || initial == 0 {
		return records, unchanged(records), nil
	}

	excluded := records.Retain(func(r *catalog.Record) bool {
		return r.StipendAmount() >= floor
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding listings below minimum stipend",
			zap.Int("min_stipend", floor),
			zap.Strings("excluded_listings", catalog.Titles(excluded)),
			zap.Int("listings_left", records.Len()),
		)
	}

	return records, Step{Initial: initial, Dropped: len(excluded), Left: records.Len()}, nil
}

func (f *minStipendFilter) Status(cfg *Config) Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_stipend": strconv.Itoa(minStipend(cfg))},
	}
}
