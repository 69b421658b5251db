// Package filtering narrows the catalog before local scoring. Every filter is
// a no-op unless configured. Filters read the configuration on each call and
// keep no per-request state, so one set serves concurrent requests.
package filtering

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/catalog"
)

// Filter represents a single filtering step applied to catalog records.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, cfg *Config, deps Deps, records *catalog.Records) (*catalog.Records, Step, error)
}

// AppliedLister reports the source keys of listings a user already tracks.
type AppliedLister interface {
	AppliedSourceKeys(ctx context.Context, userID string) ([]string, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger       *zap.Logger
	Applications AppliedLister
	UserID       string
	Now          time.Time
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	ExcludeApplied   bool     `mapstructure:"exclude-applied"`
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	DropExpired      bool     `mapstructure:"drop-expired"`
	MinStipend       int      `mapstructure:"min-stipend"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status(cfg *Config) Status
}

// Default returns the catalog filters in execution order.
func Default() []Filter {
	return []Filter{
		NewAppliedHistory(),
		NewCompanies(),
		NewExpired(),
		NewMinStipend(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns the remaining records.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, records *catalog.Records) (*catalog.Records, error) {
	if records == nil {
		records = &catalog.Records{}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, cfg, deps, records)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil && info.Dropped > 0 {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		records = next
	}

	return records, nil
}

// Describe returns status entries for the provided filters under cfg.
func Describe(cfg *Config, steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status(cfg))
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// toggle carries the enable/disable state shared by all filters. It is set
// while wiring and only read afterwards.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func unchanged(records *catalog.Records) Step {
	return Step{Initial: records.Len(), Dropped: 0, Left: records.Len()}
}
