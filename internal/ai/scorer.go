// Package ai defines the contract of the optional external recommender and the
// decoding of its loosely typed output.
package ai

import (
	"context"
	"errors"

	"github.com/spigell/internship-recommender/internal/scoring"
)

// ErrEmptyOutput is returned when an external scorer produced no results.
var ErrEmptyOutput = errors.New("external scorer returned no results")

// Scorer ranks listings for a query outside of the local heuristic.
type Scorer interface {
	Score(ctx context.Context, q scoring.Query) ([]Entry, error)
	// Name identifies the scorer in logs and metrics.
	Name() string
}
