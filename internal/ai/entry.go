package ai

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/internship-recommender/internal/catalog"
	"github.com/spigell/internship-recommender/internal/mapping"
)

// Entry is one item of external scorer output. Exactly one of Normalized or Raw
// is set.
type Entry struct {
	// Normalized is an item already in the served recommendation shape.
	Normalized *mapping.Recommendation
	// Raw is a catalog row, optionally carrying a similarity in [0,1].
	Raw *catalog.Record
}

func (e Entry) IsNormalized() bool { return e.Normalized != nil }

// normalizedKeys must all be present for an item to be treated as a ready
// recommendation.
var normalizedKeys = []string{"company", "title", "applicationDeadline"}

// DecodeEntries resolves every item of the external output into an Entry.
func DecodeEntries(items []map[string]any) ([]Entry, error) {
	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		entry, err := decodeEntry(item)
		if err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeEntry(item map[string]any) (Entry, error) {
	if isNormalized(item) {
		rec, err := decodeRecommendation(item)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Normalized: rec}, nil
	}

	record, err := catalog.DecodeRecord(item)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Raw: record}, nil
}

func isNormalized(item map[string]any) bool {
	for _, key := range normalizedKeys {
		v, ok := item[key]
		if !ok || v == nil {
			return false
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

func decodeRecommendation(item map[string]any) (*mapping.Recommendation, error) {
	rec := &mapping.Recommendation{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           rec,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(item); err != nil {
		return nil, fmt.Errorf("decode recommendation: %w", err)
	}

	if rec.RequiredSkills == nil {
		rec.RequiredSkills = []string{}
	}
	if rec.Qualifications == nil {
		rec.Qualifications = []string{}
	}
	if rec.Benefits == nil {
		rec.Benefits = []string{}
	}
	if rec.MatchBreakdown.MatchedSkills == nil {
		rec.MatchBreakdown.MatchedSkills = []string{}
	}
	return rec, nil
}
