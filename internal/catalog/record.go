// Package catalog holds the internship listing records and the loaders that
// read them from the tabular feed.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"
)

// Record is a single listing as it appears in the feed. Numeric columns are kept
// raw because the feed is not trusted to contain numbers.
type Record struct {
	Title          string `json:"title" mapstructure:"title"`
	Type           string `json:"type" mapstructure:"type"`
	Cities         string `json:"cities" mapstructure:"cities"`
	Company        string `json:"company" mapstructure:"company"`
	Stipend        string `json:"stipend" mapstructure:"stipend"`
	DurationMonths string `json:"duration_months" mapstructure:"duration_months"`
	ApplyBy        string `json:"apply_by" mapstructure:"apply_by"`
	PostedOn       string `json:"posted_on" mapstructure:"posted_on"`
	// Similarity is only set by external scorers, in [0,1].
	Similarity *float64 `json:"similarity,omitempty" mapstructure:"similarity"`
}

// Records is an ordered listing collection. Order is the feed order and is
// significant for tie-breaking.
type Records struct {
	Items []*Record
}

// DecodeRecord builds a Record out of a loosely typed row. Values may be strings
// or numbers; empty values are treated as absent.
func DecodeRecord(raw map[string]any) (*Record, error) {
	cleaned := make(map[string]any, len(raw))
	for key, value := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			value = s
		}
		cleaned[key] = value
	}

	var record Record
	cfg := &mapstructure.DecoderConfig{
		Result:           &record,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create record decoder: %w", err)
	}

	if err := decoder.Decode(cleaned); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	return &record, nil
}

// StipendAmount returns the stipend as an integer. Malformed or negative values
// yield 0.
func (r *Record) StipendAmount() int {
	n := leadingInt(r.Stipend)
	if n < 0 {
		return 0
	}
	return n
}

// Months returns duration_months as an integer, 0 when it does not parse.
func (r *Record) Months() int {
	return leadingInt(r.DurationMonths)
}

// CityList splits the comma joined cities column, trimming entries and dropping
// empty ones. Case is preserved.
func (r *Record) CityList() []string {
	parts := strings.Split(r.Cities, ",")
	cities := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cities = append(cities, p)
		}
	}
	return cities
}

// PrimaryCity returns the first city, lowercased, or an empty string.
func (r *Record) PrimaryCity() string {
	cities := r.CityList()
	if len(cities) == 0 {
		return ""
	}
	return strings.ToLower(cities[0])
}

// CompanyName falls back to a generic label when the feed has no company.
func (r *Record) CompanyName() string {
	if c := strings.TrimSpace(r.Company); c != "" {
		return c
	}
	return "Company"
}

// SourceKey identifies the listing for application tracking.
func (r *Record) SourceKey() string {
	return SourceKey(r.Title, r.CompanyName(), r.PrimaryCity())
}

// SourceKey builds the deduplication key "title::company::location". It returns
// an empty string when title or company is missing.
func SourceKey(title, company, location string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	c := strings.ToLower(strings.TrimSpace(company))
	l := strings.ToLower(strings.TrimSpace(location))
	if t == "" || c == "" {
		return ""
	}
	return t + "::" + c + "::" + l
}

func (r *Records) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

// At returns the listing with the given 1-based position in feed order.
func (r *Records) At(id int) (*Record, bool) {
	if r == nil || id < 1 || id > len(r.Items) {
		return nil, false
	}
	return r.Items[id-1], true
}

// Retain keeps the records for which keep returns true, preserving order, and
// returns the dropped ones.
func (r *Records) Retain(keep func(*Record) bool) []*Record {
	kept := r.Items[:0:0]
	var dropped []*Record
	for _, record := range r.Items {
		if keep(record) {
			kept = append(kept, record)
			continue
		}
		dropped = append(dropped, record)
	}
	r.Items = kept
	return dropped
}

// Titles returns the titles of the given records, used for logging.
func Titles(records []*Record) []string {
	titles := make([]string, 0, len(records))
	for _, r := range records {
		titles = append(titles, r.Title)
	}
	return titles
}

// leadingInt reads an optional sign and the leading run of digits, ignoring
// anything after it. "12 months" is 12, "abc" is 0.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for i, r := range s {
		if i == 0 && (r == '-' || r == '+') {
			end = 1
			continue
		}
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			break
		}
		end = i + 1
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
