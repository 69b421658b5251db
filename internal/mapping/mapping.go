// Package mapping turns catalog records into the recommendation shape served
// to clients.
package mapping

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spigell/internship-recommender/internal/catalog"
	"github.com/spigell/internship-recommender/internal/dates"
	"github.com/spigell/internship-recommender/internal/scoring"
)

const (
	// ISOLayout matches the millisecond precision UTC timestamps clients expect.
	ISOLayout = "2006-01-02T15:04:05.000Z"

	DefaultLogo      = "https://images.unsplash.com/photo-1551434678-e076c223a692?w=100&h=100&fit=crop&crop=center"
	DefaultSector    = "Technology"
	DefaultDuration  = "3 months"
	DefaultReasoning = "Matched based on your skills and preferences."

	defaultDeadlineDays = 14
	defaultPostedDays   = 3

	DefaultPercentage = 75
	MinPercentage     = 50
	MaxPercentage     = 98

	heuristicWeight = 0.6
	scaledWeight    = 0.4
)

// Recommendation is one ranked listing as returned to the caller.
type Recommendation struct {
	ID                  int            `json:"id" yaml:"id" mapstructure:"id"`
	Title               string         `json:"title" yaml:"title" mapstructure:"title"`
	Company             string         `json:"company" yaml:"company" mapstructure:"company"`
	CompanyLogo         string         `json:"companyLogo" yaml:"companyLogo" mapstructure:"companyLogo"`
	Sector              string         `json:"sector" yaml:"sector" mapstructure:"sector"`
	Location            string         `json:"location" yaml:"location" mapstructure:"location"`
	Duration            string         `json:"duration" yaml:"duration" mapstructure:"duration"`
	Stipend             int            `json:"stipend" yaml:"stipend" mapstructure:"stipend"`
	ApplicationDeadline string         `json:"applicationDeadline" yaml:"applicationDeadline" mapstructure:"applicationDeadline"`
	DaysUntilDeadline   *int           `json:"daysUntilDeadline" yaml:"daysUntilDeadline" mapstructure:"daysUntilDeadline"`
	MatchPercentage     int            `json:"matchPercentage" yaml:"matchPercentage" mapstructure:"matchPercentage"`
	RequiredSkills      []string       `json:"requiredSkills" yaml:"requiredSkills" mapstructure:"requiredSkills"`
	Qualifications      []string       `json:"qualifications" yaml:"qualifications" mapstructure:"qualifications"`
	Description         string         `json:"description" yaml:"description" mapstructure:"description"`
	AIReasoning         string         `json:"aiReasoning" yaml:"aiReasoning" mapstructure:"aiReasoning"`
	Benefits            []string       `json:"benefits" yaml:"benefits" mapstructure:"benefits"`
	PostedDaysAgo       int            `json:"postedDaysAgo" yaml:"postedDaysAgo" mapstructure:"postedDaysAgo"`
	IsSaved             bool           `json:"isSaved" yaml:"isSaved" mapstructure:"isSaved"`
	MatchBreakdown      MatchBreakdown `json:"matchBreakdown" yaml:"matchBreakdown" mapstructure:"matchBreakdown"`
}

type MatchBreakdown struct {
	MatchedSkills []string `json:"matchedSkills" yaml:"matchedSkills" mapstructure:"matchedSkills"`
}

// Context carries the per-request inputs of the mapper.
type Context struct {
	// Skills enables the skill based percentage estimate when non-empty.
	Skills scoring.SkillSet
	Now    time.Time
}

// Map converts record into a Recommendation with the given 1-based rank.
func Map(record *catalog.Record, rank int, mc Context) Recommendation {
	location := record.PrimaryCity()
	company := record.CompanyName()

	rec := Recommendation{
		ID:             rank,
		Title:          record.Title,
		Company:        company,
		CompanyLogo:    DefaultLogo,
		Sector:         sector(record),
		Location:       location,
		Duration:       duration(record),
		Stipend:        record.StipendAmount(),
		RequiredSkills: []string{},
		Qualifications: []string{},
		Description:    fmt.Sprintf("%s internship at %s in %s.", record.Title, company, location),
		AIReasoning:    DefaultReasoning,
		Benefits:       []string{},
		PostedDaysAgo:  defaultPostedDays,
	}

	if deadline, ok := dates.ParseDayMonthYear(record.ApplyBy); ok {
		rec.ApplicationDeadline = deadline.UTC().Format(ISOLayout)
		days := dates.DaysBetween(mc.Now, deadline)
		rec.DaysUntilDeadline = &days
	} else {
		rec.ApplicationDeadline = dates.AddDays(mc.Now, defaultDeadlineDays).UTC().Format(ISOLayout)
	}

	if posted, ok := dates.ParseDayMonthYear(record.PostedOn); ok {
		rec.PostedDaysAgo = dates.DaysBetween(posted, mc.Now)
	}

	pct, matched := SkillPercentage(record, mc.Skills)
	rec.MatchPercentage = pct
	rec.MatchBreakdown = MatchBreakdown{MatchedSkills: matched}

	if record.Similarity != nil {
		rec.MatchPercentage = SimilarityPercentage(*record.Similarity)
	}

	return rec
}

// MapCandidate maps a scored candidate; the breakdown reports the skills the
// scoring engine matched.
func MapCandidate(candidate scoring.Candidate, rank int, mc Context) Recommendation {
	rec := Map(candidate.Record, rank, mc)
	if candidate.MatchedSkills != nil {
		rec.MatchBreakdown.MatchedSkills = append([]string{}, candidate.MatchedSkills...)
	}
	return rec
}

// MapAll maps every record in feed order with ids starting at 1.
func MapAll(records *catalog.Records, mc Context) []Recommendation {
	out := make([]Recommendation, 0, records.Len())
	if records.Len() == 0 {
		return out
	}
	for i, record := range records.Items {
		out = append(out, Map(record, i+1, mc))
	}
	return out
}

// SkillPercentage estimates the match from the share of skills found in
// "{title} {type}". The result is clamped to [50,98]; without skills it is 75.
func SkillPercentage(record *catalog.Record, skills scoring.SkillSet) (int, []string) {
	matched := []string{}
	if skills.Len() == 0 {
		return DefaultPercentage, matched
	}

	hay := strings.ToLower(record.Title + " " + record.Type)
	for _, skill := range skills.Items() {
		if strings.Contains(hay, skill) {
			matched = append(matched, skill)
		}
	}

	pct := Round(float64(len(matched)) / float64(skills.Len()) * 100)
	return clamp(pct, MinPercentage, MaxPercentage), matched
}

// SimilarityPercentage converts an external similarity in [0,1] to a percentage.
// It is not squeezed into the heuristic [50,98] band.
func SimilarityPercentage(similarity float64) int {
	if math.IsNaN(similarity) {
		return 0
	}
	return clamp(Round(similarity*100), 0, 100)
}

// Scale expresses score relative to the best score of the pass, clamped to
// [50,98]. A zero best score is treated as 1.
func Scale(score, best float64) int {
	if best == 0 {
		best = 1
	}
	return clamp(Round(score/best*100), MinPercentage, MaxPercentage)
}

// Blend mixes the heuristic percentage with the scaled ranking score.
func Blend(heuristic, scaled int) int {
	return Round(float64(heuristic)*heuristicWeight + float64(scaled)*scaledWeight)
}

// Round rounds half up, so 62.5 becomes 63.
func Round(v float64) int {
	return int(math.Floor(v + 0.5))
}

func sector(record *catalog.Record) string {
	if s := strings.TrimSpace(record.Type); s != "" {
		return s
	}
	return DefaultSector
}

func duration(record *catalog.Record) string {
	if months := record.Months(); months > 0 {
		return fmt.Sprintf("%d months", months)
	}
	if raw := strings.TrimSpace(record.DurationMonths); raw != "" {
		return raw
	}
	return DefaultDuration
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
