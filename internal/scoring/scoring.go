// Package scoring ranks catalog listings against a candidate's sector, location
// and skill preferences.
//
// The score is additive: +30 for a sector hit, +25 for a location hit, +10 per
// matching skill and up to +10 for a fresh posting. A query with no preferences
// at all ranks by stipend instead.
package scoring

import (
	"sort"
	"strings"
	"time"

	"github.com/spigell/internship-recommender/internal/catalog"
	"github.com/spigell/internship-recommender/internal/dates"
	"github.com/spigell/internship-recommender/internal/normalize"
)

const (
	SectorWeight   = 30
	LocationWeight = 25
	SkillWeight    = 10

	FreshBonus  = 10
	RecentBonus = 5

	freshDays  = 7
	recentDays = 30

	stipendDivisor = 1000.0
)

// Query is the preference triple driving one recommendation request. Any field
// may be empty.
type Query struct {
	Sector   string   `json:"sector" yaml:"sector"`
	Location string   `json:"location" yaml:"location"`
	Skills   []string `json:"skills" yaml:"skills"`
}

// Candidate is a scored listing.
type Candidate struct {
	Record        *catalog.Record
	Score         float64
	MatchedSkills []string
}

// IsEmpty reports whether the query carries no preferences after normalization.
func (q Query) IsEmpty() bool {
	return normalize.Text(q.Sector) == "" && normalize.Text(q.Location) == "" && NewSkillSet(q.Skills).Len() == 0
}

// prepared is the normalized form of a query, computed once per ranking pass.
type prepared struct {
	sector   string
	location string
	skills   SkillSet
	empty    bool
}

func prepare(q Query) prepared {
	p := prepared{
		sector:   normalize.Text(q.Sector),
		location: normalize.Text(q.Location),
		skills:   NewSkillSet(q.Skills),
	}
	p.empty = p.sector == "" && p.location == "" && p.skills.Len() == 0
	return p
}

// Score computes the relevance of a single record for q at the instant now.
func Score(record *catalog.Record, q Query, now time.Time) Candidate {
	return prepare(q).score(record, now)
}

func (p prepared) score(record *catalog.Record, now time.Time) Candidate {
	candidate := Candidate{Record: record, MatchedSkills: []string{}}

	if p.empty {
		candidate.Score = float64(record.StipendAmount()) / stipendDivisor
		return candidate
	}

	title := normalize.Text(record.Title)
	kind := normalize.Text(record.Type)

	if p.sector != "" && (strings.Contains(kind, p.sector) || strings.Contains(title, p.sector)) {
		candidate.Score += SectorWeight
	}

	if p.location != "" && (hasCity(record, p.location) || strings.Contains(title, p.location)) {
		candidate.Score += LocationWeight
	}

	for _, skill := range p.skills.items {
		if strings.Contains(title, skill) || strings.Contains(kind, skill) {
			candidate.Score += SkillWeight
			candidate.MatchedSkills = append(candidate.MatchedSkills, skill)
		}
	}

	candidate.Score += recencyBonus(record, now)

	return candidate
}

func hasCity(record *catalog.Record, location string) bool {
	for _, city := range strings.Split(record.Cities, ",") {
		if normalize.Text(city) == location {
			return true
		}
	}
	return false
}

func recencyBonus(record *catalog.Record, now time.Time) float64 {
	posted, ok := dates.ParseDayMonthYear(record.PostedOn)
	if !ok {
		return 0
	}

	switch age := dates.DaysBetween(posted, now); {
	case age <= freshDays:
		return FreshBonus
	case age <= recentDays:
		return RecentBonus
	default:
		return 0
	}
}

// Rank scores every record and sorts them by score, highest first. Records with
// equal scores keep their catalog order.
func Rank(records *catalog.Records, q Query, now time.Time) []Candidate {
	p := prepare(q)

	candidates := make([]Candidate, 0, records.Len())
	if records.Len() == 0 {
		return candidates
	}

	for _, record := range records.Items {
		candidates = append(candidates, p.score(record, now))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates
}

// Top returns at most n leading candidates.
func Top(candidates []Candidate, n int) []Candidate {
	if n < 0 || len(candidates) <= n {
		return candidates
	}
	return candidates[:n]
}
