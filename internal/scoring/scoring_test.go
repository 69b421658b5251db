package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/internship-recommender/internal/catalog"
)

var now = time.Date(2025, time.June, 30, 9, 0, 0, 0, time.UTC)

func TestScoreSectorLocationSkills(t *testing.T) {
	q := Query{Sector: "technology", Location: "bangalore", Skills: []string{"python", "sql"}}

	tests := []struct {
		name    string
		record  catalog.Record
		score   float64
		matched []string
	}{
		{
			name:    "sector and location without skill hits",
			record:  catalog.Record{Title: "Data Intern", Type: "Technology", Cities: "Bangalore, Remote"},
			score:   55,
			matched: []string{},
		},
		{
			name:    "skills in title",
			record:  catalog.Record{Title: "Python & SQL Data Intern", Type: "Technology", Cities: "Bangalore, Remote"},
			score:   75,
			matched: []string{"python", "sql"},
		},
		{
			name:    "location in title only",
			record:  catalog.Record{Title: "Bangalore Ops Intern", Type: "Operations", Cities: "Mysore"},
			score:   25,
			matched: []string{},
		},
		{
			name:    "city must match exactly",
			record:  catalog.Record{Title: "Ops Intern", Type: "Operations", Cities: "Bangalore Rural"},
			score:   0,
			matched: []string{},
		},
		{
			name:    "sector in title",
			record:  catalog.Record{Title: "Technology Analyst", Type: "Consulting", Cities: "Pune"},
			score:   30,
			matched: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := tt.record
			got := Score(&record, q, now)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.matched, got.MatchedSkills)
			assert.Same(t, &record, got.Record)
		})
	}
}

func TestScoreSectorContributesExactlyThirty(t *testing.T) {
	record := &catalog.Record{Title: "Backend Intern", Type: "Technology", Cities: "Pune", PostedOn: "28-06-2025"}
	with := Score(record, Query{Sector: "Technology", Location: "pune", Skills: []string{"backend"}}, now)
	without := Score(record, Query{Sector: "finance", Location: "pune", Skills: []string{"backend"}}, now)

	assert.Equal(t, float64(SectorWeight), with.Score-without.Score)
}

func TestScoreSkillDuplicatesCollapse(t *testing.T) {
	record := &catalog.Record{Title: "Java Developer Intern", Type: "Technology"}
	got := Score(record, Query{Skills: []string{"Java", "java", " JAVA "}}, now)

	assert.Equal(t, float64(SkillWeight), got.Score)
	assert.Equal(t, []string{"java"}, got.MatchedSkills)
}

func TestScoreSkillSubstringOverlap(t *testing.T) {
	// "java" is found inside "javascript"; substring matching is intentional.
	record := &catalog.Record{Title: "JavaScript Intern", Type: "Technology"}
	got := Score(record, Query{Skills: []string{"java", "javascript"}}, now)

	assert.Equal(t, float64(2*SkillWeight), got.Score)
}

func TestScoreRecency(t *testing.T) {
	tests := []struct {
		name     string
		postedOn string
		bonus    float64
	}{
		{name: "today", postedOn: "30-06-2025", bonus: FreshBonus},
		{name: "seven days", postedOn: "24-06-2025", bonus: FreshBonus},
		{name: "eight days", postedOn: "23-06-2025", bonus: RecentBonus},
		{name: "thirty days", postedOn: "01-06-2025", bonus: RecentBonus},
		{name: "thirty one days", postedOn: "31-05-2025", bonus: 0},
		{name: "future posting", postedOn: "10-07-2025", bonus: FreshBonus},
		{name: "unparseable", postedOn: "yesterday", bonus: 0},
		{name: "missing", postedOn: "", bonus: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &catalog.Record{Title: "Intern", Type: "Design", PostedOn: tt.postedOn}
			got := Score(record, Query{Sector: "finance"}, now)
			assert.Equal(t, tt.bonus, got.Score)
		})
	}
}

func TestScoreEmptyQueryUsesStipend(t *testing.T) {
	record := &catalog.Record{Title: "Technology Intern", Type: "Technology", Stipend: "50000", PostedOn: "30-06-2025"}

	got := Score(record, Query{}, now)
	assert.Equal(t, 50.0, got.Score)

	got = Score(record, Query{Sector: "  ", Skills: []string{"", "!!"}}, now)
	assert.Equal(t, 50.0, got.Score, "blank preferences count as empty")
}

func TestScoreNeverNegative(t *testing.T) {
	records := []catalog.Record{
		{Stipend: "-5000"},
		{Stipend: "abc", PostedOn: "01-01-1990"},
		{Title: "x", Type: "y", Cities: ",,,"},
	}
	queries := []Query{{}, {Sector: "x"}, {Location: "z", Skills: []string{"q"}}}

	for i := range records {
		for _, q := range queries {
			got := Score(&records[i], q, now)
			assert.GreaterOrEqual(t, got.Score, 0.0)
		}
	}
}

func TestRankEmptyQueryOrdersByStipend(t *testing.T) {
	records := &catalog.Records{Items: []*catalog.Record{
		{Title: "unpaid", Stipend: "0"},
		{Title: "paid", Stipend: "50000"},
	}}

	ranked := Rank(records, Query{}, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "paid", ranked[0].Record.Title)
	assert.Equal(t, 50.0, ranked[0].Score)
	assert.Equal(t, 0.0, ranked[1].Score)
}

func TestRankIsStableForTies(t *testing.T) {
	records := &catalog.Records{}
	for i := 0; i < 15; i++ {
		stipend := "10000"
		if i == 7 {
			stipend = "20000"
		}
		records.Items = append(records.Items, &catalog.Record{Title: fmt.Sprintf("r%02d", i), Stipend: stipend})
	}

	ranked := Rank(records, Query{}, now)
	require.Len(t, ranked, 15)

	expected := []string{"r07"}
	for i := 0; i < 15; i++ {
		if i != 7 {
			expected = append(expected, fmt.Sprintf("r%02d", i))
		}
	}

	got := make([]string, 0, len(ranked))
	for _, c := range ranked {
		got = append(got, c.Record.Title)
	}
	assert.Equal(t, expected, got)
}

func TestRankEmptyCatalog(t *testing.T) {
	assert.Empty(t, Rank(nil, Query{}, now))
	assert.Empty(t, Rank(&catalog.Records{}, Query{Sector: "x"}, now))
}

func TestTop(t *testing.T) {
	candidates := make([]Candidate, 12)
	assert.Len(t, Top(candidates, 10), 10)
	assert.Len(t, Top(candidates[:3], 10), 3)
	assert.Len(t, Top(candidates, -1), 12)
}

func TestQueryIsEmpty(t *testing.T) {
	assert.True(t, Query{}.IsEmpty())
	assert.True(t, Query{Sector: " ", Skills: []string{"  "}}.IsEmpty())
	assert.False(t, Query{Location: "Delhi"}.IsEmpty())
}
