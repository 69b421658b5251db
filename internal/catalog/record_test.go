package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecordWeakTypes(t *testing.T) {
	record, err := DecodeRecord(map[string]any{
		"Title":           "Data Intern",
		"type":            "Technology",
		"cities":          "Bangalore, Remote",
		"stipend":         float64(15000),
		"duration_months": 6,
		"similarity":      0.82,
		"posted_on":       "  ",
		"unknown_column":  "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "Data Intern", record.Title)
	assert.Equal(t, "15000", record.Stipend)
	assert.Equal(t, "6", record.DurationMonths)
	assert.Empty(t, record.PostedOn)
	require.NotNil(t, record.Similarity)
	assert.InDelta(t, 0.82, *record.Similarity, 1e-9)
}

func TestDecodeRecordEmptySimilarityIsAbsent(t *testing.T) {
	record, err := DecodeRecord(map[string]any{"title": "x", "similarity": ""})
	require.NoError(t, err)
	assert.Nil(t, record.Similarity)
}

func TestRecordNumbers(t *testing.T) {
	tests := []struct {
		name    string
		stipend string
		months  string
		expectS int
		expectM int
	}{
		{name: "plain", stipend: "50000", months: "3", expectS: 50000, expectM: 3},
		{name: "trailing text", stipend: "12000/month", months: "6 months", expectS: 12000, expectM: 6},
		{name: "decimal", stipend: "7500.50", months: "2.5", expectS: 7500, expectM: 2},
		{name: "garbage", stipend: "unpaid", months: "flexible", expectS: 0, expectM: 0},
		{name: "empty", expectS: 0, expectM: 0},
		{name: "negative stipend clamps", stipend: "-100", months: "-1", expectS: 0, expectM: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{Stipend: tt.stipend, DurationMonths: tt.months}
			assert.Equal(t, tt.expectS, r.StipendAmount())
			assert.Equal(t, tt.expectM, r.Months())
		})
	}
}

func TestRecordCities(t *testing.T) {
	r := &Record{Cities: " Bangalore , ,Remote,"}
	assert.Equal(t, []string{"Bangalore", "Remote"}, r.CityList())
	assert.Equal(t, "bangalore", r.PrimaryCity())

	empty := &Record{}
	assert.Empty(t, empty.CityList())
	assert.Equal(t, "", empty.PrimaryCity())
}

func TestSourceKey(t *testing.T) {
	assert.Equal(t, "data intern::acme::pune", SourceKey(" Data Intern ", "ACME", "Pune"))
	assert.Equal(t, "", SourceKey("", "Acme", "Pune"))
	assert.Equal(t, "", SourceKey("Data Intern", " ", "Pune"))

	r := &Record{Title: "Data Intern", Cities: "Pune, Mumbai"}
	assert.Equal(t, "data intern::company::pune", r.SourceKey())
}

func TestRecordsRetainPreservesOrder(t *testing.T) {
	records := &Records{Items: []*Record{
		{Title: "a", Stipend: "1"},
		{Title: "b", Stipend: "0"},
		{Title: "c", Stipend: "3"},
		{Title: "d", Stipend: "0"},
	}}

	dropped := records.Retain(func(r *Record) bool { return r.StipendAmount() > 0 })

	assert.Equal(t, []string{"a", "c"}, Titles(records.Items))
	assert.Equal(t, []string{"b", "d"}, Titles(dropped))
}

func TestRecordsAt(t *testing.T) {
	records := &Records{Items: []*Record{{Title: "first"}, {Title: "second"}}}

	r, ok := records.At(2)
	require.True(t, ok)
	assert.Equal(t, "second", r.Title)

	_, ok = records.At(0)
	assert.False(t, ok)
	_, ok = records.At(3)
	assert.False(t, ok)
}
