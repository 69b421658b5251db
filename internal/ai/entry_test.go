package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, payload string) []map[string]any {
	t.Helper()
	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &items))
	return items
}

func TestDecodeEntriesRawRecords(t *testing.T) {
	items := decodeJSON(t, `[
		{"title": "Data Intern", "type": "Technology", "cities": "Pune", "company": "Acme", "stipend": 12000, "similarity": 0.81},
		{"title": "Ops Intern", "company": "Beta", "duration_months": 3}
	]`)

	entries, err := DecodeEntries(items)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.False(t, first.IsNormalized())
	require.NotNil(t, first.Raw)
	assert.Equal(t, "Data Intern", first.Raw.Title)
	assert.Equal(t, 12000, first.Raw.StipendAmount())
	require.NotNil(t, first.Raw.Similarity)
	assert.InDelta(t, 0.81, *first.Raw.Similarity, 1e-9)

	second := entries[1]
	require.NotNil(t, second.Raw)
	assert.Nil(t, second.Raw.Similarity)
	assert.Equal(t, 3, second.Raw.Months())
}

func TestDecodeEntriesNormalized(t *testing.T) {
	items := decodeJSON(t, `[{
		"id": 9,
		"title": "ML Intern",
		"company": "Gamma",
		"location": "delhi",
		"applicationDeadline": "2099-01-01T00:00:00.000Z",
		"daysUntilDeadline": 12,
		"matchPercentage": 91,
		"stipend": 20000,
		"matchBreakdown": {"matchedSkills": ["python"]}
	}]`)

	entries, err := DecodeEntries(items)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	rec := entries[0].Normalized
	require.NotNil(t, rec)
	assert.Nil(t, entries[0].Raw)
	assert.Equal(t, 9, rec.ID)
	assert.Equal(t, "Gamma", rec.Company)
	assert.Equal(t, 91, rec.MatchPercentage)
	require.NotNil(t, rec.DaysUntilDeadline)
	assert.Equal(t, 12, *rec.DaysUntilDeadline)
	assert.Equal(t, []string{"python"}, rec.MatchBreakdown.MatchedSkills)
	assert.Equal(t, []string{}, rec.RequiredSkills)
	assert.Equal(t, []string{}, rec.Benefits)
}

func TestDecodeEntriesBlankDeadlineIsRaw(t *testing.T) {
	items := []map[string]any{{"title": "x", "company": "y", "applicationDeadline": "  "}}

	entries, err := DecodeEntries(items)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsNormalized())
	assert.Equal(t, "x", entries[0].Raw.Title)
}

func TestDecodeEntriesRejectsUndecodable(t *testing.T) {
	items := []map[string]any{{"title": map[string]any{"nested": true}}}

	_, err := DecodeEntries(items)
	assert.Error(t, err)
}

func TestDecodeEntriesEmpty(t *testing.T) {
	entries, err := DecodeEntries(nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
