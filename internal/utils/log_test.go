package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  `[{"title":"Data Intern"}]`,
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "[]",
			limit:  10,
			expect: "[]",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  `[{"title":"Data Intern"}]`,
			limit:  10,
			expect: `[{"title":...`,
		},
		{
			name:   "folds script output onto one line",
			input:  "[\n  {\"index\": 1},\n  {\"index\": 2}\n]\n",
			limit:  100,
			expect: `[ {"index": 1}, {"index": 2} ]`,
		},
		{
			name:   "counts runes not bytes",
			input:  "Bengaluru • Pune",
			limit:  11,
			expect: "Bengaluru •...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
