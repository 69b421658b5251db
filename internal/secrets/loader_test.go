package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "gemini.key")
	if err := os.WriteFile(keyFile, []byte("  file-secret\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty.key")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	t.Setenv("RECOMMENDER_TEST_KEY", " env-secret ")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr string
	}{
		{name: "inline value", src: Source{Name: "gemini api key", Value: " inline "}, want: "inline"},
		{name: "file wins over value", src: Source{Value: "inline", File: keyFile}, want: "file-secret"},
		{name: "env wins over value", src: Source{Value: "inline", Env: "RECOMMENDER_TEST_KEY"}, want: "env-secret"},
		{name: "file wins over env", src: Source{Env: "RECOMMENDER_TEST_KEY", File: keyFile}, want: "file-secret"},
		{name: "unset env falls back to value", src: Source{Value: "inline", Env: "RECOMMENDER_TEST_UNSET"}, want: "inline"},
		{name: "unset env without value", src: Source{Name: "gemini api key", Env: "RECOMMENDER_TEST_UNSET"}, wantErr: "RECOMMENDER_TEST_UNSET is empty"},
		{name: "missing file", src: Source{Name: "gemini api key", File: filepath.Join(dir, "nope")}, wantErr: `reading gemini api key from file`},
		{name: "empty file", src: Source{File: emptyFile}, wantErr: "secret file"},
		{name: "nothing configured", src: Source{Name: "gemini api key"}, wantErr: "gemini api key is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
