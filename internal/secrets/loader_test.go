package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr string
	}{
		{name: "inline", src: Source{Name: "api key", Value: " inline "}, want: "inline"},
		{name: "file wins over inline", src: Source{Name: "api key", Value: "inline", File: keyFile}, want: "from-file"},
		{name: "missing", src: Source{Name: "api key"}, wantErr: "api key is not configured"},
		{name: "empty file", src: Source{Name: "api key", File: emptyFile}, wantErr: "is empty"},
		{name: "unreadable file", src: Source{Name: "api key", File: filepath.Join(dir, "nope")}, wantErr: "reading api key from file"},
		{name: "default name", src: Source{}, wantErr: "secret is not configured"},
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

func TestLoadHint(t *testing.T) {
	_, err := Load(Source{Name: "anthropic api key", Hint: "set ANTHROPIC_API_KEY"})
	if err == nil {
		t.Fatalf("expected error")
	}

	hints := errors.GetAllHints(err)
	if len(hints) != 1 || hints[0] != "set ANTHROPIC_API_KEY" {
		t.Fatalf("expected hint, got %v", hints)
	}
}

func TestOptional(t *testing.T) {
	got, err := Optional(Source{Name: "jina api key"})
	if err != nil || got != "" {
		t.Fatalf("expected empty value without error, got %q, %v", got, err)
	}

	if _, err := Optional(Source{Name: "jina api key", File: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("expected error for unreadable file")
	}
}
