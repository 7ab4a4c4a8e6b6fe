package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("CREWZY_TEST_SECRET", " from-env ")

	cases := []struct {
		name    string
		src     Source
		want    string
		wantErr string
	}{
		{name: "file wins", src: Source{File: keyFile, Env: "CREWZY_TEST_SECRET", Value: "inline"}, want: "from-file"},
		{name: "env over value", src: Source{Env: "CREWZY_TEST_SECRET", Value: "inline"}, want: "from-env"},
		{name: "inline", src: Source{Value: " inline "}, want: "inline"},
		{name: "unset env falls back", src: Source{Env: "CREWZY_TEST_UNSET", Value: "inline"}, want: "inline"},
		{name: "empty file", src: Source{Name: "gemini api key", File: emptyFile}, wantErr: "gemini api key file"},
		{name: "missing file", src: Source{File: filepath.Join(dir, "nope")}, wantErr: "reading secret"},
		{name: "nothing", src: Source{Name: "routing secret", Env: "CREWZY_TEST_UNSET"}, wantErr: "set CREWZY_TEST_UNSET"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Load(tc.src)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
