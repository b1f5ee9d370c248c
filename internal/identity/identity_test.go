package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/signloop/signloop/pkg/logger"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "lobby-01", "lobby-01"},
		{"uppercase lowered", "Lobby-01", "lobby-01"},
		{"spaces become hyphens", "front desk screen", "front-desk-screen"},
		{"padding trimmed", "  kiosk-3\n", "kiosk-3"},
		{"specials dropped", "café/display#2", "cafdisplay2"},
		{"dots and underscores kept", "floor_2.east", "floor_2.east"},
		{"edge punctuation trimmed", "-.screen.-", "screen"},
		{"nothing usable", "///", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func newTestResolver(fs afero.Fs, host string, hostErr error, generated string) *Resolver {
	r := NewResolver(fs, "/data", &logger.NopLogger{})
	r.hostname = func() (string, error) { return host, hostErr }
	r.generate = func() string { return generated }
	return r
}

// TestResolveConfiguredWins verifies an explicit id short-circuits the
// whole chain.
func TestResolveConfiguredWins(t *testing.T) {
	r := newTestResolver(afero.NewMemMapFs(), "some-host", nil, "ffffffff")
	if got := r.Resolve("Lobby 01"); got != "lobby-01" {
		t.Errorf("Resolve = %q, want lobby-01", got)
	}
}

// TestResolveFallsBackToHostname verifies the hostname is used when no
// id is configured.
func TestResolveFallsBackToHostname(t *testing.T) {
	r := newTestResolver(afero.NewMemMapFs(), "Screen-7.local", nil, "ffffffff")
	if got := r.Resolve(""); got != "screen-7.local" {
		t.Errorf("Resolve = %q, want screen-7.local", got)
	}
}

// TestResolveGeneratesAndPersists verifies the generated id is written
// for the next boot and read back by a fresh resolver.
func TestResolveGeneratesAndPersists(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestResolver(fs, "", errors.New("no hostname"), "0f0f0f0f-aaaa")

	got := r.Resolve("")
	if got != "0f0f0f0f-aaaa" {
		t.Fatalf("Resolve = %q, want generated id", got)
	}

	data, err := afero.ReadFile(fs, "/data/device-id")
	if err != nil {
		t.Fatalf("id file not written: %v", err)
	}
	if strings.TrimSpace(string(data)) != "0f0f0f0f-aaaa" {
		t.Errorf("persisted %q, want the generated id", data)
	}

	// A later boot with a different generator must reuse the stored id.
	again := newTestResolver(fs, "", errors.New("no hostname"), "different")
	if got := again.Resolve(""); got != "0f0f0f0f-aaaa" {
		t.Errorf("second boot resolved %q, want persisted id", got)
	}
}

// TestResolveUnusableSourcesFallThrough verifies each unusable source is
// skipped rather than returned empty.
func TestResolveUnusableSourcesFallThrough(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/device-id", []byte("###\n"), 0644); err != nil {
		t.Fatalf("seed id file: %v", err)
	}

	r := newTestResolver(fs, "///", nil, "fresh-id")
	if got := r.Resolve("!!!"); got != "fresh-id" {
		t.Errorf("Resolve = %q, want fresh-id", got)
	}
}

// TestResolveWithoutDataDir verifies persistence is skipped when no data
// directory is configured.
func TestResolveWithoutDataDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := NewResolver(fs, "", &logger.NopLogger{})
	r.hostname = func() (string, error) { return "", errors.New("no hostname") }
	r.generate = func() string { return "ephemeral" }

	if got := r.Resolve(""); got != "ephemeral" {
		t.Fatalf("Resolve = %q, want ephemeral", got)
	}
	if ok, _ := afero.Exists(fs, "/device-id"); ok {
		t.Error("id file written despite empty data dir")
	}
}
