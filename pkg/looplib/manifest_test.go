package looplib

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/signloop/signloop/pkg/logger"
)

func testManifestAssets() []LocalAsset {
	return []LocalAsset{
		{
			Asset: Asset{Source: "https://cdn.example.com/a.jpg", Type: "jpg", Kind: KindImage, Name: "poster", Duration: 10, Order: 1},
			Path:  "/data/cache/1111.jpg",
		},
		{
			Asset: Asset{Source: "https://cdn.example.com/b.mp4", Type: "mp4", Kind: KindVideo, Name: "clip", Duration: 30, Order: 2},
			Path:  "/data/cache/2222.mp4",
		},
		{
			Asset: Asset{Source: "https://example.com/board", Type: "url", Kind: KindWeb, Name: "board", Duration: 20, Order: 3},
			Path:  "",
		},
	}
}

// TestManifestRoundTrip verifies a saved manifest loads back with every
// asset intact when the backing files exist.
func TestManifestRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	assets := testManifestAssets()
	for _, a := range assets {
		if a.Path == "" {
			continue
		}
		if err := afero.WriteFile(fs, a.Path, []byte("media"), 0644); err != nil {
			t.Fatalf("seed file: %v", err)
		}
	}

	m := NewManifest("lobby-01", assets)
	if err := SaveManifest(fs, "/data/manifest.json", m); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	loaded, err := LoadManifest(fs, "/data/manifest.json", &logger.NopLogger{})
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.DeviceId != "lobby-01" {
		t.Errorf("expected device id lobby-01, got %q", loaded.DeviceId)
	}
	if len(loaded.Assets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(loaded.Assets))
	}

	back := loaded.LocalAssets()
	if !LocalAssetsEqual(back, assets) {
		t.Errorf("expected round-tripped assets to equal the originals")
	}
}

// TestLoadManifestPrunesMissingFiles verifies entries whose backing file
// is gone are dropped while web entries are trusted.
func TestLoadManifestPrunesMissingFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	assets := testManifestAssets()
	// Only the first file exists on disk.
	if err := afero.WriteFile(fs, assets[0].Path, []byte("media"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := SaveManifest(fs, "/data/manifest.json", NewManifest("d", assets)); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	mock := logger.NewMockLogger()
	loaded, err := LoadManifest(fs, "/data/manifest.json", mock)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	if len(loaded.Assets) != 2 {
		t.Fatalf("expected 2 surviving assets, got %d", len(loaded.Assets))
	}
	if loaded.Assets[0].Name != "poster" {
		t.Errorf("expected poster kept, got %q", loaded.Assets[0].Name)
	}
	if loaded.Assets[1].ContentKind != KindWeb {
		t.Errorf("expected web entry kept without a backing file, got %q", loaded.Assets[1].ContentKind)
	}
	if len(mock.WarningCalls) != 1 {
		t.Errorf("expected 1 prune warning, got %d", len(mock.WarningCalls))
	}
}

// TestLoadManifestMissing verifies a missing manifest surfaces the read
// error so callers can tell "no manifest yet" apart from corruption.
func TestLoadManifestMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := LoadManifest(fs, "/data/manifest.json", &logger.NopLogger{})
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

// TestLoadManifestCorrupt verifies garbage on disk is an error, not a
// silent empty manifest.
func TestLoadManifestCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/manifest.json", []byte("{nope"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	_, err := LoadManifest(fs, "/data/manifest.json", &logger.NopLogger{})
	if err == nil {
		t.Fatal("expected parse error for corrupt manifest")
	}
}

// TestSaveManifestReplacesAtomically verifies the temp file is renamed
// into place and does not linger.
func TestSaveManifestReplacesAtomically(t *testing.T) {
	fs := afero.NewMemMapFs()

	first := NewManifest("d", testManifestAssets()[:1])
	if err := SaveManifest(fs, "/data/manifest.json", first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second := NewManifest("d", testManifestAssets())
	if err := SaveManifest(fs, "/data/manifest.json", second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	if ok, _ := afero.Exists(fs, "/data/manifest.json.part"); ok {
		t.Error("expected temp file to be renamed away")
	}

	data, err := afero.ReadFile(fs, "/data/manifest.json")
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected manifest content")
	}
}
