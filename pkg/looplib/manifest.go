package looplib

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/signloop/signloop/pkg/logger"
)

// ManifestName is the file name of the cache manifest inside the data
// directory.
const ManifestName = "manifest.json"

// ManifestAsset records one cached (or web) asset with everything needed
// to rebuild the playback list without the endpoint.
type ManifestAsset struct {
	LocalPath       string      `json:"localPath"`
	ContentKind     ContentKind `json:"contentKind"`
	DurationSeconds int         `json:"durationSeconds"`
	Name            string      `json:"name"`
	SourceUrl       string      `json:"sourceUrl"`
	Filetype        string      `json:"filetype"`
	PlayingOrder    int         `json:"playingOrder"`
}

// Manifest is the persisted record of the last successfully applied
// playback list. It is the offline fallback: when the endpoint cannot be
// reached at startup the player resumes from these assets.
type Manifest struct {
	DeviceId  string          `json:"deviceId"`
	FetchedAt time.Time       `json:"timestamp"`
	Assets    []ManifestAsset `json:"assets"`
}

// NewManifest builds a manifest from a resolved local asset list.
func NewManifest(deviceId string, assets []LocalAsset) *Manifest {
	m := &Manifest{
		DeviceId:  deviceId,
		FetchedAt: time.Now(),
		Assets:    make([]ManifestAsset, 0, len(assets)),
	}
	for _, a := range assets {
		m.Assets = append(m.Assets, ManifestAsset{
			LocalPath:       a.Path,
			ContentKind:     a.Kind,
			DurationSeconds: a.Duration,
			Name:            a.Name,
			SourceUrl:       a.Source,
			Filetype:        a.Type,
			PlayingOrder:    a.Order,
		})
	}
	return m
}

// LocalAssets converts the manifest entries back into the playable form
// handed to the rotation loop.
func (m *Manifest) LocalAssets() []LocalAsset {
	assets := make([]LocalAsset, 0, len(m.Assets))
	for _, e := range m.Assets {
		assets = append(assets, LocalAsset{
			Asset: Asset{
				Source:   e.SourceUrl,
				Type:     e.Filetype,
				Kind:     e.ContentKind,
				Name:     e.Name,
				Duration: e.DurationSeconds,
				Order:    e.PlayingOrder,
			},
			Path: e.LocalPath,
		})
	}
	return assets
}

// SaveManifest writes the manifest atomically: marshal to a temporary
// file in the same directory, then rename over the previous manifest.
// A crash mid-write leaves the old manifest intact.
func SaveManifest(fs afero.Fs, path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp := path + ".part"
	if err := afero.WriteFile(fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		fs.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest and prunes entries whose backing file no
// longer exists. Web entries have no backing file and are always kept.
// A missing or unreadable manifest returns the read error unchanged so
// the caller can distinguish "no manifest yet" from corruption.
func LoadManifest(fs afero.Fs, path string, lg logger.Logger) (*Manifest, error) {
	if lg == nil {
		lg = &logger.NopLogger{}
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}

	kept := m.Assets[:0]
	for _, e := range m.Assets {
		if e.ContentKind == KindWeb {
			kept = append(kept, e)
			continue
		}
		ok, err := afero.Exists(fs, e.LocalPath)
		if err != nil || !ok {
			lg.Warning("manifest: dropping %s, cached file %s is gone", e.Name, e.LocalPath)
			continue
		}
		kept = append(kept, e)
	}
	m.Assets = kept

	return &m, nil
}
