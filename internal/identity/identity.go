// Package identity resolves the stable device id a player reports to its
// content endpoint. The id survives restarts so the endpoint keeps
// serving the same playlists to the same screen.
package identity

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/signloop/signloop/pkg/logger"
)

// DEF_ID_FILE is the file under the data directory that holds a
// generated device id.
const DEF_ID_FILE = "device-id"

// Resolver finds the device id through a fixed chain: explicit
// configuration, then the sanitized hostname, then an id persisted from
// an earlier run, then a freshly generated one (persisted for next time).
type Resolver struct {
	fs      afero.Fs
	dataDir string
	lg      logger.Logger

	// injection points for tests
	hostname func() (string, error)
	generate func() string
}

// NewResolver creates a resolver persisting generated ids under dataDir.
// An empty dataDir disables persistence; a generated id then changes on
// every boot, which the endpoint sees as a new device.
func NewResolver(fs afero.Fs, dataDir string, lg logger.Logger) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	return &Resolver{
		fs:       fs,
		dataDir:  dataDir,
		lg:       lg,
		hostname: os.Hostname,
		generate: uuid.NewString,
	}
}

// Resolve walks the chain and returns the first usable id. Every source
// passes through Sanitize; a source that sanitizes to nothing falls
// through to the next one.
func (r *Resolver) Resolve(configured string) string {
	if id := Sanitize(configured); id != "" {
		return id
	}

	if host, err := r.hostname(); err == nil {
		if id := Sanitize(host); id != "" {
			r.lg.Info("identity: using hostname %s as device id", id)
			return id
		}
	}

	if id := r.loadPersisted(); id != "" {
		return id
	}

	id := Sanitize(r.generate())
	r.lg.Info("identity: generated device id %s", id)
	r.persist(id)
	return id
}

func (r *Resolver) idPath() string {
	if r.dataDir == "" {
		return ""
	}
	return filepath.Join(r.dataDir, DEF_ID_FILE)
}

func (r *Resolver) loadPersisted() string {
	path := r.idPath()
	if path == "" {
		return ""
	}
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return ""
	}
	id := Sanitize(string(data))
	if id == "" {
		r.lg.Warning("identity: ignoring unusable id file %s", path)
	}
	return id
}

// persist writes the id for the next boot. A write failure is logged and
// otherwise ignored; the id still identifies this run.
func (r *Resolver) persist(id string) {
	path := r.idPath()
	if path == "" {
		return
	}
	if err := r.fs.MkdirAll(r.dataDir, 0755); err != nil {
		r.lg.Warning("identity: could not create %s: %s", r.dataDir, err.Error())
		return
	}
	if err := afero.WriteFile(r.fs, path, []byte(id+"\n"), 0644); err != nil {
		r.lg.Warning("identity: could not persist device id: %s", err.Error())
	}
}

// Sanitize normalizes a device id candidate: lowercased, spaces become
// hyphens, anything outside [a-z0-9._-] is dropped. Returns "" when
// nothing usable remains.
func Sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			b.WriteRune(c)
		case c == ' ':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), ".-")
}
