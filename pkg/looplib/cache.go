package looplib

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/signloop/signloop/pkg/logger"
)

// CacheHandlers carries optional callbacks fired during asset downloads.
// Any or all fields may be nil; missing handlers are replaced with no-ops.
type CacheHandlers struct {
	// FetchStartHandler fires once per download after the remote size is
	// known. size is -1 when the server did not report a length.
	FetchStartHandler func(name, sourceURL string, size int64)
	// FetchProgressHandler fires for every chunk written to disk.
	FetchProgressHandler func(name string, nread int)
	// FetchCompleteHandler fires after the file has been renamed into place.
	FetchCompleteHandler func(name string, size int64)
	// FetchErrorHandler fires when a download fails.
	FetchErrorHandler func(name string, err error)
}

func (h *CacheHandlers) setDefault() {
	if h.FetchStartHandler == nil {
		h.FetchStartHandler = func(_, _ string, _ int64) {}
	}
	if h.FetchProgressHandler == nil {
		h.FetchProgressHandler = func(_ string, _ int) {}
	}
	if h.FetchCompleteHandler == nil {
		h.FetchCompleteHandler = func(_ string, _ int64) {}
	}
	if h.FetchErrorHandler == nil {
		h.FetchErrorHandler = func(_ string, _ error) {}
	}
}

// FetchStatus describes one download currently in flight.
type FetchStatus struct {
	Name     string
	Url      string
	Total    int64 // -1 when unknown
	received atomic.Int64
}

// Received returns how many bytes have been written so far.
func (s *FetchStatus) Received() int64 {
	return s.received.Load()
}

// AssetCache stores remote media under content-keyed file names so the
// player survives endpoint outages. File names derive from the source
// URL, so the same URL always lands on the same file and a list change
// only downloads what is actually new. Web assets are never cached; they
// play straight from their source.
type AssetCache struct {
	fs       afero.Fs
	dir      string
	router   *SchemeRouter
	handlers *CacheHandlers
	retry    RetryConfig
	lg       logger.Logger

	sf       singleflight.Group
	inflight VMap[string, *FetchStatus]

	mu     sync.Mutex
	closed bool
}

// NewAssetCache creates the cache directory if needed and returns a
// ready cache. handlers and lg may be nil.
func NewAssetCache(fs afero.Fs, dir string, router *SchemeRouter, handlers *CacheHandlers, lg logger.Logger) (*AssetCache, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if router == nil {
		router = NewSchemeRouter(nil, 0)
	}
	if handlers == nil {
		handlers = &CacheHandlers{}
	}
	handlers.setDefault()
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return &AssetCache{
		fs:       fs,
		dir:      dir,
		router:   router,
		handlers: handlers,
		retry:    DefaultRetryConfig(),
		lg:       lg,
		inflight: NewVMap[string, *FetchStatus](),
	}, nil
}

// SetRetryPolicy replaces the download retry policy. Not synchronized;
// call it before the first download.
func (c *AssetCache) SetRetryPolicy(rc RetryConfig) {
	c.retry = rc
}

// Dir returns the cache directory path.
func (c *AssetCache) Dir() string {
	return c.dir
}

// cacheName derives the stable file name for a source URL: a short
// digest of the URL plus a best-effort extension. Renaming an asset on
// the endpoint without changing its URL reuses the cached file.
func cacheName(source, filetype string) string {
	sum := sha256.Sum256([]byte(source))
	name := hex.EncodeToString(sum[:])[:16]

	ext := normalizeType(filetype)
	switch ext {
	case "", "image", "video":
		// Generic tokens carry no extension; fall back to the URL path.
		if u, err := url.Parse(source); err == nil {
			ext = normalizeType(path.Ext(u.Path))
		}
	}
	if ext == "" {
		ext = "bin"
	}
	return name + "." + ext
}

// EnsureLocal makes a single asset playable and returns its local form.
// Web assets pass through untouched. Cached files are reused without
// touching the network. Concurrent calls for the same source URL share
// one download.
func (c *AssetCache) EnsureLocal(ctx context.Context, a Asset) (LocalAsset, error) {
	if err := c.check(); err != nil {
		return LocalAsset{}, err
	}

	switch a.Kind {
	case KindWeb:
		return LocalAsset{Asset: a}, nil
	case KindImage, KindVideo:
	default:
		return LocalAsset{}, fmt.Errorf("%w: %q (%s)", ErrUnsupportedType, a.Type, a.Name)
	}

	dest := filepath.Join(c.dir, cacheName(a.Source, a.Type))

	if ok, _ := afero.Exists(c.fs, dest); ok {
		return LocalAsset{Asset: a, Path: dest}, nil
	}

	_, err, _ := c.sf.Do(a.Source, func() (interface{}, error) {
		// Re-check after waiting: another flight may have landed the file.
		if ok, _ := afero.Exists(c.fs, dest); ok {
			return nil, nil
		}
		return nil, c.downloadWithRetry(ctx, a, dest)
	})
	if err != nil {
		return LocalAsset{}, err
	}
	return LocalAsset{Asset: a, Path: dest}, nil
}

// downloadWithRetry drives download attempts through the retry policy.
// Transient failures back off and try again; permanent ones fail the
// asset on the spot and leave it to the next sync cycle.
func (c *AssetCache) downloadWithRetry(ctx context.Context, a Asset, dest string) error {
	state := &RetryState{}
	for {
		err := c.download(ctx, a, dest)
		if err == nil {
			return nil
		}
		state.Attempts++
		state.LastError = err
		state.LastAttempt = time.Now()
		if !c.retry.ShouldRetry(state, err) {
			return err
		}
		c.lg.Warning("cache: %s attempt %d failed, retrying: %s",
			a.Name, state.Attempts, err.Error())
		if werr := c.retry.WaitForRetry(ctx, state, ClassifyError(err)); werr != nil {
			return werr
		}
	}
}

// download fetches one asset into dest. The body streams into a .part
// file that is renamed only after a complete, length-verified write, so
// a crash or mid-transfer failure never leaves a half file under the
// final name.
func (c *AssetCache) download(ctx context.Context, a Asset, dest string) error {
	body, size, err := c.router.Fetch(ctx, a.Source)
	if err != nil {
		c.handlers.FetchErrorHandler(a.Name, err)
		return err
	}
	defer body.Close()

	if err := checkDiskSpace(c.dir, size); err != nil {
		c.handlers.FetchErrorHandler(a.Name, err)
		return err
	}

	status := &FetchStatus{Name: a.Name, Url: a.Source, Total: size}
	c.inflight.Set(a.Source, status)
	defer c.inflight.Delete(a.Source)

	c.handlers.FetchStartHandler(a.Name, a.Source, size)

	tmp := dest + ".part"
	f, err := c.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		err = fmt.Errorf("create %s: %w", filepath.Base(tmp), err)
		c.handlers.FetchErrorHandler(a.Name, err)
		return err
	}

	pw := &fetchProgressWriter{handlers: c.handlers, name: a.Name, status: status}
	written, err := io.Copy(io.MultiWriter(f, pw), body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && size >= 0 && written != size {
		err = NewTransientFetchError(schemeOf(a.Source), "verify",
			fmt.Errorf("short body: got %d of %d bytes", written, size))
	}
	if err != nil {
		c.fs.Remove(tmp)
		c.handlers.FetchErrorHandler(a.Name, err)
		return err
	}

	if err := c.fs.Rename(tmp, dest); err != nil {
		c.fs.Remove(tmp)
		err = fmt.Errorf("finalize %s: %w", filepath.Base(dest), err)
		c.handlers.FetchErrorHandler(a.Name, err)
		return err
	}

	c.handlers.FetchCompleteHandler(a.Name, written)
	return nil
}

// EnsureAll makes every asset in the list playable, in order. Individual
// failures are logged and skipped; the batch fails only when nothing at
// all came out playable. The returned list preserves input order.
func (c *AssetCache) EnsureAll(ctx context.Context, assets []Asset) ([]LocalAsset, error) {
	local := make([]LocalAsset, 0, len(assets))
	var firstErr error

	for _, a := range assets {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		la, err := c.EnsureLocal(ctx, a)
		if err != nil {
			if errors.Is(err, ErrCacheClosed) {
				return nil, err
			}
			c.lg.Warning("cache: skipping %s: %s", a.Name, err.Error())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		local = append(local, la)
	}

	if len(local) == 0 && len(assets) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoAssetsDownloaded, firstErr)
	}
	return local, nil
}

// InFlight returns a snapshot of downloads currently in progress.
func (c *AssetCache) InFlight() []*FetchStatus {
	var out []*FetchStatus
	c.inflight.Range(func(_ string, s *FetchStatus) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Size returns the total bytes of cached media on disk.
func (c *AssetCache) Size() (int64, error) {
	var total int64
	err := afero.Walk(c.fs, c.dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return total, err
}

// Clear removes every cached file. Already-missing files are fine, so
// calling Clear twice in a row succeeds both times.
func (c *AssetCache) Clear() error {
	if err := c.check(); err != nil {
		return err
	}

	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache directory: %w", err)
	}

	var firstErr error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := c.fs.Remove(filepath.Join(c.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			c.lg.Warning("cache: could not remove %s: %s", e.Name(), err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close marks the cache unusable. Further EnsureLocal, EnsureAll and
// Clear calls return ErrCacheClosed. Downloads already in flight finish
// on their own.
func (c *AssetCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *AssetCache) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	return nil
}

// schemeOf returns the lowercase scheme of a URL, or "http" when the URL
// does not parse.
func schemeOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "http"
	}
	return strings.ToLower(u.Scheme)
}

// fetchProgressWriter mirrors copy progress into the handlers and the
// in-flight status record.
type fetchProgressWriter struct {
	handlers *CacheHandlers
	name     string
	status   *FetchStatus
}

func (pw *fetchProgressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.status.received.Add(int64(n))
	pw.handlers.FetchProgressHandler(pw.name, n)
	return n, nil
}
