package looplib

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/signloop/signloop/pkg/logger"
)

const (
	// DEF_POLL_INTERVAL is how often the coordinator re-syncs on its own.
	DEF_POLL_INTERVAL = 2 * time.Minute
	// DEF_RETRY_DELAY is the fixed wait between failed cycle retries.
	DEF_RETRY_DELAY = 15 * time.Second
	// DEF_SYNC_MAX_RETRIES is how many consecutive failed cycles are
	// tolerated before the coordinator gives up on automatic syncing.
	DEF_SYNC_MAX_RETRIES = 5
	// DEF_RECONNECT_DELAY is how long an offline device waits before
	// re-probing for connectivity.
	DEF_RECONNECT_DELAY = 30 * time.Second
)

// SyncPhase names the coordinator's externally visible condition.
type SyncPhase string

const (
	// PhaseStarting is the phase before the first cycle has finished.
	PhaseStarting SyncPhase = "starting"
	// PhasePlaying means the last cycle applied fresh endpoint content.
	PhasePlaying SyncPhase = "playing"
	// PhaseOffline means the device is unreachable from the endpoint's
	// point of view and is playing cached content (or nothing).
	PhaseOffline SyncPhase = "offline"
	// PhaseRetrying means the last cycle failed and a retry is scheduled.
	PhaseRetrying SyncPhase = "retrying"
	// PhaseFailed means retries were exhausted. Automatic syncing has
	// stopped; only a manual sync leaves this phase.
	PhaseFailed SyncPhase = "failed"
)

// SyncConfig tunes the coordinator's timing.
type SyncConfig struct {
	PollInterval   time.Duration
	RetryDelay     time.Duration
	MaxRetries     int
	ReconnectDelay time.Duration
}

// DefaultSyncConfig returns the stock timing used by the player daemon.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		PollInterval:   DEF_POLL_INTERVAL,
		RetryDelay:     DEF_RETRY_DELAY,
		MaxRetries:     DEF_SYNC_MAX_RETRIES,
		ReconnectDelay: DEF_RECONNECT_DELAY,
	}
}

func (c *SyncConfig) setDefault() {
	if c.PollInterval <= 0 {
		c.PollInterval = DEF_POLL_INTERVAL
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DEF_RETRY_DELAY
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DEF_SYNC_MAX_RETRIES
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DEF_RECONNECT_DELAY
	}
}

// CycleHandlers carries optional callbacks fired by the coordinator.
// Any or all fields may be nil; missing handlers are replaced with no-ops.
type CycleHandlers struct {
	// PhaseHandler fires when the coordinator's phase changes.
	PhaseHandler func(phase SyncPhase, detail string)
	// AppliedHandler fires after a cycle hands a program to the rotation.
	AppliedHandler func(playlist Playlist, assets []LocalAsset)
	// CycleErrorHandler fires for every failed cycle.
	CycleErrorHandler func(err error)
}

func (h *CycleHandlers) setDefault() {
	if h.PhaseHandler == nil {
		h.PhaseHandler = func(_ SyncPhase, _ string) {}
	}
	if h.AppliedHandler == nil {
		h.AppliedHandler = func(_ Playlist, _ []LocalAsset) {}
	}
	if h.CycleErrorHandler == nil {
		h.CycleErrorHandler = func(_ error) {}
	}
}

// SyncSnapshot is a point-in-time view of the coordinator for status
// reporting.
type SyncSnapshot struct {
	Phase        SyncPhase
	Failures     int
	LastError    string
	LastSync     time.Time
	PlaylistId   string
	PlaylistName string
	AssetCount   int
}

// syncReason records why a cycle was kicked off.
type syncReason string

const (
	reasonStartup   syncReason = "startup"
	reasonInterval  syncReason = "interval"
	reasonManual    syncReason = "manual"
	reasonRetry     syncReason = "retry"
	reasonReconnect syncReason = "reconnect"
	reasonBoundary  syncReason = "boundary"
)

// cycle outcomes, distinct from cycle errors.
type cycleOutcome int

const (
	outcomeApplied cycleOutcome = iota
	outcomeOffline
	outcomeOfflineEmpty
)

// Coordinator drives the whole player: it periodically fetches the
// device's payload, resolves the active playlist, fills the cache and
// hands the playable program to the rotation. All cycles run on one
// goroutine; kicks from timers, RPCs and watchers coalesce into at most
// one pending cycle.
//
// An unreachable endpoint is not a failure: the device keeps playing
// whatever it has cached and re-syncs when connectivity returns. Actual
// failures (bad payloads, empty playlists, failed downloads) are retried
// with a fixed delay a bounded number of times, after which the
// coordinator parks itself in PhaseFailed until someone calls Sync.
type Coordinator struct {
	client       *Client
	probe        *Probe
	cache        *AssetCache
	rot          *Rotator
	fs           afero.Fs
	manifestPath string
	cfg          SyncConfig
	handlers     *CycleHandlers
	lg           logger.Logger

	kick chan syncReason

	// cycleMu serializes cycles against ClearCache.
	cycleMu sync.Mutex

	mu          sync.Mutex
	phase       SyncPhase
	detail      string
	failures    int
	lastErr     error
	lastSync    time.Time
	lastApplied []LocalAsset
	playlistId  string
	playlist    string
	playlists   []Playlist

	retryTimer     *time.Timer
	reconnectTimer *time.Timer
	boundaryTimer  *time.Timer
}

// NewCoordinator wires a coordinator from its parts. fs backs the
// manifest file and should be the same filesystem the cache writes to.
func NewCoordinator(client *Client, probe *Probe, cache *AssetCache, rot *Rotator, fs afero.Fs, manifestPath string, cfg SyncConfig, handlers *CycleHandlers, lg logger.Logger) *Coordinator {
	cfg.setDefault()
	if handlers == nil {
		handlers = &CycleHandlers{}
	}
	handlers.setDefault()
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Coordinator{
		client:       client,
		probe:        probe,
		cache:        cache,
		rot:          rot,
		fs:           fs,
		manifestPath: manifestPath,
		cfg:          cfg,
		handlers:     handlers,
		lg:           lg,
		kick:         make(chan syncReason, 1),
		phase:        PhaseStarting,
	}
}

// Sync requests an immediate cycle and returns without waiting for it
// to run. The return value reports whether the request was queued; false
// means a cycle was already pending and will cover this request too. A
// manual sync always runs, even from PhaseFailed, and resets the failure
// count.
func (c *Coordinator) Sync() bool {
	return c.kickWith(reasonManual)
}

// kickWith queues one cycle. A kick that finds one already pending is
// dropped; the pending cycle will see the same world state.
func (c *Coordinator) kickWith(r syncReason) bool {
	select {
	case c.kick <- r:
		return true
	default:
		return false
	}
}

// Run is the coordinator's main loop. It seeds the last-applied list
// from the manifest, runs an immediate first cycle and then serves the
// poll ticker and kick channel until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.seedFromManifest()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	defer c.stopTimers()

	c.cycle(ctx, reasonStartup)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.cycle(ctx, reasonInterval)
		case r := <-c.kick:
			c.cycle(ctx, r)
		}
	}
}

// seedFromManifest loads the persisted manifest so the first cycle can
// diff against what the device was playing before the restart. It does
// not touch the rotation; the first cycle decides what actually plays.
func (c *Coordinator) seedFromManifest() {
	m, err := LoadManifest(c.fs, c.manifestPath, c.lg)
	if err != nil {
		return
	}
	if len(m.Assets) == 0 {
		return
	}
	c.mu.Lock()
	c.lastApplied = m.LocalAssets()
	c.mu.Unlock()
	c.lg.Info("sync: seeded %d assets from manifest", len(m.Assets))
}

// cycle runs one sync attempt and routes its outcome into phase,
// failure counting and timer scheduling.
func (c *Coordinator) cycle(ctx context.Context, reason syncReason) {
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if reason == reasonManual {
		c.failures = 0
	}
	if c.phase == PhaseFailed && reason != reasonManual {
		// Parked. Automatic kicks stay ignored until a manual sync.
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.cycleMu.Lock()
	outcome, err := c.runCycle(ctx)
	c.cycleMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	if err == nil {
		switch outcome {
		case outcomeApplied:
			c.mu.Lock()
			c.failures = 0
			c.lastErr = nil
			c.lastSync = time.Now()
			c.mu.Unlock()
			c.setPhase(PhasePlaying, "")
		case outcomeOffline:
			c.setPhase(PhaseOffline, "playing cached content")
			c.scheduleReconnect()
		case outcomeOfflineEmpty:
			// Handled below through ErrOfflineNoCache.
		}
		return
	}

	c.handlers.CycleErrorHandler(err)

	if outcome == outcomeOfflineEmpty {
		// Nothing cached and nothing reachable. Not counted as a
		// failure; just re-probe until the network comes back.
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.setPhase(PhaseOffline, ErrOfflineNoCache.Error())
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	c.failures++
	c.lastErr = err
	failures := c.failures
	maxRetries := c.cfg.MaxRetries
	c.mu.Unlock()

	if failures > maxRetries {
		c.lg.Error("sync: giving up after %d consecutive failures: %s", failures-1, err.Error())
		c.setPhase(PhaseFailed, fmt.Sprintf("gave up after %d attempts: %s", failures-1, err.Error()))
		return
	}

	c.lg.Warning("sync: cycle failed (attempt %d/%d): %s", failures, maxRetries, err.Error())
	c.setPhase(PhaseRetrying, err.Error())
	c.scheduleRetry()
}

// runCycle performs the eight steps of one sync pass. It returns an
// outcome for the paths that end without fresh endpoint content.
func (c *Coordinator) runCycle(ctx context.Context) (cycleOutcome, error) {
	// 1. Connectivity.
	if !c.probe.Online(ctx) {
		return c.runOffline()
	}

	// 2. Fetch the payload.
	payload, err := c.client.FetchPayload(ctx)
	if err != nil {
		return outcomeApplied, err
	}

	// 3. A restart order wipes local state before anything else.
	if payload.Restarting {
		c.lg.Info("sync: endpoint ordered a restart, clearing local state")
		if err := c.clearLocalState(); err != nil {
			return outcomeApplied, err
		}
	}

	// 4. Resolve the active playlist for this moment.
	now := time.Now()
	active, err := ResolveActive(payload.Playlists, now)
	if err != nil {
		return outcomeApplied, err
	}

	// 5. Filter to playable assets in playing order.
	playable := FilterPlayable(active.Assets, c.lg)
	if len(playable) == 0 {
		return outcomeApplied, fmt.Errorf("%w: playlist %s has no playable assets", ErrNoValidAssets, active.Name)
	}

	// 6. Diff against the previous program so unchanged lists are cheap.
	c.mu.Lock()
	previous := c.lastApplied
	c.mu.Unlock()
	if sameProgram(previous, playable) {
		c.lg.Info("sync: playlist %s unchanged (%d assets)", active.Name, len(playable))
	}

	// 7. Make every asset playable locally. Already-cached files are
	// reused without touching the network.
	local, err := c.cache.EnsureAll(ctx, playable)
	if err != nil {
		return outcomeApplied, err
	}

	// 8. Hand over to the rotation and persist the manifest.
	c.rot.SetProgram(local)

	manifest := NewManifest(c.client.DeviceId(), local)
	if err := SaveManifest(c.fs, c.manifestPath, manifest); err != nil {
		// The program is already on screen; a manifest write failure
		// only hurts the next offline boot.
		c.lg.Error("sync: could not persist manifest: %s", err.Error())
	}

	c.mu.Lock()
	c.lastApplied = local
	c.playlistId = active.Id
	c.playlist = active.Name
	c.playlists = payload.Playlists
	c.mu.Unlock()

	c.handlers.AppliedHandler(*active, local)
	c.scheduleBoundary(payload.Playlists, now)

	return outcomeApplied, nil
}

// runOffline keeps the device playing without the endpoint. Cached
// content (in memory from the last apply, or loaded off the manifest)
// goes on screen; with nothing cached the cycle reports ErrOfflineNoCache.
func (c *Coordinator) runOffline() (cycleOutcome, error) {
	c.mu.Lock()
	last := c.lastApplied
	c.mu.Unlock()

	if len(last) > 0 {
		c.rot.SetProgram(last)
		return outcomeOffline, nil
	}

	m, err := LoadManifest(c.fs, c.manifestPath, c.lg)
	if err == nil && len(m.Assets) > 0 {
		local := m.LocalAssets()
		c.rot.SetProgram(local)
		c.mu.Lock()
		c.lastApplied = local
		c.mu.Unlock()
		return outcomeOffline, nil
	}

	return outcomeOfflineEmpty, ErrOfflineNoCache
}

// clearLocalState wipes the cache, the manifest and the in-memory
// program record. The rotation keeps its current program until the
// rest of the cycle hands over a fresh one.
func (c *Coordinator) clearLocalState() error {
	if err := c.cache.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	if err := c.fs.Remove(c.manifestPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove manifest: %w", err)
	}
	c.mu.Lock()
	c.lastApplied = nil
	c.playlistId = ""
	c.playlist = ""
	c.mu.Unlock()
	return nil
}

// ClearCache wipes cached media and the manifest, then kicks a sync so
// the program is rebuilt from the endpoint. Serialized against running
// cycles so a cycle never sees a half-cleared cache.
func (c *Coordinator) ClearCache() error {
	c.cycleMu.Lock()
	err := c.clearLocalState()
	c.cycleMu.Unlock()
	if err != nil {
		return err
	}
	c.Sync()
	return nil
}

// Snapshot returns a point-in-time view of the coordinator.
func (c *Coordinator) Snapshot() SyncSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := SyncSnapshot{
		Phase:        c.phase,
		Failures:     c.failures,
		LastSync:     c.lastSync,
		PlaylistId:   c.playlistId,
		PlaylistName: c.playlist,
		AssetCount:   len(c.lastApplied),
	}
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	return snap
}

func (c *Coordinator) setPhase(p SyncPhase, detail string) {
	c.mu.Lock()
	changed := c.phase != p || c.detail != detail
	c.phase = p
	c.detail = detail
	c.mu.Unlock()
	if changed {
		c.lg.Info("sync: phase %s %s", p, detail)
		c.handlers.PhaseHandler(p, detail)
	}
}

func (c *Coordinator) scheduleRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(c.cfg.RetryDelay, func() {
		c.kickWith(reasonRetry)
	})
}

func (c *Coordinator) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.kickWith(reasonReconnect)
	})
}

// scheduleBoundary arms a wakeup at the next moment the resolved
// playlist could change (a window opening or closing, or midnight), so
// schedule edges land on time instead of waiting out the poll interval.
func (c *Coordinator) scheduleBoundary(playlists []Playlist, now time.Time) {
	next := NextTransition(playlists, now)
	if next.IsZero() {
		return
	}
	wait := time.Until(next)
	if wait <= 0 {
		wait = time.Second
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.boundaryTimer != nil {
		c.boundaryTimer.Stop()
	}
	c.boundaryTimer = time.AfterFunc(wait, func() {
		c.kickWith(reasonBoundary)
	})
}

func (c *Coordinator) stopTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range []*time.Timer{c.retryTimer, c.reconnectTimer, c.boundaryTimer} {
		if t != nil {
			t.Stop()
		}
	}
}

// sameProgram compares the remote form of a candidate program with the
// last applied one.
func sameProgram(applied []LocalAsset, candidate []Asset) bool {
	if len(applied) != len(candidate) {
		return false
	}
	for i := range candidate {
		if !assetEqual(applied[i].Asset, candidate[i]) {
			return false
		}
	}
	return true
}
