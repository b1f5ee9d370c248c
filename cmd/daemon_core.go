package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/signloop/signloop/internal/config"
	"github.com/signloop/signloop/internal/identity"
	"github.com/signloop/signloop/internal/metrics"
	"github.com/signloop/signloop/internal/playlog"
	"github.com/signloop/signloop/internal/server"
	"github.com/signloop/signloop/pkg/logger"
	"github.com/signloop/signloop/pkg/looplib"
)

// shutdownTimeout bounds the graceful drain of the control server.
const shutdownTimeout = 5 * time.Second

// DaemonComponents holds all initialized daemon components.
// This allows for unified initialization and cleanup across the
// foreground run command and the signloopd service binary.
type DaemonComponents struct {
	Config   *config.Config
	DeviceId string
	Metrics  *metrics.Metrics
	Journal  *playlog.Journal
	Cache    *looplib.AssetCache
	Rotator  *looplib.Rotator
	Hub      *server.DisplayHub
	Coord    *looplib.Coordinator
	RPC      *server.RPCServer
	Web      *server.WebServer
	logger   logger.Logger
}

// Close releases all daemon component resources in reverse order of
// initialization. The web server drains first so no request arrives at
// a half-closed player; the rotation stops before the hub closes so
// renderers get the stop broadcast while still connected.
func (c *DaemonComponents) Close() {
	c.logger.Info("shutting down player")

	if c.Web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = c.Web.Shutdown(ctx)
		cancel()
	}
	if c.Rotator != nil {
		c.Rotator.Stop()
	}
	if c.Hub != nil {
		c.Hub.Close()
	}
	if c.RPC != nil {
		c.RPC.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Journal != nil {
		_ = c.Journal.Close()
	}

	c.logger.Info("player stopped")
}

// initDaemonComponents initializes all daemon components with the
// provided logger. It is the shared wiring used by the run command and
// the signloopd binary.
//
// On error, any partially initialized components are cleaned up before
// returning.
var initDaemonComponents = func(cfg *config.Config, lg logger.Logger) (*DaemonComponents, error) {
	fs := afero.NewOsFs()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		lg.Error("data dir creation failed: %v", err)
		return nil, err
	}

	device := identity.NewResolver(fs, cfg.DataDir, lg).Resolve(cfg.DeviceId)
	m := metrics.NewMetrics()

	// A broken play log must not keep media off the screen, so the
	// journal is the one component allowed to fail open.
	journal, err := playlog.Open(cfg.PlaylogPath, device)
	if err != nil {
		lg.Warning("play history disabled: %v", err)
		journal = nil
	}
	var rec *playlog.Recorder
	if journal != nil {
		rec = playlog.NewRecorder(journal, lg)
	}

	router := looplib.NewSchemeRouter(nil, cfg.RateLimit)
	cache, err := looplib.NewAssetCache(fs, cfg.CacheDir, router, &looplib.CacheHandlers{
		FetchCompleteHandler: func(_ string, size int64) {
			m.DownloadComplete(size)
		},
		FetchErrorHandler: func(_ string, _ error) {
			m.DownloadFailed()
		},
	}, lg)
	if err != nil {
		lg.Error("asset cache initialization failed: %v", err)
		if journal != nil {
			journal.Close()
		}
		return nil, err
	}

	var (
		hub     *server.DisplayHub
		surface looplib.DisplaySurface
	)
	if cfg.Display == config.DisplayWS {
		hub = server.NewDisplayHub(lg)
		surface = hub
	} else {
		surface = &looplib.LogDisplay{Logger: lg}
	}

	playback := &looplib.PlaybackHandlers{
		ShowHandler: func(tok looplib.ShowToken, a looplib.LocalAsset) {
			if rec != nil {
				rec.OnShow(tok, a)
			}
		},
		ResultHandler: func(tok looplib.ShowToken, a looplib.LocalAsset, result looplib.PlayResult, reason string) {
			if rec != nil {
				rec.OnResult(tok, a, result, reason)
			}
			m.PlayResolved(result)
		},
		ProgramHandler: func(assets []looplib.LocalAsset) {
			if hub != nil && len(assets) == 0 {
				hub.NotifyStop()
			}
		},
		StopHandler: func() {
			if hub != nil {
				hub.NotifyStop()
			}
		},
	}
	rot := looplib.NewRotator(surface, cfg.FloorSeconds, playback, lg)
	if hub != nil {
		hub.Bind(rot)
	}

	client, err := looplib.NewClient(cfg.Endpoint, device, nil, lg)
	if err != nil {
		lg.Error("endpoint client initialization failed: %v", err)
		rot.Stop()
		cache.Close()
		if journal != nil {
			journal.Close()
		}
		return nil, err
	}
	probe := looplib.NewProbe(cfg.ProbeURL, cfg.ProbeAttempts, nil, lg)

	cycles := &looplib.CycleHandlers{
		AppliedHandler: func(_ looplib.Playlist, assets []looplib.LocalAsset) {
			m.CycleApplied(len(assets))
			if size, err := cache.Size(); err == nil {
				m.CacheBytes.Set(float64(size))
			}
		},
		CycleErrorHandler: func(_ error) {
			m.CycleFailed()
		},
		PhaseHandler: func(phase looplib.SyncPhase, _ string) {
			if phase == looplib.PhaseOffline {
				m.CycleOffline()
			}
		},
	}
	coord := looplib.NewCoordinator(client, probe, cache, rot, fs,
		filepath.Join(cfg.DataDir, "manifest.json"),
		looplib.SyncConfig{
			PollInterval:   cfg.PollInterval,
			RetryDelay:     cfg.RetryDelay,
			MaxRetries:     cfg.MaxRetries,
			ReconnectDelay: cfg.ReconnectDelay,
		}, cycles, lg)

	rpc := server.NewRPCServer(&server.RPCConfig{
		Secret:    cfg.RPCSecret,
		Version:   currentBuildArgs.Version,
		Commit:    currentBuildArgs.Commit,
		BuildDate: currentBuildArgs.Date,
		DeviceId:  device,
		Endpoint:  cfg.Endpoint,
	}, coord, rot, cache, journal, lg)
	web := server.NewWebServer(lg, cfg.HTTPAddr, cfg.RPCSecret, cfg.CacheDir, rpc, hub)

	return &DaemonComponents{
		Config:   cfg,
		DeviceId: device,
		Metrics:  m,
		Journal:  journal,
		Cache:    cache,
		Rotator:  rot,
		Hub:      hub,
		Coord:    coord,
		RPC:      rpc,
		Web:      web,
		logger:   lg,
	}, nil
}
