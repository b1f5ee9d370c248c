package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/signloop/signloop/internal/config"
	"github.com/signloop/signloop/internal/scheduler"
	"github.com/signloop/signloop/internal/watch"
	"github.com/signloop/signloop/pkg/logger"
)

// Wakeup names routed through the scheduler.
const (
	wakeRefresh = "refresh"
	wakePrune   = "playlog-prune"
)

// pruneCron runs retention pruning at 03:00 daily. Players that are
// never powered on at night get the startup prune instead.
const pruneCron = "0 3 * * *"

var (
	runEndpoint string
	runDeviceId string
	runDataDir  string
	runCacheDir string
	runAddr     string
	runDisplay  string
	runLogFile  string

	runFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "endpoint, e",
			Usage:       "content endpoint URL to sync from",
			Destination: &runEndpoint,
		},
		cli.StringFlag{
			Name:        "device-id",
			Usage:       "stable device identifier (default: auto-resolved)",
			Destination: &runDeviceId,
		},
		cli.StringFlag{
			Name:        "data-dir",
			Usage:       "directory for manifest, identity and play log",
			Destination: &runDataDir,
		},
		cli.StringFlag{
			Name:        "cache-dir",
			Usage:       "directory for downloaded media",
			Destination: &runCacheDir,
		},
		cli.StringFlag{
			Name:        "addr",
			Usage:       "control server listen address (host:port)",
			Destination: &runAddr,
		},
		cli.StringFlag{
			Name:        "display",
			Usage:       "display mode: ws (websocket renderers) or log",
			Destination: &runDisplay,
		},
		cli.StringFlag{
			Name:        "log-file",
			Usage:       "rotating log file path (default: stderr only)",
			Destination: &runLogFile,
		},
	}
)

func run(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg := loadRunConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	lg, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Close()

	comps, err := initDaemonComponents(cfg, lg)
	if err != nil {
		return err
	}
	defer comps.Close()

	lg.Info("signloop %s starting as %s, endpoint %s",
		currentBuildArgs.Version, comps.DeviceId, cfg.Endpoint)
	return runDaemon(comps)
}

// loadRunConfig reads the environment configuration and lays the run
// command's flag overrides on top.
func loadRunConfig() *config.Config {
	cfg := config.Load()
	if runEndpoint != "" {
		cfg.Endpoint = runEndpoint
	}
	if runDeviceId != "" {
		cfg.DeviceId = runDeviceId
	}
	if runDataDir != "" {
		cfg.DataDir = runDataDir
	}
	if runCacheDir != "" {
		cfg.CacheDir = runCacheDir
	}
	if runAddr != "" {
		cfg.HTTPAddr = runAddr
	}
	if runDisplay != "" {
		cfg.Display = runDisplay
	}
	if runLogFile != "" {
		cfg.LogFile = runLogFile
	}
	return cfg
}

// buildLogger picks the logging backend: plain stderr, paired with a
// rotating file when one is configured.
func buildLogger(cfg *config.Config) (logger.Logger, error) {
	console := logger.NewStandardLogger(log.Default())
	if cfg.LogFile == "" {
		return console, nil
	}
	file, err := logger.NewZapLogger(logger.ZapConfig{
		File:  cfg.LogFile,
		Level: cfg.LogLevel,
	})
	if err != nil {
		return nil, err
	}
	return logger.NewMultiLogger(console, file), nil
}

// runDaemon runs the initialized components until a signal arrives or
// a fatal component error surfaces. It is shared by the run command
// and the signloopd binary.
func runDaemon(comps *DaemonComponents) error {
	cfg := comps.Config
	lg := comps.logger

	ctx, cancel := setupShutdownHandler()
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- comps.Web.Start()
	}()
	go func() {
		err := comps.Coord.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	sched := scheduler.New(ctx, func(name string) {
		switch name {
		case wakeRefresh:
			lg.Info("scheduled refresh, queueing sync")
			comps.Coord.Sync()
		case wakePrune:
			pruneJournal(comps, lg)
		}
	})
	if cfg.RefreshCron != "" {
		if err := sched.AddCron(wakeRefresh, cfg.RefreshCron); err != nil {
			lg.Warning("refresh schedule rejected: %v", err)
		}
	}
	if comps.Journal != nil && cfg.PlaylogRetentionDays > 0 {
		sched.Add(scheduler.WakeEvent{
			Name:      wakePrune,
			TriggerAt: time.Now().Add(time.Minute),
		})
		if err := sched.AddCron(wakePrune, pruneCron); err != nil {
			lg.Warning("prune schedule rejected: %v", err)
		}
	}

	if cfg.WatchCache {
		w := watch.New(cfg.CacheDir, 0, func() {
			lg.Info("cache changed on disk, queueing sync")
			comps.Coord.Sync()
		}, lg)
		go func() {
			err := w.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				lg.Warning("cache watch stopped: %v", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func pruneJournal(comps *DaemonComponents, lg logger.Logger) {
	days := comps.Config.PlaylogRetentionDays
	n, err := comps.Journal.Prune(days)
	if err != nil {
		lg.Warning("play history prune failed: %v", err)
		return
	}
	if n > 0 {
		lg.Info("pruned %d play history entries older than %d days", n, days)
	}
}

// setupShutdownHandler sets up signal handling for graceful shutdown.
// It returns a context that is canceled when SIGTERM or SIGINT is
// received.
func setupShutdownHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		signal.Stop(sigChan) // Unregister handler to prevent leak
		cancel()
	}()

	return ctx, cancel
}
