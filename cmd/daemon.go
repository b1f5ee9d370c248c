package cmd

import (
	"github.com/signloop/signloop/internal/config"
)

// ExecuteDaemon runs the player daemon without the CLI front. It is
// the entry point of the signloopd service binary; configuration comes
// entirely from the environment.
func ExecuteDaemon(bArgs BuildArgs) error {
	currentBuildArgs = bArgs

	cfg := config.Load()
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

	lg.Info("signloopd %s starting as %s, endpoint %s",
		bArgs.Version, comps.DeviceId, cfg.Endpoint)
	return runDaemon(comps)
}
