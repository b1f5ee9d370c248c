package cmd

import (
	"github.com/urfave/cli"

	"github.com/signloop/signloop/common"
	"github.com/signloop/signloop/pkg/playerctl"
)

// Flags shared by every command that talks to a running player.
var (
	ctlAddr   string
	ctlSecret string

	ctlFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "addr, a",
			Usage:       "control address of the running player (host:port)",
			EnvVar:      common.AddrEnv,
			Destination: &ctlAddr,
		},
		cli.StringFlag{
			Name:        "secret",
			Usage:       "bearer token for the control RPC",
			EnvVar:      common.SecretEnv,
			Destination: &ctlSecret,
		},
	}
)

// controlClient dials the running player for one control command. On
// failure it prints the error and returns nil; the caller just returns.
func controlClient(ctx *cli.Context, cmd string) *playerctl.Client {
	client, err := playerctl.NewClient(ctlAddr, ctlSecret)
	if err != nil {
		printRuntimeErr(ctx, cmd, "new_client", err)
		return nil
	}
	return client
}
