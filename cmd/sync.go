package cmd

import (
	"fmt"

	"github.com/urfave/cli"
)

func syncNow(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client := controlClient(ctx, "sync")
	if client == nil {
		return nil
	}
	defer client.Close()
	res, err := client.Sync()
	if err != nil {
		printRuntimeErr(ctx, "sync", "trigger_sync", err)
		return nil
	}
	if res.Queued {
		fmt.Println("signloop: sync cycle queued")
	} else {
		fmt.Println("signloop: a sync cycle is already pending")
	}
	return nil
}
