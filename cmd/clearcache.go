package cmd

import (
	"fmt"

	"github.com/urfave/cli"
)

func clearCache(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client := controlClient(ctx, "clear-cache")
	if client == nil {
		return nil
	}
	defer client.Close()
	if _, err := client.ClearCache(); err != nil {
		printRuntimeErr(ctx, "clear-cache", "clear", err)
		return nil
	}
	fmt.Println("signloop: cache cleared, re-sync queued")
	return nil
}
