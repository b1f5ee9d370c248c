package cmd

import (
	"fmt"

	"github.com/urfave/cli"
)

func skip(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client := controlClient(ctx, "skip")
	if client == nil {
		return nil
	}
	defer client.Close()
	if _, err := client.Skip(); err != nil {
		printRuntimeErr(ctx, "skip", "skip_asset", err)
		return nil
	}
	st, err := client.Status()
	if err != nil || st.NowShowing == nil {
		fmt.Println("signloop: skipped")
		return nil
	}
	fmt.Printf("signloop: skipped, now showing %s (%s)\n", st.NowShowing.Name, st.NowShowing.Kind)
	return nil
}
