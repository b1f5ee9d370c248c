package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/signloop/signloop/common"
)

var (
	historyLimit int

	historyFlags = append([]cli.Flag{
		cli.IntFlag{
			Name:        "limit, n",
			Usage:       "number of entries to show (default: player decides)",
			Destination: &historyLimit,
		},
	}, ctlFlags...)
)

func history(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client := controlClient(ctx, "history")
	if client == nil {
		return nil
	}
	defer client.Close()
	h, err := client.History(historyLimit)
	if err != nil {
		printRuntimeErr(ctx, "history", "get_history", err)
		return nil
	}
	fmt.Print(formatHistory(h))
	return nil
}

func formatHistory(h *common.HistoryResponse) string {
	if len(h.Entries) == 0 {
		return "signloop: no play history recorded\n"
	}
	txt := "Recent showings, newest first:\n"
	for _, e := range h.Entries {
		started := time.UnixMilli(e.StartedAt).Format("2006-01-02 15:04:05")
		line := fmt.Sprintf("  %s  %-7s %3ds  %s (%s)", started, e.Result, e.Duration, e.Asset, e.Kind)
		if e.Reason != "" {
			line += fmt.Sprintf(": %s", e.Reason)
		}
		txt += line + "\n"
	}
	return txt
}
