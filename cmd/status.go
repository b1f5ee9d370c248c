package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/signloop/signloop/common"
	"github.com/signloop/signloop/pkg/looplib"
)

func status(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client := controlClient(ctx, "status")
	if client == nil {
		return nil
	}
	defer client.Close()
	st, err := client.Status()
	if err != nil {
		printRuntimeErr(ctx, "status", "get_status", err)
		return nil
	}
	fmt.Print(formatStatus(st, time.Now()))
	return nil
}

// formatStatus renders the status response as the operator-facing text
// block. now is passed in so tests can pin the relative timestamps.
func formatStatus(st *common.StatusResponse, now time.Time) string {
	txt := fmt.Sprintf("signloop %s @ %s\n", st.Version, st.DeviceId)
	txt += fmt.Sprintf("Endpoint\t: %s\n", st.Endpoint)

	phase := string(st.Phase)
	if st.LastSync > 0 {
		phase += fmt.Sprintf(" (last sync %s ago)", formatAgo(now.Sub(time.UnixMilli(st.LastSync))))
	}
	if st.Failures > 0 {
		phase += fmt.Sprintf(", %d consecutive failures", st.Failures)
	}
	txt += fmt.Sprintf("Phase\t\t: %s\n", phase)
	if st.LastError != "" {
		txt += fmt.Sprintf("Last error\t: %s\n", st.LastError)
	}

	switch {
	case st.PlaylistName != "" && st.PlaylistId != "":
		txt += fmt.Sprintf("Playlist\t: %s (%s), %d assets\n", st.PlaylistName, st.PlaylistId, st.AssetCount)
	case st.PlaylistId != "":
		txt += fmt.Sprintf("Playlist\t: %s, %d assets\n", st.PlaylistId, st.AssetCount)
	default:
		txt += fmt.Sprintf("Playlist\t: none, %d assets\n", st.AssetCount)
	}

	if st.NowShowing != nil {
		showing := fmt.Sprintf("%s (%s)", st.NowShowing.Name, st.NowShowing.Kind)
		if st.ShownAt > 0 {
			showing += fmt.Sprintf(", on screen for %s", formatAgo(now.Sub(time.UnixMilli(st.ShownAt))))
		}
		txt += fmt.Sprintf("Showing\t\t: %s\n", showing)
	} else {
		txt += fmt.Sprintf("Showing\t\t: nothing (%s)\n", st.State)
	}

	txt += fmt.Sprintf("Cache\t\t: %s\n", looplib.ByteSize(st.CacheBytes))
	txt += fmt.Sprintf("Uptime\t\t: %s\n", formatAgo(time.Duration(st.UptimeSeconds)*time.Second))

	if len(st.Downloads) > 0 {
		txt += "Downloads:\n"
		for _, d := range st.Downloads {
			txt += fmt.Sprintf("  %s\t%s / %s\n",
				d.Name, looplib.ByteSize(d.Received), looplib.ByteSize(d.Total))
		}
	}
	return txt
}

// formatAgo renders a duration in the coarsest two units that matter,
// so status lines read "1h3m" instead of "1h3m27.00041s".
func formatAgo(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour:
		days := d / (24 * time.Hour)
		hours := (d % (24 * time.Hour)) / time.Hour
		if hours == 0 {
			return fmt.Sprintf("%dd", days)
		}
		return fmt.Sprintf("%dd%dh", days, hours)
	case d >= time.Hour:
		hours := d / time.Hour
		mins := (d % time.Hour) / time.Minute
		if mins == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, mins)
	case d >= time.Minute:
		mins := d / time.Minute
		secs := (d % time.Minute) / time.Second
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm%ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}
