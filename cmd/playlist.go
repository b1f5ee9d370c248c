package cmd

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/signloop/signloop/common"
)

func playlist(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client := controlClient(ctx, "playlist")
	if client == nil {
		return nil
	}
	defer client.Close()
	pl, err := client.Playlist()
	if err != nil {
		printRuntimeErr(ctx, "playlist", "get_playlist", err)
		return nil
	}
	fmt.Print(formatPlaylist(pl))
	return nil
}

func formatPlaylist(pl *common.PlaylistResponse) string {
	if len(pl.Assets) == 0 {
		return "signloop: nothing in rotation\n"
	}
	var txt string
	switch {
	case pl.PlaylistName != "":
		txt = fmt.Sprintf("Playlist %s (%s):\n", pl.PlaylistName, pl.PlaylistId)
	case pl.PlaylistId != "":
		txt = fmt.Sprintf("Playlist %s:\n", pl.PlaylistId)
	default:
		txt = "Program in rotation:\n"
	}
	txt += "\n|Ord|\t         Name         | Kind  | Secs |"
	txt += "\n|---|-------------------------|-------|------|"
	for _, a := range pl.Assets {
		name := a.Name
		n := len(name)
		switch {
		case n > 23:
			name = name[:20] + "..."
		case n < 23:
			name = beaut(name, 23)
		}
		txt += fmt.Sprintf("\n| %d | %s | %s |%s|",
			a.Order, name, beaut(string(a.Kind), 5), beaut(fmt.Sprintf("%d", a.Duration), 6))
	}
	txt += "\n"
	return txt
}

func beaut(s string, n int) (b string) {
	n1 := len(s)
	x := n - n1
	if x < 0 {
		return s
	}
	x1 := x / 2
	w := string(
		replic(' ', x1),
	)
	b = w
	b += s
	b += w
	if x%2 != 0 {
		b += " "
	}
	return
}

func replic[aT any](v aT, n int) []aT {
	a := make([]aT, n)
	for i := range a {
		a[i] = v
	}
	return a
}
