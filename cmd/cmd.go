package cmd

import (
	"fmt"

	"github.com/urfave/cli"
)

// BuildArgs carries the ldflags-injected build identity down from main.
type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

// Execute runs the signloop command line app. Invoked without a
// command it reports the status of the running player.
func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "signloop",
		HelpName:              "signloop",
		Usage:                 "A digital signage player.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "signloop <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          usageErrorCallback,
		Commands: []cli.Command{
			{
				Name:               "run",
				Usage:              "run the player in the foreground",
				Action:             run,
				OnUsageError:       usageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        RunDescription,
				Flags:              runFlags,
			},
			{
				Name:                   "prefetch",
				Usage:                  "download the scheduled media without playing",
				Action:                 prefetch,
				OnUsageError:           usageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            PrefetchDescription,
				UseShortOptionHandling: true,
				Flags:                  runFlags,
			},
			{
				Name:                   "status",
				Aliases:                []string{"s"},
				Usage:                  "show what the player is doing",
				Action:                 status,
				OnUsageError:           usageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            StatusDescription,
				UseShortOptionHandling: true,
				Flags:                  ctlFlags,
			},
			{
				Name:               "sync",
				Usage:              "trigger a content sync cycle now",
				Action:             syncNow,
				OnUsageError:       usageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        SyncDescription,
				Flags:              ctlFlags,
			},
			{
				Name:               "skip",
				Usage:              "advance to the next asset in rotation",
				Action:             skip,
				OnUsageError:       usageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        SkipDescription,
				Flags:              ctlFlags,
			},
			{
				Name:                   "playlist",
				Aliases:                []string{"p"},
				Usage:                  "show the program in rotation",
				Action:                 playlist,
				OnUsageError:           usageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            PlaylistDescription,
				UseShortOptionHandling: true,
				Flags:                  ctlFlags,
			},
			{
				Name:                   "history",
				Usage:                  "show recent proof-of-play entries",
				Action:                 history,
				OnUsageError:           usageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            HistoryDescription,
				UseShortOptionHandling: true,
				Flags:                  historyFlags,
			},
			{
				Name:               "clear-cache",
				Usage:              "wipe cached media and re-sync",
				Action:             clearCache,
				OnUsageError:       usageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ClearCacheDescription,
				Flags:              ctlFlags,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints the installed version of signloop",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             getVersion,
			},
		},
		Action:                 status,
		Flags:                  ctlFlags,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	return app.Run(args)
}
