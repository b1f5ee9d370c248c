package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/urfave/cli"
)

func help(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg == "" || arg == "help" {
		fmt.Printf("%s %s\n", ctx.App.Name, ctx.App.Version)
		cli.ShowAppHelpAndExit(ctx, 0)
		return nil
	}
	return cli.ShowCommandHelp(ctx, arg)
}

func getVersion(ctx *cli.Context) error {
	fmt.Printf(
		"%s %s (%s_%s)\nBuild: %s=%s\n",
		ctx.App.Name,
		ctx.App.Version,
		runtime.GOOS,
		runtime.GOARCH,
		currentBuildArgs.Date, currentBuildArgs.Commit,
	)
	return nil
}

// printRuntimeErr reports a command failure as "app: cmd[action]: msg".
// ctx may be nil when the failure happens before the CLI context exists.
func printRuntimeErr(ctx *cli.Context, cmd, action string, err error) {
	if err == nil {
		fmt.Printf("nil error [%s|%s]\n", cmd, action)
		return
	}
	name := os.Args[0]
	if ctx != nil {
		name = ctx.App.HelpName
	}
	fmt.Printf("%s: %s[%s]: %s\n", name, cmd, action, err.Error())
}

func printErrWithCmdHelp(ctx *cli.Context, err error) error {
	return printErrWithCallback(ctx, err, func() {
		if herr := cli.ShowCommandHelp(ctx, ctx.Command.Name); herr != nil {
			fmt.Println(herr.Error())
		}
	})
}

func printErrWithHelp(ctx *cli.Context, err error) error {
	return printErrWithCallback(ctx, err, func() {
		cli.ShowAppHelpAndExit(ctx, 1)
	})
}

// printErrWithCallback routes the framework's pseudo-errors for -h and
// -v to the help and version actions; anything else prints and then
// runs the callback for contextual help.
func printErrWithCallback(ctx *cli.Context, err error, callback func()) error {
	if err == nil {
		return nil
	}
	estr := strings.ToLower(err.Error())
	switch {
	case estr == "flag: help requested":
		return help(ctx)
	case strings.Contains(estr, "-version"), strings.Contains(estr, "-v"):
		return getVersion(ctx)
	}
	fmt.Printf("%s: %s\n\n", ctx.App.HelpName, err.Error())
	callback()
	return nil
}

func usageErrorCallback(ctx *cli.Context, err error, _ bool) error {
	if ctx.Command.Name != "" {
		return printErrWithCmdHelp(ctx, err)
	}
	return printErrWithHelp(ctx, err)
}
