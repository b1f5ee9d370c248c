package main

import (
	"fmt"
	"os"

	"github.com/signloop/signloop/cmd"
)

var (
	version   string
	commit    string
	date      string
	buildType string = "unclassified"
)

var osExit = os.Exit

func main() {
	osExit(runMain(os.Args, func(args []string) error {
		return cmd.Execute(args, cmd.BuildArgs{
			Version:   version,
			Commit:    commit,
			Date:      date,
			BuildType: buildType,
		})
	}))
}

func runMain(args []string, exec func([]string) error) int {
	if err := exec(args); err != nil {
		fmt.Printf("signloop: %s\n", err.Error())
		return 1
	}
	return 0
}
