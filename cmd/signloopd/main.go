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

func main() {
	err := cmd.ExecuteDaemon(cmd.BuildArgs{
		Version:   version,
		Commit:    commit,
		Date:      date,
		BuildType: buildType,
	})
	if err != nil {
		fmt.Println("signloopd:", err.Error())
		os.Exit(1)
	}
}
