package cmd

import (
	"bytes"
	"flag"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/urfave/cli"
)

// captureOutput runs f and returns everything it wrote to stdout and
// stderr.
func captureOutput(f func()) (stdout, stderr string) {
	capture := func(target **os.File) func() string {
		orig := *target
		r, w, _ := os.Pipe()
		*target = w
		return func() string {
			w.Close()
			*target = orig
			var buf bytes.Buffer
			io.Copy(&buf, r)
			r.Close()
			return buf.String()
		}
	}

	readOut := capture(&os.Stdout)
	readErr := capture(&os.Stderr)
	f()
	return readOut(), readErr()
}

// assertContains checks if output contains the expected substring.
func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// assertErrorFormat checks that error output follows the standard
// format: signloop: cmd[action]: msg
func assertErrorFormat(t *testing.T, output, cmd, action string) {
	t.Helper()
	pattern := "signloop: " + cmd + "[" + action + "]:"
	if !strings.Contains(output, pattern) {
		t.Errorf("expected error format %q, got:\n%s", pattern, output)
	}
}

// newTestApp builds the minimal app commands need for error reporting.
func newTestApp() *cli.App {
	app := cli.NewApp()
	app.Name = "signloop"
	app.HelpName = "signloop"
	return app
}

// newContext creates a CLI context for testing commands.
func newContext(app *cli.App, args []string, name string) *cli.Context {
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	_ = set.Parse(args)
	ctx := cli.NewContext(app, set, nil)
	ctx.Command = cli.Command{Name: name}
	return ctx
}
