package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

var red = color.New(color.FgHiRed, color.Bold).SprintFunc()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, defaultDeps(), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the exit status. Usage errors
// print the usage of the command that failed.
func run(ctx context.Context, d deps, args []string, stdout, stderr io.Writer) int {
	c := newCLI(d)
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if cerr := c.finish(); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil {
		return exitSuccess
	}

	code := exitCode(err)
	io.WriteString(stderr, red("Error:")+" "+err.Error()+"\n")
	if code == exitUsage && cmd != nil {
		io.WriteString(stderr, cmd.UsageString())
	}
	return code
}
