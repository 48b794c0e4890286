package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

// Process exit codes.
const (
	exitPassed      = 0
	exitRulesFailed = 1
	exitError       = 2
)

// errRulesFailed is returned by the run command when the report did not pass.
// The report itself has already been written.
var errRulesFailed = errors.New("validation rules failed")

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	return exitCode(err, stderr)
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitPassed
	case errors.Is(err, errRulesFailed):
		return exitRulesFailed
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
}
