// Command formrules validates form definitions and submissions, prints the
// field dependency graph, and fills forms interactively.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
)

const (
	exitOK      = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env env, args []string) (int, error)
}

// env carries the process streams so commands can be exercised in tests.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func commands() []command {
	return []command{
		{name: "validate", summary: "check form definitions for authoring errors", run: runValidate},
		{name: "check", summary: "validate a submission against a definition", run: runCheck},
		{name: "graph", summary: "print field dependencies, evaluation order and cycles", run: runGraph},
		{name: "fill", summary: "answer a form interactively", run: runFill},
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	e := env{stdin: stdin, stdout: stdout, stderr: stderr}
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return exitError
		}
		return exitOK
	}

	for _, cmd := range commands() {
		if cmd.name != args[0] {
			continue
		}
		code, err := cmd.run(ctx, e, args[1:])
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		if err != nil {
			if !errors.Is(err, errUsage) {
				fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
			}
			return exitError
		}
		return code
	}

	fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
	usage(stderr)
	return exitError
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [flags] [args]\n\nCommands:\n", filepath.Base(os.Args[0]))
	for _, cmd := range commands() {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(w, "\nRun '%s <command> -h' for command flags.\n", filepath.Base(os.Args[0]))
}
