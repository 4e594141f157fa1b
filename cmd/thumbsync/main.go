// Package main is the entry point for the thumbsync CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"thumbsync/cmd/thumbsync/commands"
	"thumbsync/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer logging.Sync()

	cli := commands.New()
	if err := cli.Execute(ctx); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}
	return 0
}
