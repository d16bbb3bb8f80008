// Package main is the entry point for the sweepbench CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AndreyAkinshin/sweepbench/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
