// Package main provides the entry point for the topicmux CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/miladsoleymani/topicmux/cmd/topicmux/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
