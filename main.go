package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fb2disqus/pkg/cli"
	"fb2disqus/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		logger := logging.NewLogger(os.Stderr, logging.LevelInfo)
		logger.Error("command failed", "error", err)
	}

	code := cli.ExitCode(err)
	stop()
	os.Exit(code)
}
