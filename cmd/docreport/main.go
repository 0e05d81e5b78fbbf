package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/benjaminschreck/go-docreport/pkg/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cli.NewCLI(cli.Options{Version: version})
	if err := c.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
