package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/romanasp/campari/cmd"
	"github.com/romanasp/campari/internal/analysis"
	"github.com/romanasp/campari/internal/buildinfo"
	"github.com/romanasp/campari/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info := buildinfo.New(version, buildDate)
	settings := &conf.Settings{Version: info.GetVersion()}
	rootCmd := cmd.RootCommand(settings)
	rootCmd.Version = info.String()
	err := rootCmd.ExecuteContext(ctx)
	analysis.Shutdown(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
