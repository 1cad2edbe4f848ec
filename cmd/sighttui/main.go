package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/sightings/internal/config"
	"github.com/matheus3301/sightings/internal/field"
	"github.com/matheus3301/sightings/internal/logging"
	"github.com/matheus3301/sightings/internal/profile"
	"github.com/matheus3301/sightings/internal/tui"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadClient(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Sender == "" {
		fmt.Fprintln(os.Stderr, "warning: no sender nickname configured, adding and chatting are disabled (sightctl init --sender <nickname>)")
	}

	// The terminal belongs to the UI, so logs only go to the file.
	logger, err := logging.New(profile.LogPath(name), "sighttui", false)
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	rt, err := field.Open(ctx, field.Options{Profile: name, Config: cfg, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rt.Close() }()

	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = rt.WaitReady(wctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "open local store: %v\n", err)
		_ = rt.Close()
		os.Exit(1)
	}

	app := tui.NewApp(rt)
	go func() {
		<-ctx.Done()
		app.Stop()
	}()
	if err := app.Run(); err != nil {
		logger.Error("tui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		_ = rt.Close()
		os.Exit(1)
	}
}
