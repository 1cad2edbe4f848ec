package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/sightings/internal/config"
	"github.com/matheus3301/sightings/internal/field"
	"github.com/matheus3301/sightings/internal/logging"
	"github.com/matheus3301/sightings/internal/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	profileFlag string
	jsonFlag    bool
	waitFlag    time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "sightctl",
	Short:         "Field client for the sightings log",
	Long:          "Record wildlife sightings offline, sync them when the server is reachable, and chat about them.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&waitFlag, "wait", 3*time.Second, "how long to wait for the server before working offline")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadClientConfig() (*config.Client, error) {
	cfg, err := config.LoadClient(profile.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func resolveProfile() (string, error) {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// openField opens the profile runtime and waits for the local store. When
// online it also waits, up to --wait, for the channel to come up.
func openField(ctx context.Context) (*field.Runtime, error) {
	name, err := resolveProfile()
	if err != nil {
		return nil, err
	}
	cfg, err := loadClientConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(profile.LogPath(name), "sightctl", false)
	if err != nil {
		logger = zap.NewNop()
	}

	rt, err := field.Open(ctx, field.Options{Profile: name, Config: cfg, Logger: logger})
	if err != nil {
		return nil, err
	}
	if err := rt.WaitReady(ctx); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open local store: %w", err)
	}

	wctx, cancel := context.WithTimeout(ctx, waitFlag)
	defer cancel()
	rt.WaitOnline(wctx)
	return rt, nil
}

func requireSender(cfg *config.Client) (string, error) {
	if cfg.Sender == "" {
		return "", fmt.Errorf("no sender nickname configured; run: sightctl init --sender <nickname>")
	}
	return cfg.Sender, nil
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
