package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/sightings/internal/daemon"
	"github.com/matheus3301/sightings/internal/profile"
	"github.com/matheus3301/sightings/internal/share"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var socketFlag string

func init() {
	serverStatusCmd.Flags().StringVar(&socketFlag, "socket", "", "sightd control socket (default under the server dir)")
	rootCmd.AddCommand(syncCmd, statusCmd, serverStatusCmd, shareCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openField(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		out, err := rt.Reconciler.Run(ctx)
		if err != nil {
			return err
		}
		if jsonFlag {
			outputJSON(out)
			return nil
		}
		fmt.Printf("Mode:              %s\n", out.Mode)
		fmt.Printf("Messages flushed:  %d\n", out.FlushedMessages)
		fmt.Printf("Sightings flushed: %d\n", out.FlushedSightings)
		fmt.Printf("Sightings in view: %d\n", len(out.View))
		if out.Fallback {
			fmt.Println("Server unreachable; showing the local view.")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity and local queue state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openField(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		pending, err := rt.Store.PendingSightings(ctx)
		if err != nil {
			return err
		}
		msgs, err := rt.Store.PendingMessages(ctx)
		if err != nil {
			return err
		}
		cached, err := rt.Store.CachedSightings(ctx)
		if err != nil {
			return err
		}
		var schema uint
		if m := rt.Store.Migration(); m != nil {
			schema = m.Version
		}

		st := map[string]any{
			"profile":           rt.Profile,
			"server":            rt.Config.ServerURL,
			"mode":              rt.Tracker.Current(),
			"pending_sightings": len(pending),
			"pending_messages":  len(msgs),
			"cached_sightings":  len(cached),
			"schema_version":    schema,
			"store_path":        profile.StorePath(rt.Profile),
			"response_cache":    rt.Cache.Name(),
		}
		if jsonFlag {
			outputJSON(st)
			return nil
		}
		fmt.Printf("Profile:           %s\n", rt.Profile)
		fmt.Printf("Server:            %s\n", rt.Config.ServerURL)
		fmt.Printf("Mode:              %s\n", rt.Tracker.Current())
		fmt.Printf("Pending sightings: %d\n", len(pending))
		fmt.Printf("Pending messages:  %d\n", len(msgs))
		fmt.Printf("Cached sightings:  %d\n", len(cached))
		fmt.Printf("Schema version:    %d\n", schema)
		return nil
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "server-status",
	Short: "Check a local sightd through its control socket",
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath := socketFlag
		if socketPath == "" {
			socketPath = profile.ServerSocketPath()
		}
		conn, err := grpc.NewClient(
			"unix://"+socketPath,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		defer cancel()
		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: daemon.ServiceName})
		if err != nil {
			return fmt.Errorf("cannot reach sightd at %s: %w", socketPath, err)
		}
		if jsonFlag {
			outputJSON(map[string]string{"socket": socketPath, "status": resp.Status.String()})
			return nil
		}
		fmt.Printf("sightd: %s (%s)\n", resp.Status, socketPath)
		return nil
	},
}

var shareCmd = &cobra.Command{
	Use:   "share <sight-id>",
	Short: "Print a QR code linking to a sighting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openField(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		link, err := share.URL(rt.Config.ServerURL, args[0])
		if err != nil {
			return err
		}
		// Fetching the detail keeps a copy in the response cache for offline use.
		rctx, cancel := withTimeout(ctx, rt.Config.RequestTimeout.Duration)
		defer cancel()
		s, detailErr := rt.API.GetSighting(rctx, args[0])

		if jsonFlag {
			outputJSON(map[string]any{"url": link, "sighting": s})
			return nil
		}
		qr, err := share.Render(link, "  ")
		if err != nil {
			return err
		}
		if detailErr == nil {
			fmt.Printf("\n  %s by %s\n", s.Description, s.Nickname)
		}
		fmt.Printf("\n%s\n  %s\n", qr, link)
		return nil
	},
}
