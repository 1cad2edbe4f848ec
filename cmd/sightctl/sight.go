package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/status"
	"github.com/spf13/cobra"
)

var (
	addDescription string
	addPhoto       string
	addLat         float64
	addLon         float64
	addSeen        string

	listOnly     string
	listSeen     string
	listDistance string
	listFrom     string
)

func init() {
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "what you saw")
	addCmd.Flags().StringVar(&addPhoto, "photo", "", "photo URL or data URI")
	addCmd.Flags().Float64Var(&addLat, "lat", 0, "latitude")
	addCmd.Flags().Float64Var(&addLon, "lon", 0, "longitude")
	addCmd.Flags().StringVar(&addSeen, "seen", "", "when it was seen (RFC3339, default now)")

	listCmd.Flags().StringVar(&listOnly, "only", "all", "filter: all, identified or unidentified")
	listCmd.Flags().StringVar(&listSeen, "sort-seen", "", "sort by seen time: asc or desc")
	listCmd.Flags().StringVar(&listDistance, "sort-distance", "", "sort by distance: asc or desc")
	listCmd.Flags().StringVar(&listFrom, "from", "", "reference point for distance sort as lat,lon")

	rootCmd.AddCommand(addCmd, listCmd)
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a sighting; it is uploaded now or on the next online sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openField(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		sender, err := requireSender(rt.Config)
		if err != nil {
			return err
		}
		s := sighting.Sighting{
			Nickname:    sender,
			Description: addDescription,
			Photo:       addPhoto,
			Geolocation: sighting.Geolocation{Latitude: addLat, Longitude: addLon},
		}
		if addSeen != "" {
			seen, err := time.Parse(time.RFC3339, addSeen)
			if err != nil {
				return fmt.Errorf("--seen: %w", err)
			}
			s.SeenAt = seen
		}

		queued, err := rt.Composer.SubmitSighting(ctx, s)
		if err != nil {
			return err
		}
		out, err := rt.Reconciler.Run(ctx)
		if err != nil {
			return err
		}

		uploaded := out.Mode == status.Online && out.FlushedSightings > 0
		if jsonFlag {
			outputJSON(map[string]any{"sighting": queued, "uploaded": uploaded})
			return nil
		}
		fmt.Printf("Sighting %s recorded.\n", queued.ID)
		if uploaded {
			fmt.Println("Uploaded to the server.")
		} else {
			fmt.Println("Saved locally; it will be uploaded when you are back online.")
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sightings (server list when online, local view when offline)",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := viewOptions()
		if err != nil {
			return err
		}
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
		view := sighting.Arrange(out.View, opts)

		if jsonFlag {
			outputJSON(view)
			return nil
		}
		fmt.Printf("%s, %d sightings\n\n", out.Mode, len(view))
		printSightings(view)
		return nil
	},
}

func viewOptions() (sighting.ViewOptions, error) {
	opts := sighting.DefaultViewOptions()
	switch listOnly {
	case "all", "":
	case "identified":
		opts.ShowUnidentified = false
	case "unidentified":
		opts.ShowIdentified = false
	default:
		return opts, fmt.Errorf("--only must be all, identified or unidentified")
	}

	var err error
	if opts.BySeen, err = parseOrder("--sort-seen", listSeen); err != nil {
		return opts, err
	}
	if opts.ByDistance, err = parseOrder("--sort-distance", listDistance); err != nil {
		return opts, err
	}
	if listFrom != "" {
		if opts.Origin, err = parsePoint(listFrom); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func parseOrder(flag, v string) (sighting.Order, error) {
	switch sighting.Order(v) {
	case sighting.Unsorted, sighting.Ascending, sighting.Descending:
		return sighting.Order(v), nil
	}
	return sighting.Unsorted, fmt.Errorf("%s must be asc or desc", flag)
}

func parsePoint(v string) (sighting.Geolocation, error) {
	lat, lon, ok := strings.Cut(v, ",")
	if !ok {
		return sighting.Geolocation{}, errors.New("--from must be lat,lon")
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return sighting.Geolocation{}, fmt.Errorf("--from latitude: %w", err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return sighting.Geolocation{}, fmt.Errorf("--from longitude: %w", err)
	}
	return sighting.Geolocation{Latitude: la, Longitude: lo}, nil
}

func printSightings(list []sighting.Sighting) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEEN\tBY\tIDENTIFICATION\tDESCRIPTION")
	for _, s := range list {
		ident := s.Identification
		if ident == "" {
			ident = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.SeenAt.Local().Format("2006-01-02 15:04"), s.Nickname, ident, truncate(s.Description, 48))
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// withTimeout bounds single request commands by the configured request timeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 15 * time.Second
	}
	return context.WithTimeout(ctx, d)
}
