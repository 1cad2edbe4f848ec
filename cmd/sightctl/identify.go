package main

import (
	"errors"
	"fmt"

	"github.com/matheus3301/sightings/internal/api"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/spf13/cobra"
)

var (
	identName        string
	identScientific  string
	identURL         string
	identDescription string
	identLookup      bool
)

func init() {
	identifyCmd.Flags().StringVar(&identName, "name", "", "common name")
	identifyCmd.Flags().StringVar(&identScientific, "scientific", "", "scientific name")
	identifyCmd.Flags().StringVar(&identURL, "url", "", "reference URL")
	identifyCmd.Flags().StringVar(&identDescription, "about", "", "reference description")
	identifyCmd.Flags().BoolVar(&identLookup, "lookup", false, "fill the reference fields from the first lookup result for --name")
	rootCmd.AddCommand(identifyCmd, lookupCmd)
}

var identifyCmd = &cobra.Command{
	Use:   "identify <sight-id>",
	Short: "Attach an identification to one of your sightings (needs the server)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if identName == "" {
			return errors.New("--name is required")
		}
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

		upd := sighting.Identification{
			Sender:             sender,
			Identification:     identName,
			ScientificName:     identScientific,
			DBPediaURL:         identURL,
			DBPediaDescription: identDescription,
		}
		rctx, cancel := withTimeout(ctx, rt.Config.RequestTimeout.Duration)
		defer cancel()
		if identLookup {
			found, err := rt.API.Lookup(rctx, identName)
			if err != nil {
				return fmt.Errorf("lookup %q: %w", identName, err)
			}
			if len(found) > 0 {
				upd.ScientificName = found[0].ScientificName
				upd.DBPediaURL = found[0].URI
				upd.DBPediaDescription = found[0].Description
			}
		}

		s, err := rt.API.UpdateIdentification(rctx, args[0], upd)
		switch {
		case errors.Is(err, api.ErrNotAuthor):
			return fmt.Errorf("only %s's author can identify it", args[0])
		case err != nil:
			return err
		}
		if jsonFlag {
			outputJSON(s)
			return nil
		}
		fmt.Printf("%s identified as %s", s.ID, s.Identification)
		if s.ScientificName != "" {
			fmt.Printf(" (%s)", s.ScientificName)
		}
		fmt.Println()
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <term>",
	Short: "Look up a species name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openField(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		rctx, cancel := withTimeout(ctx, rt.Config.RequestTimeout.Duration)
		defer cancel()
		found, err := rt.API.Lookup(rctx, args[0])
		if err != nil {
			return err
		}
		if jsonFlag {
			outputJSON(found)
			return nil
		}
		if len(found) == 0 {
			fmt.Println("No match.")
			return nil
		}
		for _, c := range found {
			fmt.Printf("%s\n  %s\n  %s\n", c.ScientificName, c.URI, truncate(c.Description, 200))
		}
		return nil
	},
}
