package main

import (
	"fmt"

	"github.com/matheus3301/sightings/internal/config"
	"github.com/matheus3301/sightings/internal/profile"
	"github.com/spf13/cobra"
)

var (
	initServer string
	initSender string
	initAcked  bool
)

func init() {
	initCmd.Flags().StringVar(&initServer, "server", "", "server base URL")
	initCmd.Flags().StringVar(&initSender, "sender", "", "your nickname as an observer")
	initCmd.Flags().BoolVar(&initAcked, "acked-flush", false, "delete queued messages only after each send completes")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the client config and create the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}
		if initServer != "" {
			cfg.ServerURL = initServer
		}
		if initSender != "" {
			cfg.Sender = initSender
		}
		if cmd.Flags().Changed("acked-flush") {
			cfg.AckedMessageFlush = initAcked
		}
		if profileFlag != "" {
			if err := profile.ValidateName(profileFlag); err != nil {
				return err
			}
			cfg.DefaultProfile = profileFlag
		}

		if err := config.Save(profile.ConfigPath(), cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		if err := profile.EnsureDir(cfg.DefaultProfile); err != nil {
			return err
		}
		fmt.Printf("Config saved to %s\n", profile.ConfigPath())
		fmt.Printf("Profile %q at %s\n", cfg.DefaultProfile, profile.Dir(cfg.DefaultProfile))
		return nil
	},
}
