package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/sightings/internal/outbox"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	chatCmd.AddCommand(chatSendCmd, chatThreadCmd)
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about a sighting",
}

var chatSendCmd = &cobra.Command{
	Use:   "send <sight-id> <message...>",
	Short: "Send a message, or queue it while offline",
	Args:  cobra.MinimumNArgs(2),
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

		sightID := args[0]
		if rt.Tracker.Online() {
			_ = rt.Channel.JoinSession(ctx, sightID)
		}
		d, err := rt.Composer.SubmitMessage(ctx, sightID, strings.Join(args[1:], " "), sender)
		if err != nil {
			return err
		}
		if jsonFlag {
			outputJSON(map[string]string{"delivery": d.String()})
			return nil
		}
		if d == outbox.Queued {
			fmt.Println(outbox.SavedLocallyNotice)
			return nil
		}
		fmt.Println("Sent.")
		return nil
	},
}

var chatThreadCmd = &cobra.Command{
	Use:   "thread <sight-id>",
	Short: "Show a sighting's chat history and your queued messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openField(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()
		sightID := args[0]

		var history []sighting.Message
		if rt.Tracker.Online() {
			got := make(chan []sighting.Message, 1)
			rt.Channel.OnUpdateMessages(func(msgs []sighting.Message) {
				select {
				case got <- msgs:
				default:
				}
			})
			if err := rt.Channel.JoinSession(ctx, sightID); err == nil {
				select {
				case history = <-got:
				case <-time.After(waitFlag):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		queued, err := rt.Composer.PendingThread(ctx, sightID)
		if err != nil {
			return err
		}

		if jsonFlag {
			outputJSON(map[string]any{"messages": history, "queued": queued})
			return nil
		}
		printThread(history, queued)
		return nil
	},
}

func printThread(history []sighting.Message, queued []store.PendingMessage) {
	if len(history) == 0 && len(queued) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range history {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("01-02 15:04"), m.Sender, m.Message)
	}
	for _, m := range queued {
		fmt.Printf("[queued] %s: %s\n", m.Sender, m.Message)
	}
}
