package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mpontes/nudge/internal/bus"
	"github.com/mpontes/nudge/internal/mirror"
	"github.com/mpontes/nudge/internal/outbox"
	"github.com/mpontes/nudge/internal/reply"
	"github.com/mpontes/nudge/internal/status"
)

func newReplyCmd() *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "reply <msg-id> <text...>",
		Short: "Queue a reply to a pending message",
		Long: `Queue a reply to a pending message. The daemon delivers it within its
poll interval; --now delivers synchronously through Messages instead.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid message id %q", args[0])
			}
			body := strings.Join(args[1:], " ")

			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			b := bus.New()
			svc := reply.NewService(db, nil, b, zap.NewNop())
			clientMsgID, err := svc.Answer(id, body)
			if err != nil {
				return err
			}

			if now {
				sender := outbox.NewSender(db, outbox.NewAppleScriptSender(), b, zap.NewNop())
				sender.Drain(cmd.Context())
				pending, err := db.PendingOutbox()
				if err != nil {
					return err
				}
				for _, e := range pending {
					if e.ClientMsgID == clientMsgID {
						return fmt.Errorf("delivery did not complete, reply stays queued")
					}
				}
				fmt.Println("Delivered.")
				return nil
			}

			fmt.Printf("Queued %s. The daemon will deliver it.\n", clientMsgID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "deliver immediately instead of waiting for the daemon")
	return cmd
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <contact> <text...>",
		Short: "Queue a freeform message to a contact",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			svc := reply.NewService(db, nil, bus.New(), zap.NewNop())
			clientMsgID, err := svc.Send(args[0], strings.Join(args[1:], " "), nil)
			if err != nil {
				return err
			}
			fmt.Printf("Queued %s.\n", clientMsgID)
			return nil
		},
	}
	return cmd
}

func newDraftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "draft <contact> <text...>",
		Short: "Save a reply for later without sending it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			id, err := db.AddDraft(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Printf("Draft %d saved.\n", id)
			return nil
		},
	}
}

func newDraftsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drafts",
		Short: "List saved drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			drafts, err := db.ListDrafts()
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(drafts)
			}
			for _, d := range drafts {
				fmt.Printf("#%-5d %-24s %s\n", d.ID, truncate(d.Contact, 24), truncate(d.Body, 60))
			}
			return nil
		},
	}
}

func newSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <msg-id>",
		Short: "Draft a reply with the local model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid message id %q", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			gen := reply.NewOllamaClient(cfg.Ollama.URL, cfg.Ollama.Model)
			svc := reply.NewService(db, gen, bus.New(), zap.NewNop())
			suggestion, err := svc.Suggest(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Println(suggestion)
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one mirror pass from chat.db",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			b := bus.New()
			engine := mirror.NewEngine(db, b, status.NewMachine(b), zap.NewNop(), cfg.ChatDBPath, time.Minute)
			result, err := engine.RunPass(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Mirrored %d new messages (skipped %d, recovered %d bodies).\n",
				result.Rows, result.Skipped, result.Decoded)
			return nil
		},
	}
}
