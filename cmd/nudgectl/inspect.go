package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mpontes/nudge/internal/bus"
	"github.com/mpontes/nudge/internal/detect"
	"github.com/mpontes/nudge/internal/lock"
	"github.com/mpontes/nudge/internal/reply"
	"github.com/mpontes/nudge/internal/session"
	"github.com/mpontes/nudge/internal/store"
)

func fmtWhen(m *store.Message) string {
	if t, ok := m.When(); ok {
		return t.Local().Format("Jan 2 15:04")
	}
	return "undated"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func newPendingCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List messages still waiting for your reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if days == 0 {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				days = cfg.LookbackDays
			}

			svc := reply.NewService(db, nil, bus.New(), zap.NewNop())
			items, err := svc.Pending(days)
			if err != nil {
				return err
			}

			if jsonFlag {
				return outputJSON(items)
			}
			if len(items) == 0 {
				fmt.Println("Nothing pending. Inbox zero, message edition.")
				return nil
			}
			for _, it := range items {
				m := it.Message
				line := fmt.Sprintf("#%-5d %-12s %-24s %s", m.ID, fmtWhen(&m), truncate(m.Contact, 24), truncate(m.Body(), 60))
				if it.Context != nil && it.Context.DailyCount > 1 {
					line += fmt.Sprintf("  (%d today)", it.Context.DailyCount)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "lookback window in days (default from config)")
	return cmd
}

func newContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context <msg-id>",
		Short: "Show the thread context around one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid message id %q", args[0])
			}

			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			m, err := db.GetMessage(id)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("no message with id %d", id)
			}
			c, err := detect.NewExpander(db).Expand(id)
			if err != nil {
				return err
			}

			if jsonFlag {
				return outputJSON(struct {
					Message *store.Message
					Context *detect.Context
				}{m, c})
			}

			fmt.Printf("From:   %s\n", m.Contact)
			fmt.Printf("When:   %s\n", fmtWhen(m))
			if c.PrevText != nil {
				fmt.Printf("Before: %s\n", *c.PrevText)
			}
			fmt.Printf(">>>     %s\n", m.Body())
			if c.NextText != nil {
				fmt.Printf("After:  %s\n", *c.NextText)
			}
			fmt.Printf("Volume: %d messages with this contact today\n", c.DailyCount)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <contact>",
		Short: "Show recent messages exchanged with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			msgs, err := db.ContactMessages(args[0], limit)
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(msgs)
			}
			for _, m := range msgs {
				arrow := "<-"
				if m.FromMe {
					arrow = "->"
				}
				fmt.Printf("%-12s %s %s\n", fmtWhen(&m), arrow, m.Body())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of messages to show")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var contact string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across mirrored messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			results, err := db.SearchMessages(args[0], contact, limit)
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(results)
			}
			for _, r := range results {
				fmt.Printf("#%-5d %-12s %-24s %s\n", r.Message.ID, fmtWhen(&r.Message), truncate(r.Message.Contact, 24), r.Snippet)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contact, "contact", "", "restrict to one contact")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

type statusReport struct {
	Session   string `json:"session"`
	DaemonPID int    `json:"daemon_pid,omitempty"`
	Messages  int64  `json:"messages"`
	Handles   int64  `json:"handles"`
	Watermark string `json:"watermark,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session and mirror status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, name, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			report := statusReport{Session: name}
			report.DaemonPID = lock.HolderPID(session.Dir(name))
			if report.Messages, err = db.MessageCount(); err != nil {
				return err
			}
			if report.Handles, err = db.HandleCount(); err != nil {
				return err
			}
			if report.Watermark, err = db.GetCheckpoint("mirror.rowid"); err != nil {
				return err
			}

			if jsonFlag {
				return outputJSON(report)
			}
			fmt.Printf("Session:   %s\n", report.Session)
			if report.DaemonPID > 0 {
				fmt.Printf("Daemon:    running (pid %d)\n", report.DaemonPID)
			} else {
				fmt.Println("Daemon:    not running")
			}
			fmt.Printf("Messages:  %d across %d contacts\n", report.Messages, report.Handles)
			if report.Watermark != "" {
				fmt.Printf("Mirrored:  through source row %s\n", report.Watermark)
			} else {
				fmt.Println("Mirrored:  never (run `nudgectl sync` or start nudged)")
			}
			return nil
		},
	}
}
