// nudgectl inspects and acts on a session's mirror database directly.
// The daemon keeps the mirror fresh; the CLI only needs the database, so
// it works (read-only in spirit) even while nudged is running, thanks to
// WAL.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpontes/nudge/internal/config"
	"github.com/mpontes/nudge/internal/session"
	"github.com/mpontes/nudge/internal/store"
)

var (
	sessionFlag string
	jsonFlag    bool
)

func main() {
	root := &cobra.Command{
		Use:           "nudgectl",
		Short:         "Find and answer the messages you forgot to reply to",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")

	root.AddCommand(
		newPendingCmd(),
		newContextCmd(),
		newHistoryCmd(),
		newSearchCmd(),
		newStatusCmd(),
		newReplyCmd(),
		newSendCmd(),
		newDraftCmd(),
		newDraftsCmd(),
		newSuggestCmd(),
		newSyncCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func resolveSession() (string, error) {
	name := session.Resolve(sessionFlag)
	if err := session.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// openStore opens the session's mirror database. The daemon owns
// mirroring; the CLI only queries and queues.
func openStore() (*store.DB, string, error) {
	name, err := resolveSession()
	if err != nil {
		return nil, "", err
	}
	if err := session.EnsureDir(name); err != nil {
		return nil, "", err
	}
	db, err := store.Open(session.MirrorDBPath(name))
	if err != nil {
		return nil, "", err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, name, nil
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
