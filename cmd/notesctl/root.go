package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"notes-sync-client/internal/app"
	"notes-sync-client/internal/config"
	"notes-sync-client/internal/network"
	"notes-sync-client/pkg/logger"

	"github.com/spf13/cobra"
)

// cli holds what every subcommand shares. The app is opened before a
// subcommand runs and closed after it.
type cli struct {
	offline bool
	verbose bool
	asJSON  bool

	app *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "notesctl",
		Short: "Operate the local-first notes cache and its offline queue",
		Long: `notesctl works directly on the on-device notes cache. Writes land
locally first and are queued until the remote can take them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}

	root.PersistentFlags().BoolVar(&c.offline, "offline", false, "Treat the network as unreachable")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print JSON instead of text")

	root.AddCommand(
		newNotesCmd(c),
		newSyncCmd(c),
		newStatusCmd(c),
		newQueueCmd(c),
	)
	return root
}

func (c *cli) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	log := logger.New(level, "development")

	var opts []app.Option
	if c.offline {
		opts = append(opts, app.WithProbe(network.NewStaticProbe(false, false)))
	}

	a, err := app.New(ctx, cfg, log, opts...)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// userID is the logged in user, or "local" on a device nobody logged into.
func (c *cli) userID(ctx context.Context) string {
	if user := c.app.Cache.GetUserData(ctx); user != nil {
		return user.ID
	}
	return "local"
}

func (c *cli) printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
