package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSyncCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued operations against the remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.app.Notes.SyncOfflineOperations(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.asJSON {
				return c.printJSON(out, report)
			}
			if report.Skipped {
				fmt.Fprintf(out, "offline, %d operations waiting\n", report.Remaining)
				return nil
			}
			fmt.Fprintf(out, "visited %d: %d confirmed, %d dropped, %d failed, %d dead-lettered, %d remaining\n",
				report.Visited, report.Confirmed, report.Attempted, report.Failed, report.DeadLettered, report.Remaining)
			return nil
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show network and queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := c.app.Notes.SyncStatus(cmd.Context())

			out := cmd.OutOrStdout()
			if c.asJSON {
				return c.printJSON(out, status)
			}

			network := "offline"
			if status.Online {
				network = "online"
			}
			last := "never"
			if status.LastSyncedAt != nil {
				last = status.LastSyncedAt.Local().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "network:      %s\n", network)
			fmt.Fprintf(out, "remote:       %s (read-only: %t)\n", c.app.Config.Remote.BaseURL, c.app.Remote.ReadOnly())
			fmt.Fprintf(out, "pending:      %d\n", status.Pending)
			fmt.Fprintf(out, "dead letters: %d\n", status.DeadLetters)
			fmt.Fprintf(out, "last sync:    %s\n", last)
			return nil
		},
	}
}

func newQueueCmd(c *cli) *cobra.Command {
	var dead bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show queued operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := c.app.Notes.PendingOperations(cmd.Context())
			if dead {
				ops = c.app.Notes.DeadLetters(cmd.Context())
			}

			out := cmd.OutOrStdout()
			if c.asJSON {
				return c.printJSON(out, ops)
			}
			if len(ops) == 0 {
				fmt.Fprintln(out, "queue is empty")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "OP\tKIND\tNOTE\tSTATUS\tATTEMPTS\tLAST ERROR")
			for _, op := range ops {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					op.ID, op.Kind, op.NoteID, op.Status, op.Attempts, op.LastError)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&dead, "dead", false, "Show dead letters instead of pending operations")

	cmd.AddCommand(&cobra.Command{
		Use:   "retry <op-id>",
		Short: "Move a dead letter back onto the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := c.app.Notes.RetryDeadLetter(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", op.ID)
			return nil
		},
	})
	return cmd
}
