package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

func newSyncCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and control the offline session queue",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show queue status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				status, err := opts.client(model.SurfaceMain).SyncStatus(cmd.Context())
				if err != nil {
					return err
				}
				printSyncStatus(opts.out, status)
				return nil
			},
		},
		&cobra.Command{
			Use:   "drain",
			Short: "Deliver pending sessions now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				result, err := opts.client(model.SurfaceMain).Drain(cmd.Context())
				if err != nil {
					return err
				}
				switch {
				case result.Skipped:
					fmt.Fprintln(opts.out, "A drain is already in progress")
				case result.Offline:
					fmt.Fprintln(opts.out, "Offline: nothing delivered")
				default:
					fmt.Fprintf(opts.out, "Delivered %d, failed %d, dead-lettered %d\n", result.Delivered, result.Failed, result.DeadLettered)
				}
				return nil
			},
		},
		connectivityCmd(opts, "online", true),
		connectivityCmd(opts, "offline", false),
	)
	return cmd
}

func connectivityCmd(opts *options, use string, online bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Mark the server %s", use),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := opts.client(model.SurfaceMain).SetOnline(cmd.Context(), online)
			if err != nil {
				return err
			}
			printSyncStatus(opts.out, status)
			return nil
		},
	}
}

func printSyncStatus(w io.Writer, s model.SyncStatus) {
	state := "offline"
	if s.Online {
		state = "online"
	}
	if s.Syncing {
		state += ", syncing"
	}
	fmt.Fprintf(w, "Sync: %s\n", state)
	fmt.Fprintf(w, "  pending:      %d\n", s.Pending)
	fmt.Fprintf(w, "  dead letters: %d\n", s.DeadLetters)
	if s.LastSyncAt != nil {
		fmt.Fprintf(w, "  last sync:    %s\n", s.LastSyncAt.Local().Format("2006-01-02 15:04:05"))
	}
	if s.LastError != "" {
		fmt.Fprintf(w, "  last error:   %s\n", s.LastError)
	}
}
