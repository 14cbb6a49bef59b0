package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/surface"
)

func newStartCmd(opts *options) *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the armed session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, opts, model.Command{Type: model.CommandStart, TaskID: taskID})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task to attribute the session to")
	return cmd
}

func newStopCmd(opts *options) *cobra.Command {
	var discard bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the session and reset the cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, opts, model.Command{Type: model.CommandStop, Discard: discard})
		},
	}
	cmd.Flags().BoolVar(&discard, "discard", false, "do not record the partial session")
	return cmd
}

func newVerbCmd(opts *options, verb model.CommandType, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(verb),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, opts, model.Command{Type: verb})
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current timer state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := opts.client(model.SurfaceMain).State(cmd.Context())
			if err != nil {
				return err
			}
			printSnapshot(opts.out, state)
			return nil
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the timer live until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return opts.client(model.SurfaceFloating).Watch(ctx, func(s model.Snapshot) {
				fmt.Fprintln(opts.out, surface.Title(s))
			})
		},
	}
}

func send(cmd *cobra.Command, opts *options, command model.Command) error {
	state, err := opts.client(model.SurfaceMain).Command(cmd.Context(), command)
	if err != nil {
		return err
	}
	printSnapshot(opts.out, state)
	return nil
}

func printSnapshot(w io.Writer, s model.Snapshot) {
	fmt.Fprintln(w, surface.Title(s))
	fmt.Fprintf(w, "  phase:      %s\n", s.Phase)
	fmt.Fprintf(w, "  remaining:  %s of %s\n", surface.Clock(s.RemainingSeconds), surface.Clock(s.PlannedSeconds))
	fmt.Fprintf(w, "  cycle:      %d/%d\n", s.CompletedPomodorosInCycle, s.Config.PomodorosUntilLongBreak)
	if s.SelectedTaskID != "" {
		fmt.Fprintf(w, "  task:       %s\n", s.SelectedTaskID)
	}
}
