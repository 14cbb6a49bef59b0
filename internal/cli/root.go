// Package cli implements focusctl, a satellite surface for the focus timer.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/satellite"
)

const defaultServer = "http://localhost:8080"

type options struct {
	server    string
	surfaceID string
	out       io.Writer
}

func (o *options) client(kind model.SurfaceKind) *satellite.Client {
	return satellite.New(o.server, o.surfaceID, kind)
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	server := os.Getenv("FOCUSCTL_SERVER")
	if server == "" {
		server = defaultServer
	}

	root := &cobra.Command{
		Use:   "focusctl",
		Short: "Control the focus timer from the terminal",
		Long: `focusctl is a remote surface for the focus timer server. Every command is
forwarded to the server, which owns the timer; focusctl only displays the
snapshots it receives.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.server, "server", server, "timer server base URL (env FOCUSCTL_SERVER)")
	root.PersistentFlags().StringVar(&opts.surfaceID, "surface", "focusctl", "surface id reported to the server")

	root.AddCommand(
		newStartCmd(opts),
		newVerbCmd(opts, model.CommandPause, "Pause the running session"),
		newVerbCmd(opts, model.CommandResume, "Resume a paused session"),
		newVerbCmd(opts, model.CommandSkip, "End the current session early and move on"),
		newStopCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newSyncCmd(opts),
	)
	return root
}

// Execute runs focusctl with the process arguments.
func Execute(version string) error {
	root := newRootCmd(os.Stdout)
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
