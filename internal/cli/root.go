// Package cli implements relayctl, the relay's operator command line.
package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/roomrelay/internal/config"
	"github.com/BioHazard786/roomrelay/internal/ui"
	"github.com/BioHazard786/roomrelay/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	server string
}

// NewRootCmd builds the relayctl command tree.
func NewRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:     "relayctl",
		Short:   "Inspect and probe a WebRTC room relay",
		Long:    `relayctl talks to a room relay over its websocket endpoint. It lists open rooms, follows the room list live and probes the relay end to end by negotiating WebRTC data channels through it.`,
		Version: version.Version,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.server, "server", "s", "", "relay websocket URL (env RELAY_URL)")

	rootCmd.AddCommand(
		newRoomsCmd(&flags),
		newWatchCmd(&flags),
		newProbeCmd(&flags),
	)
	return rootCmd
}

func (f *globalFlags) load(opts config.ClientOptions) (*config.Client, error) {
	opts.ServerURL = f.server
	cfg, err := config.LoadClient(opts)
	if err != nil {
		return nil, NewError("load config", err)
	}
	return cfg, nil
}

// Execute runs relayctl. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := NewRootCmd()
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}
