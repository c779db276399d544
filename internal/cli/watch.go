package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/roomrelay/internal/config"
	"github.com/BioHazard786/roomrelay/internal/ui"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the relay's room list live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(config.ClientOptions{})
			if err != nil {
				return err
			}

			spin := ui.NewConnectionSpinner(ui.IconConnect + " Connecting to " + cfg.ServerURL)
			spin.Start()
			conn, err := connect(cmd.Context(), cfg.ServerURL)
			if err != nil {
				spin.Error("Could not reach the relay")
				return err
			}
			defer conn.Close()
			spin.Stop()

			// Every room change is broadcast, so after the first request the
			// handler's snapshot channel alone keeps the view current.
			if err := conn.Client.GetRooms(); err != nil {
				return NewError("request rooms", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			updates := make(chan []string)
			go func() {
				defer close(updates)
				for {
					select {
					case rooms, ok := <-conn.Handler.Rooms:
						if !ok {
							return
						}
						select {
						case updates <- rooms:
						case <-ctx.Done():
							return
						}
					case <-ctx.Done():
						return
					}
				}
			}()

			if err := ui.RunWatch(cfg.ServerURL, updates); err != nil {
				return NewError("watch rooms", err)
			}
			return nil
		},
	}
}
