package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/roomrelay/internal/config"
	"github.com/BioHazard786/roomrelay/internal/ui"
)

func newRoomsCmd(flags *globalFlags) *cobra.Command {
	var (
		useHTTP bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List the relay's open rooms",
		Example: `  relayctl rooms
  relayctl rooms --http --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(config.ClientOptions{})
			if err != nil {
				return err
			}

			var rooms []string
			if useHTTP {
				rooms, err = roomsOverHTTP(cmd, cfg)
			} else {
				rooms, err = roomsOverWebSocket(cmd, cfg)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string][]string{"rooms": rooms})
			}
			fmt.Fprintln(out, ui.RoomTableView(rooms))
			return nil
		},
	}

	cmd.Flags().BoolVar(&useHTTP, "http", false, "read the /rooms snapshot instead of asking over the websocket")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func roomsOverWebSocket(cmd *cobra.Command, cfg *config.Client) ([]string, error) {
	conn, err := connect(cmd.Context(), cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.fetchRooms(cmd.Context())
}

func roomsOverHTTP(cmd *cobra.Command, cfg *config.Client) ([]string, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, cfg.RoomsURL(), nil)
	if err != nil {
		return nil, NewError("request rooms", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, NewError("request rooms", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, WrapError("request rooms", ErrUnavailable, resp.Status)
	}

	var body struct {
		Rooms []string `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, NewError("decode rooms", err)
	}
	return body.Rooms, nil
}
