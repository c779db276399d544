package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pion/logging"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/roomrelay/internal/config"
	"github.com/BioHazard786/roomrelay/internal/probe"
	"github.com/BioHazard786/roomrelay/internal/ui"
)

func newProbeCmd(flags *globalFlags) *cobra.Command {
	var (
		stun      string
		noSTUN    bool
		receivers int
		pings     int
		payload   int
		timeout   time.Duration
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Negotiate WebRTC data channels through the relay and time them",
		Long: `probe opens a room, joins it with one or more receivers and negotiates a
WebRTC data channel to each of them using the relay's offer, answer and
candidate forwarding. It then measures round trips over every channel.`,
		Example: `  relayctl probe
  relayctl probe -n 5 --pings 20 --no-stun`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The upper bound is the relay's to enforce; it answers ROOM_FULL.
			if receivers < 1 {
				return WrapError("probe", fmt.Errorf("invalid receiver count %d", receivers),
					"a probe needs at least one receiver")
			}

			cfg, err := flags.load(config.ClientOptions{STUNServer: stun, NoSTUN: noSTUN})
			if err != nil {
				return err
			}

			pionLevel := logging.LogLevelError
			if verbose {
				pionLevel = logging.LogLevelDebug
			}

			spin := ui.NewWaitingSpinner(fmt.Sprintf("Probing %s with %d receiver(s)", cfg.ServerURL, receivers))
			spin.Start()
			report, err := probe.Run(cmd.Context(), probe.Options{
				ServerURL:   cfg.ServerURL,
				STUNServers: cfg.GetSTUNServers(),
				Receivers:   receivers,
				Pings:       pings,
				PayloadSize: payload,
				Timeout:     timeout,
				Logger:      slog.Default(),
				PionLog:     os.Stderr,
				PionLevel:   pionLevel,
			})
			spin.Stop()
			if err != nil {
				return NewError("probe", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.ProbeReportView(report.RoomID, report.Elapsed, probeRows(report)))
			if report.OK() {
				ui.PrintSuccessf(out, "All %d receivers answered in room %s", len(report.Results), report.RoomID)
				return nil
			}
			for _, res := range report.Results {
				if res.Err != nil {
					ui.PrintWarningf(cmd.ErrOrStderr(), "%v", res.Err)
				}
			}
			return WrapError("probe", ErrProbeFailed, fmt.Sprintf("%d of %d receivers", report.Failed(), len(report.Results)))
		},
	}

	cmd.Flags().StringVar(&stun, "stun", "", "STUN server URL (env STUN_SERVER)")
	cmd.Flags().BoolVar(&noSTUN, "no-stun", false, "use host candidates only")
	cmd.Flags().IntVarP(&receivers, "receivers", "n", probe.DefaultReceivers, "receivers to join")
	cmd.Flags().IntVar(&pings, "pings", probe.DefaultPings, "pings per data channel")
	cmd.Flags().IntVar(&payload, "payload", probe.DefaultPayloadSize, "ping payload size in bytes")
	cmd.Flags().DurationVar(&timeout, "timeout", probe.DefaultTimeout, "overall probe timeout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show pion's debug logs")
	return cmd
}

func probeRows(report *probe.Report) []ui.ProbeRow {
	rows := make([]ui.ProbeRow, len(report.Results))
	for i, res := range report.Results {
		lo, avg, hi := res.Stats()
		row := ui.ProbeRow{
			ReceiverID: res.ReceiverID,
			Connected:  res.Connected,
			Pings:      len(res.RTTs),
			Min:        lo,
			Avg:        avg,
			Max:        hi,
		}
		if res.Err != nil {
			row.Err = res.Err.Error()
		}
		rows[i] = row
	}
	return rows
}
