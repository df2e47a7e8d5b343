package cmd

import (
	"chroni/internal/config"
	"chroni/internal/model"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running watch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var snap model.WatchSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		printStatus(cmd.OutOrStdout(), snap)
		return nil
	},
}

func printStatus(w io.Writer, snap model.WatchSnapshot) {
	lastRun := "-"
	if snap.LastRun != nil {
		lastRun = humanize.Time(*snap.LastRun)
	}

	_, _ = fmt.Fprintf(w, "%s -> %s (%s)\n", snap.Src, snap.Dst, snap.Mode)
	_, _ = fmt.Fprintf(w, "  uptime:   %s\n", time.Since(snap.StartedAt).Round(time.Second))
	_, _ = fmt.Fprintf(w, "  runs:     %d (last %s)\n", snap.Runs, lastRun)
	_, _ = fmt.Fprintf(w, "  changed:  %d\n", snap.Changed)
	_, _ = fmt.Fprintf(w, "  failed:   %d\n", snap.Failed)
	if snap.LastError != "" {
		_, _ = fmt.Fprintf(w, "  error:    %s\n", snap.LastError)
	}
}

func init() {
	statusCmd.Flags().Int("port", config.Default.DaemonPort, "localhost port of the status API")
	rootCmd.AddCommand(statusCmd)
}
