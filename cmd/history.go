package cmd

import (
	"chroni/internal/db"
	"chroni/internal/model"
	"chroni/internal/repository"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyN      int
	historyRun    uint
	historyFailed bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, or the entries of one run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.Init(cfg.DBPath); err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		repo := repository.NewHistoryRepository()
		out := cmd.OutOrStdout()

		if historyRun != 0 {
			var histories []model.History
			var err error
			if historyFailed {
				histories, err = repo.GetFailed(historyRun)
			} else {
				histories, err = repo.GetByRun(historyRun)
			}
			if err != nil {
				return err
			}

			printHistories(out, histories)
			return nil
		}

		runs, err := repo.GetRecentRuns(historyN)
		if err != nil {
			return err
		}

		printRuns(out, runs)
		return nil
	},
}

func printRuns(w io.Writer, runs []model.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "no history yet")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tMODE\tCOPIED\tDELETED\tFAILED\tBYTES\tSRC -> DST")
	for _, r := range runs {
		mode := r.Mode
		if r.DryRun {
			mode += " (dry-run)"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s -> %s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			mode,
			r.Copied,
			r.Deleted,
			r.Failed,
			humanize.Bytes(uint64(r.Bytes)),
			r.Src, r.Dst)
	}
	_ = tw.Flush()
}

func printHistories(w io.Writer, histories []model.History) {
	if len(histories) == 0 {
		_, _ = fmt.Fprintln(w, "no entries")
		return
	}

	for _, h := range histories {
		status := "✓"
		if h.Status == model.StatusFailed {
			status = "✗"
		}

		line := fmt.Sprintf("%s %-10s %s (%s)", status, h.Action, h.Path, h.Reason)
		if h.ErrMsg != "" {
			line += ": " + h.ErrMsg
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyN, "n", "n", 20, "number of runs to show")
	historyCmd.Flags().UintVar(&historyRun, "run", 0, "show the entries of this run")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "with --run, show failed entries only")
	rootCmd.AddCommand(historyCmd)
}
