package cmd

import (
	"chroni/internal/config"
	"chroni/internal/db"
	"chroni/internal/logger"
	"chroni/internal/model"
	"chroni/internal/repository"
	"chroni/internal/syncer"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	exitOK     = 0
	exitError  = 1
	exitFailed = 3
)

var version = "dev"

var (
	cfg     *config.Config
	cfgFile string
	debug   bool
)

// FailedError is returned under --strict when a run completed with failed entries.
type FailedError struct {
	Failed int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%d entries failed", e.Failed)
}

var rootCmd = &cobra.Command{
	Use:           "chroni [flags] <SRC_DIR> <DEST_DIR>",
	Short:         "Mirror a directory tree into another one",
	Version:       version,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		if err := bindFlags(cmd.Flags()); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile)
		return err
	},
	RunE: runMirror,
}

var flagKeys = map[string]string{
	"overwrite-mode": "overwrite_mode",
	"only-newest":    "only_newest",
	"include":        "include",
	"exclude":        "exclude",
	"dry-run":        "dry_run",
	"workers":        "workers",
	"strict":         "strict",
	"history":        "history",
	"port":           "daemon_port",
	"debounce":       "debounce",
}

func bindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	return nil
}

func runMirror(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	opts, err := cfg.Build(args[0], args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	engine, err := syncer.New(opts, syncer.WithObserver(printOutcome(out, opts.DryRun)))
	if err != nil {
		return err
	}

	report, err := engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	printSummary(out, report)

	if cfg.History {
		saveHistory(opts, report)
	}

	if opts.Strict && report.Failed > 0 {
		return &FailedError{Failed: report.Failed}
	}

	return nil
}

func saveHistory(opts model.Options, report *model.Report) {
	if err := db.Init(cfg.DBPath); err != nil {
		logger.Log.Warn("failed to open history", zap.Error(err))
		return
	}
	defer func() { _ = db.Close() }()

	run, err := repository.NewHistoryRepository().SaveRun(opts, report)
	if err != nil {
		logger.Log.Warn("failed to save history", zap.Error(err))
		return
	}

	logger.Log.Debug("history saved", zap.Uint("run", run.ID))
}

func printOutcome(w io.Writer, dryRun bool) func(model.Outcome) {
	prefix := ""
	if dryRun {
		prefix = "[dry-run] "
	}

	return func(o model.Outcome) {
		if o.Err != nil {
			_, _ = fmt.Fprintf(w, "%s%s: %v\n", prefix, o.Decision, o.Err)
			return
		}
		_, _ = fmt.Fprintf(w, "%s%s\n", prefix, o.Decision)
	}
}

func printSummary(w io.Writer, report *model.Report) {
	prefix := ""
	if report.DryRun {
		prefix = "[dry-run] "
	}

	_, _ = fmt.Fprintf(w, "%sdone: %d dirs created, %d copied (%s), %d skipped, %d deleted, %d failed in %s\n",
		prefix,
		report.Counts[model.ActionCreateDir],
		report.Counts[model.ActionCopy],
		humanize.Bytes(uint64(report.Bytes)),
		report.Counts[model.ActionSkip],
		report.Counts[model.ActionDelete],
		report.Failed,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	if _, ok := errors.AsType[*FailedError](err); ok {
		return exitFailed
	}

	return exitError
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}

func daemonURL(path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", cfg.DaemonPort, path)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.chroni/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "Enable debug mode")

	addMirrorFlags(rootCmd.Flags())
	rootCmd.Flags().BoolP("version", "V", false, "Print version and exit")
}

func addMirrorFlags(f *pflag.FlagSet) {
	f.StringP("overwrite-mode", "o", string(model.ModeFastComp), "always, fast-comp, deep-comp or never")
	f.StringArray("only-newest", nil, "glob of directories keeping only their newest file (repeatable)")
	f.StringArray("include", nil, "source path to mirror, relative to SRC_DIR (repeatable, default everything)")
	f.StringArray("exclude", nil, "gitignore-style pattern of entries to leave alone (repeatable)")
	f.Bool("dry-run", false, "report decisions without touching the destination")
	f.Int("workers", config.Default.Workers, "concurrent file operations per directory")
	f.Bool("strict", false, "exit with code 3 when any entry failed")
	f.Bool("history", false, "record the run in the history database")
}
