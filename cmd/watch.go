package cmd

import (
	"chroni/internal/config"
	"chroni/internal/daemon"
	"chroni/internal/logger"
	"chroni/internal/model"
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <SRC_DIR> <DEST_DIR>",
	Short: "Mirror now and again whenever the source changes",
	Args:  cobra.ExactArgs(2),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	opts, err := cfg.Build(args[0], args[1])
	if err != nil {
		return err
	}

	state := daemon.NewState(opts)
	runner := daemon.NewRunner(opts, cfg.Debounce, state, func(report *model.Report) {
		printSummary(cmd.OutOrStdout(), report)
		if cfg.History {
			saveHistory(opts, report)
		}
	})

	srv := daemon.NewServer(state, cfg.DaemonPort)
	srv.Start()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	logger.Log.Info("chroni watch started",
		zap.String("src", opts.SrcRoot),
		zap.String("dst", opts.DstRoot),
		zap.Int("port", cfg.DaemonPort))

	select {
	case <-ctx.Done():
		logger.Log.Info("shutting down")
		err = <-done
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
		cancel()
		err = <-done
	case err = <-done:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if serr := srv.Stop(shutdownCtx); serr != nil {
		logger.Log.Warn("failed to stop daemon server", zap.Error(serr))
	}

	return err
}

func init() {
	f := watchCmd.Flags()
	addMirrorFlags(f)
	f.Int("port", config.Default.DaemonPort, "localhost port of the status API")
	f.Duration("debounce", config.Default.Debounce, "quiet period before a change triggers a run")
	rootCmd.AddCommand(watchCmd)
}
