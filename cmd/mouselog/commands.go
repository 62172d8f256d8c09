package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leshachaplin/mouselog/app"
	"github.com/leshachaplin/mouselog/internal/capture"
	"github.com/leshachaplin/mouselog/internal/config"
)

func newRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mouselog",
		Short:         "mouselog: capture and log pointer and keyboard interaction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReplayCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept event batches over HTTP and append them to the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.New(func() (config.Config, error) {
				return config.LoadFromEnv(configPath)
			}).Start()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("MOUSELOG_CONFIG"), "path to a yaml config file")
	return cmd
}

type replayFlags struct {
	file      string
	endpoint  string
	debounce  time.Duration
	batchSize int
	realtime  bool
	width     uint32
	height    uint32
	logLevel  string
}

func newReplayCmd() *cobra.Command {
	var f replayFlags

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Send a recording of raw input through the capture pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.file, "file", "f", "", "recording, one raw event per line")
	flags.StringVar(&f.endpoint, "endpoint", "http://127.0.0.1:3000", "server base URL")
	flags.DurationVar(&f.debounce, "debounce", capture.DefaultDebounce, "quiet period before a batch is sent")
	flags.IntVar(&f.batchSize, "batch-size", 0, "also send once this many events are pending")
	flags.BoolVar(&f.realtime, "realtime", false, "keep the recorded spacing between events")
	flags.Uint32Var(&f.width, "viewport-width", 1920, "viewport width reported with every event")
	flags.Uint32Var(&f.height, "viewport-height", 1080, "viewport height reported with every event")
	flags.StringVar(&f.logLevel, "log-level", string(app.INFO), "TRACE, DEBUG, INFO, WARN, ERROR or PANIC")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runReplay(cmd *cobra.Command, f replayFlags) error {
	src, err := os.Open(f.file)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer src.Close()

	logger := app.NewZeroLogger(app.Level(f.logLevel), app.WithOutput(cmd.ErrOrStderr()), app.WithConsole())
	rec := capture.New(capture.Config{
		Debounce:  f.debounce,
		Transport: capture.TransportConfig{BaseURL: f.endpoint},
	}, capture.StaticViewport{Width: f.width, Height: f.height}, logger)

	stats, err := capture.Replay(cmd.Context(), src, rec, capture.ReplayOptions{
		BatchSize: f.batchSize,
		Realtime:  f.realtime,
	})
	rec.Close()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session %s: read %d, recorded %d, skipped %d\n",
		rec.SessionID(), stats.Read, stats.Recorded, stats.Skipped)
	return nil
}
