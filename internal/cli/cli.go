// Package cli wires the command-line surface of epd-tuner.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"epd-tuner/internal/camera"
	"epd-tuner/internal/config"
	"epd-tuner/internal/firmware"
	"epd-tuner/internal/fix"
	"epd-tuner/internal/iterate"
	"epd-tuner/internal/layout"
	"epd-tuner/internal/logging"
	"epd-tuner/internal/monitor"
	"epd-tuner/internal/pio"
	"epd-tuner/internal/version"
)

// Options carries the global flags shared by every command.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// NewRootCmd builds the epd-tuner command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "epd-tuner",
		Short: "Hardware-in-the-loop layout tuning for e-paper displays",
		Long: `epd-tuner photographs a physical e-paper display, analyzes the rendered
layout, classifies defects, rewrites firmware layout parameters, and
rebuilds and reflashes until the display matches the intended design.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to JSON config file (default $EPD_TUNER_CONFIG)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newCaptureCmd(opts),
		newMonitorCmd(opts),
		newAnalyzeCmd(opts),
		newIterateCmd(opts),
		newFlashCmd(opts),
		newWatchCmd(opts),
		newParamsCmd(opts),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger, applying any global
// flag overrides on top of the file values.
func setup(opts *Options) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, nil, err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Logging.Format = opts.LogFormat
	}
	return cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format), nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM, so loops
// finish their current step and release the camera before exiting.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newCaptureCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Capture one frame, analyze it, and save the artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}

			cam, err := camera.Open(cfg.Camera, logger)
			if err != nil {
				return err
			}
			defer cam.Close()

			session := monitor.NewSession(cam, cfg.Display, cfg.Layout, cfg.Capture, logger)
			a, err := session.CaptureAndAnalyze("capture")
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), layout.Report(a))
			return nil
		},
	}
}

func newMonitorCmd(opts *Options) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Continuously capture and analyze the display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			cam, err := camera.Open(cfg.Camera, logger)
			if err != nil {
				return err
			}
			defer cam.Close()

			session := monitor.NewSession(cam, cfg.Display, cfg.Layout, cfg.Capture, logger)
			out := cmd.OutOrStdout()
			return session.Monitor(ctx, interval, func(a *layout.Analysis) {
				fmt.Fprint(out, layout.Report(a))
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "delay between captures (default from config)")
	return cmd
}

func newAnalyzeCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze IMAGE",
		Short: "Analyze a saved capture without a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}

			session := monitor.NewSession(nil, cfg.Display, cfg.Layout, cfg.Capture, logger)
			a, err := session.AnalyzeFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), layout.Report(a))
			return nil
		},
	}
}

func newIterateCmd(opts *Options) *cobra.Command {
	var maxIterations int
	cmd := &cobra.Command{
		Use:   "iterate",
		Short: "Run the capture-analyze-fix-reflash loop until the layout is clean",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			cam, err := camera.Open(cfg.Camera, logger)
			if err != nil {
				return err
			}
			defer cam.Close()

			log, err := iterate.LoadLog(cfg.Iterate.LogPath)
			if err != nil {
				return err
			}

			logger.Info("position the device facing the camera and ensure even lighting")

			session := monitor.NewSession(cam, cfg.Display, cfg.Layout, cfg.Capture, logger)
			ctrl := iterate.NewController(iterate.Deps{
				Session:   session,
				Engine:    fix.NewEngine(cfg.Fix, logger),
				Toolchain: pio.NewRunner(cfg.Build, logger),
				Log:       log,
				Logger:    logger,
			}, cfg.Iterate, cfg.Classify)

			state, err := ctrl.Run(ctx, maxIterations)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Finished in state %s after %d logged iterations (log: %s)\n",
				state, log.Len(), log.Path())
			return nil
		},
	}
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration budget (default from config)")
	return cmd
}

func newFlashCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "flash",
		Short: "Build and flash the firmware once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			return pio.NewRunner(cfg.Build, logger).BuildAndFlash(ctx)
		},
	}
}

func newWatchCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch DIR",
		Short: "Analyze new capture files as they appear in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			session := monitor.NewSession(nil, cfg.Display, cfg.Layout, cfg.Capture, logger)
			return monitor.NewWatcher(session, logger).Watch(ctx, args[0])
		},
	}
}

func newParamsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "List the tunable integer declarations in the firmware source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(opts)
			if err != nil {
				return err
			}

			store, err := firmware.Load(cfg.Fix.Source)
			if err != nil {
				return err
			}
			params := store.All()
			if len(params) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no parameter declarations found")
				return nil
			}
			for _, p := range params {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %d\n", p.Name, p.Value)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "epd-tuner %s (commit %s, built %s)\n",
				version.Version, version.GitCommit, version.BuildTime)
		},
	}
}
