package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/motionlab/handrec/internal/analyze"
	"github.com/motionlab/handrec/internal/cliconfig"
	"github.com/motionlab/handrec/internal/domain"
	"github.com/motionlab/handrec/internal/hpos"
	"github.com/motionlab/handrec/internal/marker"
	"github.com/motionlab/handrec/internal/session"
	"github.com/motionlab/handrec/internal/source"
	"github.com/motionlab/handrec/pkg/log"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	zlog := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "handrec",
		Short:   "Record and analyze hand-tracking pose streams",
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
	}

	root.AddCommand(recordCmd(zlog))
	root.AddCommand(analyzeCmd())
	root.AddCommand(dumpCmd())

	if err := root.Execute(); err != nil {
		zlog.Error().Err(err).Msg("handrec")
		os.Exit(1)
	}
}

func recordCmd(zlog zerolog.Logger) *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a pose stream to a chunked recording file",
		Long: `Record acquires pose events and persists them losslessly to a chunked
columnar file. The device callback path is never blocked: if the writer
stalls longer than the queue capacity tolerates, incoming frames are
dropped and counted, and the count is reported at shutdown.

Without tracking hardware attached this build records from the built-in
synthetic source at the configured rate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Layer config: file, then env, then explicit flags.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level := zerolog.InfoLevel
			if cfg.Debug {
				level = zerolog.DebugLevel
			}
			logger := log.NewZerologAdapterWithLogger(zlog.Level(level))

			return runRecord(cfg, logger)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.handrec/config.toml)")
	cmd.Flags().StringVarP(&cfg.OutputPath, "output", "o", cfg.OutputPath, "recording file path (default: timestamped name)")
	cmd.Flags().Float64Var(&cfg.Rate, "rate", cfg.Rate, "nominal event rate in Hz")
	cmd.Flags().DurationVar(&cfg.DurationLimit, "duration", cfg.DurationLimit, "stop after this long (0 = until interrupted)")
	cmd.Flags().IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "transfer queue capacity in frames")
	cmd.Flags().IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "records per flushed chunk")
	cmd.Flags().DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "maximum time between flushes")
	cmd.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "bound on the final drain")
	cmd.Flags().StringVar(&cfg.MarkerFile, "marker-file", cfg.MarkerFile, "file watched for task-window toggles (content 1/0)")
	cmd.Flags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	return cmd
}

func runRecord(cfg cliconfig.Config, logger log.Logger) error {
	src := source.NewSynthetic(source.SyntheticConfig{Rate: cfg.Rate})

	rec, err := session.New(session.Config{
		OutputPath:      cfg.OutputPath,
		QueueCapacity:   cfg.QueueCapacity,
		ChunkSize:       cfg.ChunkSize,
		FlushInterval:   cfg.FlushInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, src, session.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MarkerFile != "" {
		w := marker.NewWatcher(cfg.MarkerFile, rec.SetTaskMarker, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Warn("marker watcher stopped", log.Err(err))
			}
		}()
	}

	if err := rec.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var limit <-chan time.Time
	if cfg.DurationLimit > 0 {
		limit = time.After(cfg.DurationLimit)
	}

	select {
	case <-sigCh:
		logger.Info("received signal, stopping")
	case <-limit:
		logger.Info("duration limit reached, stopping")
	}

	stopErr := rec.Stop()
	printSummary(os.Stdout, rec.Summary(), stopErr)
	return stopErr
}

func printSummary(w io.Writer, s session.Summary, stopErr error) {
	fmt.Fprintf(w, "recording:     %s\n", s.File)
	fmt.Fprintf(w, "frames stored: %d (%d chunks)\n", s.FramesStored, s.ChunksFlushed)
	if s.QueueDrops > 0 {
		fmt.Fprintf(w, "frames dropped on overflow: %d\n", s.QueueDrops)
	}
	if s.DecodeErrors > 0 {
		fmt.Fprintf(w, "malformed events skipped:   %d\n", s.DecodeErrors)
	}
	if errors.Is(stopErr, domain.ErrWriteFailed) {
		fmt.Fprintf(w, "write failure: the file is truncated but valid up to the last successful flush\n")
	}
}

func analyzeCmd() *cobra.Command {
	var (
		rate      float64
		gapFactor float64
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Report suspected frame drops in a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rate <= 0 {
				return fmt.Errorf("rate must be positive")
			}
			nominal := time.Duration(float64(time.Second) / rate)
			rep, err := analyze.Analyze(args[0], analyze.Options{
				NominalInterval: nominal,
				GapFactor:       gapFactor,
			})
			if err != nil {
				return err
			}
			fmt.Print(rep.String())

			// The recorder's own overflow counter, if the sidecar is
			// still around: exact loss, as opposed to the gap estimate.
			if s, err := session.LoadSummary(session.SummaryPath(args[0])); err == nil {
				fmt.Printf("recorded overflow drops: %d (session %s)\n", s.QueueDrops, s.SessionID)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&rate, "rate", 100, "nominal event rate in Hz")
	cmd.Flags().Float64Var(&gapFactor, "gap-factor", analyze.DefaultGapFactor, "gap threshold as a multiple of the nominal interval")

	return cmd
}

func dumpCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the records of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := hpos.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			printed := 0
			for {
				chunk, err := r.NextChunk()
				if err != nil {
					if errors.Is(err, domain.ErrTruncatedChunk) {
						fmt.Println("-- truncated tail chunk excluded --")
					}
					break
				}
				for _, rec := range chunk {
					if limit > 0 && printed >= limit {
						return nil
					}
					fmt.Printf("ts=%d marker=%t left=%s right=%s\n",
						rec.Timestamp, rec.TaskMarker, handString(rec.Left), handString(rec.Right))
					printed++
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "print at most this many records (0 = all)")

	return cmd
}

func handString(h domain.Hand) string {
	if !h.Valid {
		return "-"
	}
	p := h.Pose.PalmPosition
	return fmt.Sprintf("(%.1f,%.1f,%.1f)", p[0], p[1], p[2])
}
