// fnopart — NSE F&O participant open interest signals
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/fnopart/api"
	"github.com/seenimoa/fnopart/internal/config"
	"github.com/seenimoa/fnopart/internal/logger"
	"github.com/seenimoa/fnopart/internal/pipeline"
	"github.com/seenimoa/fnopart/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg *config.Config
	log *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ve *pipeline.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintln(os.Stderr, "⚠️ ", ve.Message)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fnopart",
	Short: "fnopart — NSE F&O participant OI signals",
	Long: `fnopart fetches the NSE participant-wise open interest and FII derivatives
statistics archives for a pair of trading days, aggregates net participant
open interest per instrument category and derives LONG / SHORT / NEUTRAL
signals per FII instrument.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "init" {
			return nil
		}

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		log, err = logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(datesCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fnopart %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Dates Command ---

var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "Show the default current and previous working days",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := utils.NowIST()
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			t, err := utils.ParseDateIST(at)
			if err != nil {
				return fmt.Errorf("--at must be YYYY-MM-DD: %w", err)
			}
			now = t
		}

		current, previous := utils.ResolveDefaultDates(now)
		fmt.Printf("  Current:  %s (%s)\n", utils.FormatDateIST(current), current.Weekday())
		fmt.Printf("  Previous: %s (%s)\n", utils.FormatDateIST(previous), previous.Weekday())
		printHolidayWarnings(previous, current)
		return nil
	},
}

func init() {
	datesCmd.Flags().String("at", "", "resolve as of this date (YYYY-MM-DD, default today IST)")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		srv := api.NewServer(api.Options{
			Config:  cfg,
			Service: app.service,
			Metrics: app.metrics,
			Logger:  log,
			Version: version,
		})

		addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
		fmt.Printf("🌐 Starting fnopart API server on %s\n", addr)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(gctx, addr)
		})
		g.Go(func() error {
			<-gctx.Done()
			log.WithField("reason", context.Cause(gctx)).Info("stopping")
			return nil
		})
		return g.Wait()
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := utils.NowIST()
		current, previous := utils.ResolveDefaultDates(now)

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  fnopart — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus(now))
		fmt.Printf("  Time (IST):    %s\n", utils.FormatDateTimeIST(now))
		fmt.Printf("  Default pair:  %s → %s\n", utils.FormatDateIST(previous), utils.FormatDateIST(current))
		printHolidayWarnings(previous, current)
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    Archive base:  %s\n", orDefault(cfg.Source.ArchiveBaseURL, "(built-in)"))
		fmt.Printf("    Rate limit:    %.1f req/s\n", cfg.Source.RequestsPerSecond)
		fmt.Printf("    Signal rule:   %s\n", cfg.Signal.Variant)
		fmt.Printf("    Cache:         %s\n", enabledWith(cfg.Cache.Enabled, "ttl "+cfg.Cache.TTL.String()))
		fmt.Printf("    Archive:       %s\n", enabledWith(cfg.Archive.Enabled, archiveTarget(cfg.Archive)))
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("    Metrics:       %s\n", enabledWith(cfg.Metrics.Enabled, "/metrics"))
		fmt.Println()

		// Credential status
		fmt.Println("  S3 Credentials:")
		for _, k := range config.CheckSecrets(cfg) {
			status := "❌ not set (default AWS chain)"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func enabledWith(enabled bool, detail string) string {
	if !enabled {
		return "disabled"
	}
	return "enabled (" + detail + ")"
}

func archiveTarget(a config.ArchiveConfig) string {
	if a.Sink == config.SinkS3 {
		return "s3://" + a.S3.Bucket + "/" + a.Prefix
	}
	return filepath.Join(a.Dir, a.Prefix)
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join("config", "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")

		if err := config.SaveToFile(config.Default(), path, force); err != nil {
			return err
		}
		fmt.Printf("✅ Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
