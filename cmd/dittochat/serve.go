package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/marmos91/dittochat/internal/logger"
	"github.com/marmos91/dittochat/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type serveOptions struct {
	configFile string
	addr       string
	port       int
	maxClients int
	logFile    string
	logDir     string
	logLevel   string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		Long: `Start the chat server and run until interrupted.

Flags override the configuration file, which overrides the defaults.
The journal is written to <log-dir>/dittochat-<date>.log unless a log
file name is given with --log.

Examples:
  dittochat serve
  dittochat serve -a 127.0.0.1 -p 6000
  dittochat serve --log room.log --log-dir /var/log/dittochat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	bindServeFlags(cmd.Flags(), &opts)
	return cmd
}

func bindServeFlags(flags *pflag.FlagSet, opts *serveOptions) {
	flags.StringVar(&opts.configFile, "config", "", "Path to config file (default $XDG_CONFIG_HOME/dittochat/config.yaml)")
	flags.StringVarP(&opts.addr, "addr", "a", config.DefaultHost, "Address to bind to")
	flags.IntVarP(&opts.port, "port", "p", config.DefaultPort, "TCP port to listen on")
	flags.IntVar(&opts.maxClients, "max-clients", config.DefaultMaxClients, "Maximum number of connected clients")
	flags.StringVarP(&opts.logFile, "log", "l", "", "Journal file name, relative to --log-dir")
	flags.StringVar(&opts.logDir, "log-dir", os.TempDir(), "Directory for the journal file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Operational log level (DEBUG, INFO, WARN, ERROR)")
}

// loadServeConfig loads the configuration and applies the flags the user set
// explicitly, then validates the result.
func loadServeConfig(cmd *cobra.Command, opts serveOptions) (*config.Config, error) {
	cfg, err := config.LoadUnvalidated(opts.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Host = opts.addr
	}
	if flags.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if flags.Changed("max-clients") {
		cfg.Server.MaxClients = opts.maxClients
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log") || flags.Changed("log-dir") {
		cfg.Journal.Type = "file"
		if cfg.Journal.File == nil {
			cfg.Journal.File = make(map[string]any)
		}
		cfg.Journal.File["dir"] = opts.logDir
		if flags.Changed("log") {
			path := opts.logFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(opts.logDir, path)
			}
			cfg.Journal.File["path"] = path
		} else {
			// A path from the config file would shadow the new directory
			delete(cfg.Journal.File, "path")
		}
	}

	// Flags may have left values unset or unnormalized
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func runServe(parent context.Context, cfg *config.Config) error {
	closeLog, err := configureLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("DittoChat %s starting", version)
	logger.Debug("Configuration: server=%+v journal=%s", cfg.Server, cfg.Journal.Type)

	j, err := config.CreateJournal(ctx, &cfg.Journal)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	defer func() {
		if err := j.Close(); err != nil {
			logger.Error("Journal close error: %v", err)
		}
	}()

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsResult.Server.Stop(shutdownCtx)
		}()
	}

	srv, err := config.CreateServer(cfg, j, metricsResult.ChatMetrics)
	if err != nil {
		return err
	}

	logger.Info("Server is running on %s:%d. Press Ctrl+C to stop.", cfg.Server.Host, cfg.Server.Port)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// configureLogger applies the logging section and returns a function that
// releases the log file, if any.
func configureLogger(cfg config.LoggingConfig) (func(), error) {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output %s: %w", cfg.Output, err)
		}
		logger.SetOutput(f)
		return func() {
			logger.SetOutput(os.Stdout)
			_ = f.Close()
		}, nil
	}
	return func() {}, nil
}
