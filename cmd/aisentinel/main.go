package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"aisentinel/config"
	"aisentinel/storage"
)

// app carries what every subcommand needs.
type app struct {
	cfgPath string
	cfg     config.Config
	logFile io.Closer
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "aisentinel",
		Short:         "Track public sentiment about AI tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logFile != nil {
				a.logFile.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "./config.yaml", "path to the YAML config file")

	root.AddCommand(
		a.serveCmd(),
		a.collectCmd(),
		a.prepareDataCmd(),
		a.trainCmd(),
		a.evaluateCmd(),
		a.modelsCmd(),
		a.analyzeCmd(),
		a.sampleDataCmd(),
		a.importCmd(),
		a.exportCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads configuration and sets up logging.
func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Structured JSON logging to stdout, mirrored to a rotating file when set
	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}
		a.logFile = lj
		out = io.MultiWriter(os.Stdout, lj)
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})))
	slog.Debug("config loaded", "environment", cfg.Environment, "timezone", cfg.Timezone, "db_path", cfg.DBPath)
	return nil
}

// openStore opens the SQLite store, creating its directory.
func (a *app) openStore() (*storage.Store, error) {
	if dir := filepath.Dir(a.cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	store, err := storage.New(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("storage initialized", "db_path", a.cfg.DBPath)
	return store, nil
}
