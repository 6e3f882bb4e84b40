package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hello-service/internal/db"
	"hello-service/internal/server"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		server.Error("command failed", nil, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	root := &cobra.Command{
		Use:           "backend",
		Short:         "Greeting and in-memory collection HTTP service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.SetVersionTemplate("backend {{.Version}} (" + commit + ")\n")

	flags := root.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML/JSON/TOML config file")
	flags.String("addr", ":8080", "listen address")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.Int("rate-limit", 0, "requests per client IP per window (0 disables)")

	_ = v.BindPFlag("addr", flags.Lookup("addr"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindPFlag("ratelimit.requests", flags.Lookup("rate-limit"))

	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and commit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "backend %s (%s)\n", version, commit)
		},
	}
}

// loadConfig reads configuration and stamps the build identity on it.
func loadConfig(v *viper.Viper, configFile string) (server.Config, error) {
	cfg, err := server.LoadConfig(v, configFile)
	if err != nil {
		return server.Config{}, err
	}
	cfg.Build = server.BuildInfo{Version: version, Commit: commit}
	return cfg, nil
}

func serve(parent context.Context, cfg server.Config) error {
	server.SetDefaultLogger(server.NewLoggerFromConfig(cfg.Log))
	server.WarnOnOptionalMissingConfig(cfg)

	store := server.NewStore()
	metrics := server.NewMetrics()
	opts := []server.Option{server.WithMetrics(metrics)}

	if cfg.Audit.Enabled {
		conn, err := db.Open(cfg.Audit.DatabaseURL)
		if err != nil {
			return fmt.Errorf("audit database: %w", err)
		}
		defer func() { _ = conn.Close() }()

		server.Info("running_migrations", nil)
		if err := db.RunMigrations(conn); err != nil {
			return err
		}
		server.Info("migrations_complete", nil)

		opts = append(opts, server.WithAudit(server.NewAuditStore(conn)))
	}

	var exporter *server.SnapshotExporter
	if cfg.S3.Enabled() {
		client, err := server.NewMinioClient(parent, cfg.S3)
		if err != nil {
			return fmt.Errorf("snapshot storage: %w", err)
		}
		exporter = server.NewSnapshotExporter(client, cfg.S3.Bucket, store, cfg.Snapshot)
		exporter.Start(func(_ server.SnapshotInfo, err error) {
			metrics.RecordSnapshot(err == nil)
		})
		opts = append(opts, server.WithSnapshots(exporter))
	}

	srv := server.New(cfg, store, opts...)

	errCh := make(chan error, 1)
	go func() {
		server.Info("starting", map[string]any{
			"addr":    cfg.Addr,
			"version": cfg.Build.Version,
			"commit":  cfg.Build.Commit,
		})
		errCh <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		server.Info("shutting_down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if exporter != nil {
			exporter.Stop()
		}
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		server.Info("shutdown_complete", nil)
		return nil
	case err := <-errCh:
		if exporter != nil {
			exporter.Stop()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}
