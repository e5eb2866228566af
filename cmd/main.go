package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/padcal/internal/adapters/device"
	"github.com/okian/padcal/internal/adapters/http/api"
	"github.com/okian/padcal/internal/adapters/http/swagger"
	app "github.com/okian/padcal/internal/app"
	"github.com/okian/padcal/internal/config"
	"github.com/okian/padcal/internal/domain/profile"
	"github.com/okian/padcal/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	connectTimeout    = 5 * time.Second
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "padcal",
		Short: "Pressure pad threshold calibration",
		Long: `padcal polls an analog pressure pad, turns sensor readings into button
presses with per-sensor activation and release thresholds, and serves an
HTTP API for calibrating them live.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $PADCAL_CONFIG)")

	root.AddCommand(
		newServeCommand(&configPath),
		newProfileCommand(&configPath),
	)
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the pad and serve the calibration API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func newProfileCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Export or import the device calibration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "export <file>",
			Short: "Write the device calibration to a JSON or YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := setup(cmd.Context(), *configPath)
				if err != nil {
					return err
				}
				return exportProfile(cmd.Context(), cfg, args[0])
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Apply a JSON or YAML profile file to the device",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := setup(cmd.Context(), *configPath)
				if err != nil {
					return err
				}
				return importProfile(cmd.Context(), cfg, args[0])
			},
		},
	)
	return cmd
}

// setup loads configuration and initializes logging from it.
func setup(ctx context.Context, configPath string) (*config.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWith(os.Stderr, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	dev, err := openDevice(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(dev)

	opts, cleanup, err := serviceOptions(ctx, cfg, device.NewSwitch(dev))
	if err != nil {
		return err
	}
	defer cleanup()

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	// Let the first tick attach the device before restoring the last profile.
	if err := svc.Tick(ctx); err != nil {
		log.Warn(ctx, "initial poll failed", logger.Error(err))
	} else if err := svc.RestoreLastProfile(ctx); err != nil {
		log.Warn(ctx, "could not restore last profile", logger.Error(err))
	}

	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, cfg.LiveInterval(), api.WithLiveOrigins(cfg.LiveOrigins...)).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// oneShot runs fn against a service attached to the configured device.
func oneShot(ctx context.Context, cfg *config.Config, fn func(*app.Service) error) error {
	dev, err := openDevice(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(dev)

	svc := app.New(
		app.WithTransport(device.NewSwitch(dev)),
		app.WithLogger(logger.Get().Named("service")),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	tctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := svc.Tick(tctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return fn(svc)
}

func exportProfile(ctx context.Context, cfg *config.Config, path string) error {
	return oneShot(ctx, cfg, func(svc *app.Service) error {
		prof, err := svc.ExportProfile(ctx)
		if err != nil {
			return err
		}
		data, err := profile.Encode(prof, profile.FormatFromPath(path))
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
		logger.Get().Info(ctx, "profile exported", logger.String("file", path), logger.Int("sensors", len(prof.Sensors)))
		return nil
	})
}

func importProfile(ctx context.Context, cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	prof, err := profile.Decode(data, profile.FormatFromPath(path))
	if err != nil {
		return err
	}
	// Stop drains the command queue, so the device holds the profile on return.
	return oneShot(ctx, cfg, func(svc *app.Service) error {
		return svc.ImportProfile(ctx, prof)
	})
}
