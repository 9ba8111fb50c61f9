package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/allisson/caresync/internal/app"
	"github.com/allisson/caresync/internal/config"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

// RunServer starts the sync HTTP server with graceful shutdown support.
// Loads configuration, initializes the DI container, restores the session key
// from the wrapped backup, and starts the HTTP and metrics servers plus the
// background sync loop. Blocks until receiving SIGINT/SIGTERM or encountering
// a fatal error.
func RunServer(ctx context.Context, version string, generateKey bool) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get HTTP server from container (this initializes all dependencies)
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	// Get Metrics server from container
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Bring the session key up before serving: restore from the wrapped backup,
	// generating a fresh key on first boot. A failed restore leaves the session
	// degraded; the server still starts and recovers through retry.
	if err := unlockSession(ctx, container, generateKey); err != nil {
		logger.Warn("session key not available yet", slog.String("error", err.Error()))
	}

	// Start servers in goroutines
	serverErr := make(chan error, 2)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Start the background sync loop when peers are configured
	if cfg.SyncInterval > 0 && len(cfg.GetSyncPeers()) > 0 {
		engine, err := container.SyncEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize sync engine: %w", err)
		}
		go func() {
			if err := engine.Start(ctx, cfg.SyncInterval); err != nil {
				logger.Error("sync loop stopped", slog.Any("error", err))
			}
		}()
	}

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		var shutdownErrors []error

		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}

		if len(shutdownErrors) > 0 {
			return errors.Join(shutdownErrors...)
		}
	case err := <-serverErr:
		// Attempt graceful shutdown if one server fails
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		var shutdownErrors []error
		shutdownErrors = append(shutdownErrors, err)

		if server != nil {
			if shutErr := server.Shutdown(shutdownCtx); shutErr != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", shutErr))
			}
		}

		if metricsServer != nil {
			if shutErr := metricsServer.Shutdown(shutdownCtx); shutErr != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", shutErr))
			}
		}

		return errors.Join(shutdownErrors...)
	}

	return nil
}

// unlockSession restores the session key from the wrapped backup. On a fresh
// installation with no backup, a random key is generated when generateKey is
// set; installations unlocked by access code keep their backup across
// restarts, so this path only runs once.
func unlockSession(ctx context.Context, container *app.Container, generateKey bool) error {
	manager, err := container.SessionManager()
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	vault, err := container.DeviceVault()
	if err != nil {
		return fmt.Errorf("failed to initialize device vault: %w", err)
	}

	hasBackup, err := vault.HasBackup(ctx)
	if err != nil {
		return err
	}
	if !hasBackup {
		if !generateKey {
			return keysDomain.ErrBackupNotFound
		}
		return manager.UnlockGenerated(ctx)
	}

	return manager.Restore(ctx)
}
