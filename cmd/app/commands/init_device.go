package commands

import (
	"context"
	"fmt"

	"github.com/allisson/caresync/internal/app"
	"github.com/allisson/caresync/internal/config"
	apperrors "github.com/allisson/caresync/internal/errors"
	keysService "github.com/allisson/caresync/internal/keys/service"
)

// RunInitDevice prepares a fresh installation: creates the state directory,
// generates and persists the derivation salt, and assigns the device
// fingerprint. Running it again on an initialized installation is a no-op.
func RunInitDevice(ctx context.Context, io IOTuple) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	repo, err := container.StateRepository()
	if err != nil {
		return fmt.Errorf("failed to initialize state repository: %w", err)
	}

	if _, err := repo.LoadSalt(ctx); err == nil {
		fmt.Fprintln(io.Writer, "installation already initialized")
	} else if apperrors.Is(err, apperrors.ErrNotFound) {
		salt, err := keysService.GenerateSalt()
		if err != nil {
			return err
		}
		if err := repo.SaveSalt(ctx, salt); err != nil {
			return fmt.Errorf("failed to persist salt: %w", err)
		}
		logger.Info("derivation salt created")
	} else {
		return fmt.Errorf("failed to check installation state: %w", err)
	}

	deviceID, err := container.DeviceID()
	if err != nil {
		return err
	}

	fmt.Fprintf(io.Writer, "device id: %s\n", deviceID)
	fmt.Fprintf(io.Writer, "state dir: %s\n", cfg.StateDir)
	return nil
}
