package commands

import (
	"context"
	"fmt"

	"github.com/allisson/caresync/internal/app"
	"github.com/allisson/caresync/internal/config"
)

// RunUnlockCheck verifies that the given access code unlocks the session key,
// then locks again without touching any records. An empty access code is
// prompted for interactively.
func RunUnlockCheck(ctx context.Context, accessCode string, io IOTuple) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	code, err := readAccessCode(accessCode, io)
	if err != nil {
		return err
	}

	manager, err := container.SessionManager()
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}
	if err := manager.Unlock(ctx, code); err != nil {
		return fmt.Errorf("access code rejected: %w", err)
	}
	manager.Lock(ctx)

	fmt.Fprintln(io.Writer, "access code verified")
	return nil
}
