package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/allisson/caresync/internal/app"
	"github.com/allisson/caresync/internal/config"
)

// RunSync unlocks the session with the given access code and runs one sync
// pass against every configured peer, printing the resulting report. An empty
// access code is prompted for interactively.
func RunSync(ctx context.Context, accessCode, format string, io IOTuple) error {
	cfg := config.Load()

	if len(cfg.GetSyncPeers()) == 0 {
		return fmt.Errorf("no sync peers configured, set SYNC_PEERS")
	}

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
		return fmt.Errorf("failed to unlock session: %w", err)
	}
	defer manager.Lock(ctx)

	engine, err := container.SyncEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize sync engine: %w", err)
	}

	report, syncErr := engine.SyncAll(ctx)

	if format == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Fprintln(io.Writer, string(data))
	} else {
		fmt.Fprintf(io.Writer, "pulled:    %d\n", report.Pulled)
		fmt.Fprintf(io.Writer, "pushed:    %d\n", report.Pushed)
		fmt.Fprintf(io.Writer, "merged:    %d\n", report.Merged)
		fmt.Fprintf(io.Writer, "conflicts: %d\n", report.Conflicts)
		fmt.Fprintf(io.Writer, "peers ok:  %v\n", report.PeersSynced)
		if len(report.PeersFailed) > 0 {
			fmt.Fprintf(io.Writer, "peers failed: %v\n", report.PeersFailed)
		}
	}

	return syncErr
}
