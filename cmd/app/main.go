// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/caresync/cmd/app/commands"
	"github.com/allisson/caresync/internal/app"
	"github.com/allisson/caresync/internal/config"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "caresync",
		Usage:   "Local-first encrypted clinical record store with peer sync",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the sync HTTP server",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "generate-key",
						Value: true,
						Usage: "Generate a session key on first boot when no backup exists",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version, cmd.Bool("generate-key"))
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "init",
				Usage: "Initialize the installation state (salt and device fingerprint)",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunInitDevice(ctx, commands.DefaultIO())
				},
			},
			{
				Name:  "unlock-check",
				Usage: "Verify that an access code unlocks the session key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "access-code",
						Aliases: []string{"c"},
						Usage:   "Unlock code (prompted for when omitted)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunUnlockCheck(ctx, cmd.String("access-code"), commands.DefaultIO())
				},
			},
			{
				Name:  "sync",
				Usage: "Run one sync pass against every configured peer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "access-code",
						Aliases: []string{"c"},
						Usage:   "Unlock code (prompted for when omitted)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSync(ctx, cmd.String("access-code"), cmd.String("format"), commands.DefaultIO())
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
