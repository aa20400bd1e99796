package main

import (
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

func newMigrateCmd(cfgPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply app database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			sqlDB, err := goose.OpenDBWithDriver("postgres", cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = sqlDB.Close() }()

			ctx := cmd.Context()
			switch action {
			case "up":
				err = goose.UpContext(ctx, sqlDB, dir)
			case "down":
				err = goose.DownContext(ctx, sqlDB, dir)
			case "status":
				err = goose.StatusContext(ctx, sqlDB, dir)
			default:
				return fmt.Errorf("unknown migrate action %q", action)
			}
			if err != nil {
				log.Error("migrations failed", "action", action, "err", err)
				return err
			}
			log.Info("migrations done", "action", action)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "migrations directory")
	return cmd
}
