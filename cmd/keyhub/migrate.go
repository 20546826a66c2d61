package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyhub-dev/keyhub/internal/bootstrap"
	"github.com/keyhub-dev/keyhub/internal/config"
	"github.com/keyhub-dev/keyhub/internal/migrations"
)

func init() {
	var migrateCmd = &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Database migration management",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := bootstrap.OpenDatabase(context.Background(), cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()

			action := "up"
			if len(args) > 0 {
				action = args[0]
			}

			switch action {
			case "up":
				return migrations.Up(db.RawDB(), cfg.DB.Driver)
			case "down":
				return migrations.Down(db.RawDB(), cfg.DB.Driver)
			case "status":
				return migrations.Status(db.RawDB(), cfg.DB.Driver)
			default:
				return fmt.Errorf("unknown migrate action %q", action)
			}
		},
	}

	rootCmd.AddCommand(migrateCmd)
}
