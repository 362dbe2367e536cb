package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goRotate/internal/config"
	"github.com/MrEthical07/goRotate/internal/database"
)

func newMigrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			db, err := database.Open(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			if down {
				err = database.Rollback(ctx, db)
			} else {
				err = database.Migrate(ctx, db)
			}
			if err != nil {
				return err
			}

			version, err := database.Version(ctx, db)
			if err != nil {
				return err
			}
			logger.Info().Int64("version", version).Bool("down", down).Msg("schema migrated")
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration")
	return cmd
}
