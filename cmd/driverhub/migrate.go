package main

import (
	"context"
	"fmt"

	"driverhub/internal/db"
	"driverhub/internal/migration"
	"driverhub/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Run the field migration rules over every stored application",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Print the per-record results",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger := logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		appsRepo := store.NewApplicationRepository(pool)
		reconciler := migration.NewReconciler(migration.NewEngine(), appsRepo, logger)

		report, err := reconciler.Run(ctx)
		if err != nil {
			return fmt.Errorf("reconciliation failed: %w", err)
		}

		fmt.Printf("checked %d, updated %d, skipped %d, failed %d\n",
			report.Checked, report.Updated, report.Skipped, report.Failed)

		if c.Bool("verbose") {
			for _, result := range report.Results {
				if result.Err != nil {
					fmt.Printf("  %s (%s): FAILED %v\n", result.ID, result.Name, result.Err)
					continue
				}
				if len(result.Migrations) == 0 {
					continue
				}
				fmt.Printf("  %s (%s): %v\n", result.ID, result.Name, result.Migrations)
			}
		}

		return nil
	},
}
