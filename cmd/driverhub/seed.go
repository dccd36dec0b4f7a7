package main

import (
	"context"
	"fmt"

	"driverhub/internal/db"
	"driverhub/internal/seed"
	"driverhub/internal/store"

	"github.com/k0kubun/pp/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with the default portal config",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logrus.Info("Connected to database")

		configRepo := store.NewConfigRepository(pool)

		logrus.Info("Seeding portal config...")
		if err := seed.SeedPortalConfig(ctx, configRepo); err != nil {
			return fmt.Errorf("failed to seed portal config: %w", err)
		}

		pp.Println(seed.DefaultPortalConfig())
		logrus.Info("Portal config seeded successfully")

		return nil
	},
}
