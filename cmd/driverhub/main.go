package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "driverhub",
		Usage: "Driver recruitment portal backend",
		Commands: []*cli.Command{
			serveCommand,
			seedCommand,
			migrateCommand,
			nanoidCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("application failed")
	}
}
