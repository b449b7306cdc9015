package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/vigilkey/vigil-backend/api/clients"
	"github.com/vigilkey/vigil-backend/cmd/flags"
)

var cronFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "server-addr",
		Value:   "http://127.0.0.1:8080",
		Usage:   "base URL of the vigil server",
		EnvVars: []string{"VIGIL_SERVER_ADDR"},
	},
	flags.CronSecretFlag,
	flags.LogJSONFlag,
	flags.LogDebugFlag,
	flags.LogUIDFlag,
	flags.LogServiceFlag,
}

func main() {
	app := &cli.App{
		Name:  "vigil-cron",
		Usage: "Trigger one dead-man's switch sweep run",
		Flags: cronFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			client := &clients.SwitchClient{
				ServerAddr: cCtx.String("server-addr"),
				CronSecret: cCtx.String(flags.CronSecretFlag.Name),
			}

			result, err := client.Process()
			if err != nil {
				logger.Error("Sweep failed", "err", err)
				return err
			}

			logger.Info("Sweep complete",
				"total", result.Total,
				"processed", result.Processed,
				"errors", len(result.Errors))
			for _, sweepErr := range result.Errors {
				logger.Warn("Sweep error", "detail", sweepErr)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
