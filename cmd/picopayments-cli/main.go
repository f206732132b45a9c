package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/picopayments/picopayments-client/internal/build"
	"github.com/picopayments/picopayments-client/internal/config"
	"github.com/picopayments/picopayments-client/internal/logger"
)

func main() {
	cfg, rest, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Println("Could not load config: " + err.Error())
		os.Exit(1)
	}
	// stdout belongs to the command output
	logger.Quiet(cfg.Log)

	app := cli.NewApp()
	app.Name = "picopayments-cli"
	app.Usage = "Micropayment channel client for picopayments hubs"
	app.Version = build.GetVersion()
	app.Description = "Global options (--datadir, --network, --hub.url, --chain.backend, ...) are read before the command\n" +
		"and can also be set in picopayments.toml inside the data directory."
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "Prints the time spent in hub calls after the command",
		},
	}
	app.Metadata = map[string]any{configKey: cfg}
	app.After = shutdown
	app.Commands = []*cli.Command{
		versionCommand,
		hubStatusCommand,
		balancesCommand,
		blockSendCommand,

		connectCommand,
		queuePaymentCommand,
		statusCommand,
		syncCommand,
		closeCommand,
		cullCommand,

		historyCommand,
	}

	if err := app.Run(append([]string{os.Args[0]}, rest...)); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
