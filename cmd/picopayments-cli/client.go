package main

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/picopayments/picopayments-client/internal/client"
	"github.com/picopayments/picopayments-client/internal/config"
)

const (
	configKey = "config"
	clientKey = "client"
)

// getClient initializes the client on first use so commands like help do not
// create a wallet or database.
func getClient(ctx *cli.Context) *client.Client {
	if existing, ok := ctx.App.Metadata[clientKey].(*client.Client); ok {
		return existing
	}
	cfg := ctx.App.Metadata[configKey].(*config.Config)
	picopayments, err := client.Init(cfg)
	if err != nil {
		fmt.Println("Could not initialize client: " + err.Error())
		os.Exit(1)
	}
	ctx.App.Metadata[clientKey] = picopayments
	return picopayments
}

func shutdown(ctx *cli.Context) error {
	picopayments, ok := ctx.App.Metadata[clientKey].(*client.Client)
	if !ok {
		return nil
	}
	if ctx.Bool("metrics") {
		if err := printCallTimes(picopayments); err != nil {
			return err
		}
	}
	picopayments.Shutdown()
	return nil
}

func printCallTimes(picopayments *client.Client) error {
	times, err := picopayments.Hub.Metrics.CallTimes()
	if err != nil {
		return err
	}
	tbl := newTable("Method", "Time")
	for _, method := range slices.Sorted(maps.Keys(times)) {
		tbl.AddRow(method, times[method])
	}
	fmt.Fprintln(os.Stderr)
	tbl.WithWriter(os.Stderr).Print()
	return nil
}
