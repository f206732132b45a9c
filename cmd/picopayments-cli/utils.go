package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"
)

var yellowBold = color.New(color.FgHiYellow, color.Bold)

func prompt(message string) bool {
	confirm := false
	if err := survey.AskOne(&survey.Confirm{Message: message}, &confirm); err != nil {
		fmt.Println("Could not read input: " + err.Error())
		os.Exit(1)
	}
	return confirm
}

// confirmed asks for confirmation unless --yes is given.
func confirmed(ctx *cli.Context, message string) bool {
	return ctx.Bool("yes") || prompt(message)
}

func printJson(resp any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(resp); err != nil {
		fmt.Println("Could not encode response: " + err.Error())
	}
}

func newTable(columns ...any) table.Table {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()
	return table.New(columns...).WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
}

func parseUint(value string, name string) (uint64, error) {
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse %s: %w", name, err)
	}
	return parsed, nil
}

func requireNArgs(n int, action cli.ActionFunc) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		if ctx.NArg() != n {
			return cli.ShowSubcommandHelp(ctx)
		}
		return action(ctx)
	}
}

// withSpinner shows a spinner while run is blocking, unless the output is json.
func withSpinner[T any](ctx *cli.Context, message string, run func() (T, error)) (T, error) {
	if ctx.Bool("json") {
		return run()
	}
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Start()
	defer s.Stop()
	return run()
}

func formatTtl(ttl *uint64) string {
	if ttl == nil {
		return "-"
	}
	return strconv.FormatUint(*ttl, 10)
}

func formatDate(timestamp time.Time) string {
	return timestamp.Format(time.DateTime)
}
