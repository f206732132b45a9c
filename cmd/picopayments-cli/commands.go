package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/picopayments/picopayments-client/internal/build"
	"github.com/picopayments/picopayments-client/internal/client"
	"github.com/picopayments/picopayments-client/internal/connection"
	"github.com/picopayments/picopayments-client/internal/database"
)

var jsonFlag = &cli.BoolFlag{
	Name:  "json",
	Usage: "Prints the output as JSON",
}

var yesFlag = &cli.BoolFlag{
	Name:    "yes",
	Aliases: []string{"y"},
	Usage:   "Skips the confirmation prompt",
}

var assetFlag = &cli.StringFlag{
	Name:  "asset",
	Usage: "Limits the output to an asset",
}

var versionCommand = &cli.Command{
	Name:     "version",
	Category: "Info",
	Usage:    "Shows the version of the client and the hub",
	Action:   version,
}

func version(ctx *cli.Context) error {
	fmt.Println("Client: " + build.GetVersion())

	picopayments := getClient(ctx)
	hubVersion, err := picopayments.Hub.Version()
	if err != nil {
		return err
	}
	fmt.Println("Hub: " + hubVersion)
	if err := picopayments.CheckHubVersion(); err != nil {
		_, _ = yellowBold.Println(err.Error())
	}
	return nil
}

var hubStatusCommand = &cli.Command{
	Name:     "hubstatus",
	Category: "Info",
	Usage:    "Shows the open connections, terms, funding addresses and liquidity of the hub",
	Action:   hubStatus,
	Flags:    []cli.Flag{assetFlag},
}

func hubStatus(ctx *cli.Context) error {
	status, err := getClient(ctx).HubStatus(ctx.String("asset"))
	if err != nil {
		return err
	}
	printJson(status)
	return nil
}

var balancesCommand = &cli.Command{
	Name:     "balances",
	Category: "Wallet",
	Usage:    "Shows the confirmed balances of the wallet or an address",
	Action:   balances,
	Flags: []cli.Flag{
		jsonFlag,
		assetFlag,
		&cli.StringFlag{
			Name:  "address",
			Usage: "Address to check instead of the wallet",
		},
	},
}

func balances(ctx *cli.Context) error {
	result, err := getClient(ctx).Balances(ctx.String("asset"), ctx.String("address"))
	if err != nil {
		return err
	}
	if ctx.Bool("json") {
		printJson(result)
		return nil
	}
	printBalances(result)
	return nil
}

func printBalances(balances map[string]uint64) {
	tbl := newTable("Asset", "Balance")
	for _, asset := range slices.Sorted(maps.Keys(balances)) {
		tbl.AddRow(asset, balances[asset])
	}
	tbl.Print()
}

var blockSendCommand = &cli.Command{
	Name:      "blocksend",
	Category:  "Wallet",
	Usage:     "Sends funds of the wallet with an on chain transaction",
	ArgsUsage: "asset destination quantity",
	Description: "Sends the quantity of asset to the destination address and prints the txid.\n" +
		"\nExamples\n" +
		"Send 1000 XCP along with 10000 satoshis:\n" +
		"> picopayments-cli blocksend --extra-btc 10000 XCP mhzPMMC3hkQUL9HUYY13s2NehEJXCA923Z 1000",
	Action: requireNArgs(3, blockSend),
	Flags: []cli.Flag{
		yesFlag,
		&cli.Uint64Flag{
			Name:  "extra-btc",
			Usage: "Satoshis to send along with the asset",
		},
	},
}

func blockSend(ctx *cli.Context) error {
	quantity, err := parseUint(ctx.Args().Get(2), "quantity")
	if err != nil {
		return err
	}
	request := client.BlockSendRequest{
		Asset:       ctx.Args().Get(0),
		Destination: ctx.Args().Get(1),
		Quantity:    quantity,
		ExtraBtc:    ctx.Uint64("extra-btc"),
	}
	if !confirmed(ctx, fmt.Sprintf("Send %d %s to %s?", request.Quantity, request.Asset, request.Destination)) {
		return nil
	}
	txId, err := getClient(ctx).BlockSend(request)
	if err != nil {
		return err
	}
	fmt.Println(txId)
	return nil
}

var connectCommand = &cli.Command{
	Name:      "connect",
	Category:  "Connections",
	Usage:     "Opens a new connection with the hub",
	ArgsUsage: "asset quantity",
	Description: "Publishes a deposit of quantity from the wallet. The quantity is the most that can be sent through the connection.\n" +
		"\nExamples\n" +
		"Open a connection with 10000 XCP that expires after 2048 blocks:\n" +
		"> picopayments-cli connect --expire-time 2048 XCP 10000",
	Action: requireNArgs(2, connect),
	Flags: []cli.Flag{
		jsonFlag,
		yesFlag,
		&cli.UintFlag{
			Name:  "expire-time",
			Value: connection.DefaultExpireTime,
			Usage: "Blocks after which the deposit expires and can be recovered",
		},
		&cli.UintFlag{
			Name:  "delay-time",
			Value: connection.DefaultDelayTime,
			Usage: "Blocks the hub has to wait before a payout, protects against published revoked commits",
		},
	},
}

func connect(ctx *cli.Context) error {
	quantity, err := parseUint(ctx.Args().Get(1), "quantity")
	if err != nil {
		return err
	}
	params := connection.ConnectParams{
		Asset:      ctx.Args().Get(0),
		Quantity:   quantity,
		ExpireTime: uint32(ctx.Uint("expire-time")),
		DelayTime:  uint32(ctx.Uint("delay-time")),
	}
	if !confirmed(ctx, fmt.Sprintf("Deposit %d %s into a new connection?", params.Quantity, params.Asset)) {
		return nil
	}

	picopayments := getClient(ctx)
	result, err := withSpinner(ctx, "Opening connection...", func() (*client.ConnectResult, error) {
		return picopayments.Connect(params)
	})
	if err != nil {
		return err
	}
	if ctx.Bool("json") {
		printJson(result)
		return nil
	}
	fmt.Println("Handle: " + result.Handle)
	fmt.Println("Deposit: " + result.DepositTxId)
	return nil
}

var queuePaymentCommand = &cli.Command{
	Name:      "queuepayment",
	Category:  "Connections",
	Usage:     "Queues a payment that is sent with the next sync",
	ArgsUsage: "source destination quantity",
	Description: "Queues a payment of quantity from the source connection to the destination handle and prints its token.\n" +
		"The payee receives the token along with the payment.",
	Action: requireNArgs(3, queuePayment),
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "token",
			Usage: "Token for the payee, a random one is generated by default",
		},
	},
}

func queuePayment(ctx *cli.Context) error {
	quantity, err := parseUint(ctx.Args().Get(2), "quantity")
	if err != nil {
		return err
	}
	token, err := getClient(ctx).QueuePayment(ctx.Args().Get(0), ctx.Args().Get(1), quantity, ctx.String("token"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

var statusCommand = &cli.Command{
	Name:      "status",
	Category:  "Connections",
	Usage:     "Shows the status of the connections and the wallet",
	ArgsUsage: "[handle]",
	Action:    status,
	Flags: []cli.Flag{
		jsonFlag,
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Includes both channel directions and the stored connection data, implies --json",
		},
	},
}

func status(ctx *cli.Context) error {
	verbose := ctx.Bool("verbose")
	result, err := getClient(ctx).Status(ctx.Args().First(), verbose)
	if err != nil {
		return err
	}
	if ctx.Bool("json") || verbose {
		printJson(result)
		return nil
	}

	tbl := newTable("Handle", "Asset", "Balance", "TTL", "Status")
	for _, handle := range slices.Sorted(maps.Keys(result.Connections)) {
		conn := result.Connections[handle]
		tbl.AddRow(handle, conn.Asset, conn.Balance, formatTtl(conn.Ttl), conn.Status)
	}
	if _, err := yellowBold.Println("Connections"); err != nil {
		return err
	}
	tbl.Print()

	fmt.Println()
	if _, err := yellowBold.Println("Wallet " + result.Wallet.Address); err != nil {
		return err
	}
	printBalances(result.Wallet.Balances)
	return nil
}

var syncCommand = &cli.Command{
	Name:      "sync",
	Category:  "Connections",
	Usage:     "Sends queued payments and recovers funds of closed connections",
	ArgsUsage: "[handle]",
	Description: "Syncs open connections to send and receive payments and recovers the funds of closed connections.\n" +
		"Every synced connection is charged the sync fee of the hub terms.",
	Action: sync,
	Flags:  []cli.Flag{jsonFlag},
}

func sync(ctx *cli.Context) error {
	picopayments := getClient(ctx)
	results, syncErr := withSpinner(ctx, "Syncing...", func() (map[string]*client.SyncResult, error) {
		return picopayments.Sync(ctx.Args().First())
	})
	if results != nil {
		if ctx.Bool("json") {
			printJson(results)
		} else {
			for _, handle := range slices.Sorted(maps.Keys(results)) {
				result := results[handle]
				if _, err := yellowBold.Println(handle); err != nil {
					return err
				}
				for _, txId := range result.TxIds {
					fmt.Println("Published " + txId)
				}
				for _, payment := range result.ReceivedPayments {
					fmt.Printf("Received %d from %s (%s)\n", payment.Amount, payment.PayerHandle, payment.Token)
				}
			}
		}
	}
	return syncErr
}

var closeCommand = &cli.Command{
	Name:      "close",
	Category:  "Connections",
	Usage:     "Closes a connection and settles it on chain",
	ArgsUsage: "handle",
	Description: "Publishes the latest commit of the hub and asks the hub to close.\n" +
		"Funds are recovered by the following syncs.",
	Action: requireNArgs(1, closeConnection),
	Flags:  []cli.Flag{yesFlag},
}

func closeConnection(ctx *cli.Context) error {
	handle := ctx.Args().First()
	if !confirmed(ctx, "Close connection "+handle+"?") {
		return nil
	}
	txId, err := getClient(ctx).Close(handle)
	if err != nil {
		return err
	}
	if txId == "" {
		fmt.Println("Closed without a commit, nothing was received from the hub")
	} else {
		fmt.Println("Published commit " + txId)
	}
	return nil
}

var cullCommand = &cli.Command{
	Name:     "cull",
	Category: "Connections",
	Usage:    "Removes closed connections whose funds are fully recovered",
	Action:   cull,
}

func cull(ctx *cli.Context) error {
	culled, err := getClient(ctx).Cull()
	for _, handle := range culled {
		fmt.Println("Removed " + handle)
	}
	return err
}

var historyCommand = &cli.Command{
	Name:     "history",
	Category: "Info",
	Usage:    "Shows the transaction history",
	Action:   history,
	Flags: []cli.Flag{
		jsonFlag,
		&cli.BoolFlag{
			Name:  "csv",
			Usage: "Prints the history as CSV",
		},
		&cli.StringFlag{
			Name:  "handle",
			Usage: "Limits the history to a connection",
		},
		&cli.StringFlag{
			Name:  "action",
			Usage: "Limits the history to an action (blocksend, connect, send, receive, close, recover, cull)",
		},
		&cli.DurationFlag{
			Name:  "since",
			Usage: "Only shows entries newer than the duration, e.g. 24h",
		},
		&cli.Uint64Flag{
			Name:  "limit",
			Usage: "Maximum number of entries",
		},
	},
}

func historyQuery(ctx *cli.Context) (database.HistoryQuery, error) {
	var query database.HistoryQuery
	if ctx.IsSet("handle") {
		handle := ctx.String("handle")
		query.Handle = &handle
	}
	if ctx.IsSet("action") {
		action := database.HistoryAction(ctx.String("action"))
		if !slices.Contains(database.HistoryActions, action) {
			return query, errors.New("invalid action: " + string(action))
		}
		query.Action = &action
	}
	if ctx.IsSet("since") {
		query.Since = time.Now().Add(-ctx.Duration("since"))
	}
	if ctx.IsSet("limit") {
		limit := ctx.Uint64("limit")
		query.Limit = &limit
	}
	return query, nil
}

func history(ctx *cli.Context) error {
	query, err := historyQuery(ctx)
	if err != nil {
		return err
	}
	picopayments := getClient(ctx)
	if ctx.Bool("csv") {
		return picopayments.ExportHistory(os.Stdout, query)
	}

	entries, err := picopayments.History(query)
	if err != nil {
		return err
	}
	if ctx.Bool("json") {
		printJson(entries)
		return nil
	}
	tbl := newTable("Time", "Handle", "Action", "Id", "Fee", "Quantity", "Asset", "Destination")
	for _, entry := range entries {
		tbl.AddRow(formatDate(entry.Timestamp), entry.Handle, entry.Action, entry.Id, entry.Fee, entry.Quantity, entry.Asset, entry.Destination)
	}
	tbl.Print()
	return nil
}
