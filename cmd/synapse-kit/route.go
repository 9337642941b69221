package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/fil-demos/synapse-kit/internal/metrics"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/internal/quota"
	"github.com/fil-demos/synapse-kit/internal/routing"
)

var routeCmd = &cli.Command{
	Name:  "route",
	Usage: "Decide who pays for an upload: the sponsor treasury or the user's wallet",
	Flags: []cli.Flag{
		addressFlag,
		&cli.Int64Flag{Name: "size", Usage: "upload size in bytes"},
		&cli.StringFlag{Name: "execute", Usage: "upload this file along the chosen path"},
		&cli.BoolFlag{Name: "wallet-connected", Usage: "the user has a wallet connected (default: PRIVATE_KEY is set)"},
	},
	Action: func(c *cli.Context) error {
		ctx := c.Context
		cfg, log := getConfig(c), getLogger(c)
		address, path := c.String("address"), c.String("execute")

		size := c.Int64("size")
		if path != "" {
			st, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("cannot open %s: %v", path, err), 1)
			}
			size = st.Size()
		}
		if size <= 0 {
			return cli.Exit("--size or --execute is required", 1)
		}

		walletConnected := cfg.PrivateKey != ""
		if c.IsSet("wallet-connected") {
			walletConnected = c.Bool("wallet-connected")
		}

		ledger, closer, err := openLedger(cfg, log)
		if err != nil {
			return err
		}
		defer closer()

		user, err := ledger.GetUser(ctx, address)
		if err != nil && !errors.Is(err, quota.ErrUserNotFound) {
			return err
		}

		disposition := routing.Decide(routing.AccountFromUser(user, walletConnected), size)
		metrics.RouteDecisions.WithLabelValues(string(disposition)).Inc()
		printDisposition(disposition, size)

		if disposition == routing.Blocked {
			return cli.Exit(disposition.Hint(), 1)
		}
		if path == "" {
			return nil
		}

		var res *models.UploadResult
		switch disposition {
		case routing.Sponsored:
			ch, err := connectChain(ctx, cfg, log, cfg.TreasuryPrivateKey, "TREASURY_PRIVATE_KEY")
			if err != nil {
				return err
			}
			defer ch.Close()
			if err := checkPaymentsReady(ctx, ch, cfg.WarmStorageAddress); err != nil {
				return err
			}
			storage, err := openStorage(ctx, cfg, log, ch.key, ch.node.ChainID())
			if err != nil {
				return err
			}
			res, err = uploadCharged(ctx, ledger, storage, address, path, log)
			if err != nil {
				return err
			}
		case routing.UserPaid:
			ch, err := connectChain(ctx, cfg, log, cfg.PrivateKey, "PRIVATE_KEY")
			if err != nil {
				return err
			}
			defer ch.Close()
			if err := checkPaymentsReady(ctx, ch, cfg.WarmStorageAddress); err != nil {
				return err
			}
			storage, err := openStorage(ctx, cfg, log, ch.key, ch.node.ChainID())
			if err != nil {
				return err
			}
			res, err = uploadFile(ctx, storage, path)
			if err != nil {
				return err
			}
		}
		printUpload(res)
		return nil
	},
}

func printDisposition(d routing.Disposition, size int64) {
	label := color.GreenString(string(d))
	switch d {
	case routing.UserPaid:
		label = color.YellowString(string(d))
	case routing.Blocked:
		label = color.RedString(string(d))
	}
	fmt.Printf("%s for %s: %s\n", label, humanize.IBytes(uint64(size)), d.Hint())
}
