package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/internal/quota"
)

var addressFlag = &cli.StringFlag{
	Name:     "address",
	Aliases:  []string{"a"},
	Usage:    "wallet address of the user",
	Required: true,
}

var quotaCmd = &cli.Command{
	Name:  "quota",
	Usage: "Track paid storage quota in the local ledger",
	Subcommands: []*cli.Command{
		quotaGrantCmd,
		quotaStatusCmd,
		quotaCheckCmd,
		quotaUploadCmd,
		quotaTierCmd,
	},
}

var quotaGrantCmd = &cli.Command{
	Name:  "grant",
	Usage: "Credit a payment as storage quota ($1 buys 100 MiB)",
	Flags: []cli.Flag{
		addressFlag,
		&cli.Float64Flag{Name: "amount-usd", Usage: "amount paid in USD", Required: true},
		&cli.StringFlag{Name: "tx-hash", Usage: "payment transaction hash", Required: true},
		&cli.StringFlag{Name: "chain", Value: "filecoin", Usage: "chain the payment was made on"},
		&cli.StringFlag{Name: "email", Usage: "contact email of the user"},
	},
	Action: func(c *cli.Context) error {
		cfg, log := getConfig(c), getLogger(c)
		ledger, closer, err := openLedger(cfg, log)
		if err != nil {
			return err
		}
		defer closer()

		grant, err := ledger.GrantQuota(c.Context, models.PaymentRequest{
			Address:   c.String("address"),
			Chain:     c.String("chain"),
			Email:     c.String("email"),
			AmountUSD: c.Float64("amount-usd"),
			TxHash:    c.String("tx-hash"),
		})
		if err != nil {
			if errors.Is(err, quota.ErrDuplicatePayment) {
				return cli.Exit(fmt.Sprintf("payment %s was already credited, quota unchanged", c.String("tx-hash")), 1)
			}
			return err
		}

		fmt.Printf("%s %s\n", color.GreenString("Granted"), humanize.IBytes(uint64(grant.GrantedBytes)))
		printUser(grant.User)
		return nil
	},
}

var quotaStatusCmd = &cli.Command{
	Name:  "status",
	Usage: "Show a user's quota",
	Flags: []cli.Flag{addressFlag},
	Action: func(c *cli.Context) error {
		cfg, log := getConfig(c), getLogger(c)
		ledger, closer, err := openLedger(cfg, log)
		if err != nil {
			return err
		}
		defer closer()

		st, err := ledger.Status(c.Context, c.String("address"))
		if err != nil {
			if errors.Is(err, quota.ErrUserNotFound) {
				return cli.Exit(fmt.Sprintf("no payments recorded for %s", c.String("address")), 1)
			}
			return err
		}

		fmt.Printf("Address:   %s (%s)\n", st.Address, st.Chain)
		fmt.Printf("Tier:      %s\n", st.Tier)
		fmt.Printf("Quota:     %s\n", humanize.IBytes(uint64(st.QuotaBytes)))
		fmt.Printf("Used:      %s\n", humanize.IBytes(uint64(st.UsedBytes)))
		fmt.Printf("Remaining: %s\n", humanize.IBytes(uint64(max(st.RemainingBytes, 0))))
		fmt.Printf("Payments:  %d\n", st.Payments)
		fmt.Printf("Uploads:   %d\n", st.Uploads)
		return nil
	},
}

var quotaCheckCmd = &cli.Command{
	Name:  "check",
	Usage: "Check whether the remaining quota covers an upload",
	Flags: []cli.Flag{
		addressFlag,
		&cli.Int64Flag{Name: "size", Usage: "upload size in bytes", Required: true},
	},
	Action: func(c *cli.Context) error {
		cfg, log := getConfig(c), getLogger(c)
		ledger, closer, err := openLedger(cfg, log)
		if err != nil {
			return err
		}
		defer closer()

		ok, err := ledger.CanUpload(c.Context, c.String("address"), c.Int64("size"))
		if err != nil {
			return err
		}
		if !ok {
			return cli.Exit(fmt.Sprintf("insufficient quota for %s: buy more quota with `synapse-kit quota grant`", humanize.IBytes(uint64(c.Int64("size")))), 1)
		}
		fmt.Println(color.GreenString("Upload allowed"))
		return nil
	},
}

var quotaUploadCmd = &cli.Command{
	Name:  "upload",
	Usage: "Record a completed upload against a user's quota",
	Flags: []cli.Flag{
		addressFlag,
		&cli.StringFlag{Name: "cid", Usage: "piece cid of the upload", Required: true},
		&cli.Int64Flag{Name: "size", Usage: "upload size in bytes", Required: true},
		&cli.BoolFlag{Name: "force", Usage: "record even when the quota does not cover the upload"},
	},
	Action: func(c *cli.Context) error {
		cfg, log := getConfig(c), getLogger(c)
		ledger, closer, err := openLedger(cfg, log)
		if err != nil {
			return err
		}
		defer closer()

		ctx := c.Context
		address, size := c.String("address"), c.Int64("size")
		if !c.Bool("force") {
			ok, err := ledger.CanUpload(ctx, address, size)
			if err != nil {
				return err
			}
			if !ok {
				return cli.Exit(fmt.Sprintf("upload blocked: %s exceeds the remaining quota", humanize.IBytes(uint64(size))), 1)
			}
		}

		user, err := ledger.RecordUpload(ctx, address, c.String("cid"), size)
		if err != nil {
			if errors.Is(err, quota.ErrUserNotFound) {
				return cli.Exit(fmt.Sprintf("no payments recorded for %s", address), 1)
			}
			return err
		}
		printUser(user)
		return nil
	},
}

var quotaTierCmd = &cli.Command{
	Name:  "tier",
	Usage: "Change a user's plan (free, pro or enterprise)",
	Flags: []cli.Flag{
		addressFlag,
		&cli.StringFlag{Name: "tier", Usage: "new tier", Required: true},
	},
	Action: func(c *cli.Context) error {
		cfg, log := getConfig(c), getLogger(c)
		ledger, closer, err := openLedger(cfg, log)
		if err != nil {
			return err
		}
		defer closer()

		if err := ledger.SetTier(c.Context, c.String("address"), models.Tier(c.String("tier"))); err != nil {
			if errors.Is(err, quota.ErrUserNotFound) {
				return cli.Exit(fmt.Sprintf("no payments recorded for %s", c.String("address")), 1)
			}
			return cli.Exit(err.Error(), 1)
		}
		fmt.Printf("Tier of %s set to %s\n", c.String("address"), c.String("tier"))
		return nil
	},
}

func printUser(u *models.User) {
	fmt.Printf("Quota:     %s\n", humanize.IBytes(uint64(u.QuotaBytes)))
	fmt.Printf("Used:      %s\n", humanize.IBytes(uint64(u.UsedBytes)))
	fmt.Printf("Remaining: %s\n", humanize.IBytes(uint64(max(u.RemainingBytes(), 0))))
}
