package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/internal/quota"
	"github.com/fil-demos/synapse-kit/internal/synapse"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

var uploadCmd = &cli.Command{
	Name:      "upload",
	Usage:     "Upload files to a storage provider, one after another",
	ArgsUsage: "<file> [file...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "quota-address",
			Usage: "charge the uploads to this wallet's quota in the ledger",
		},
		&cli.BoolFlag{
			Name:  "skip-payment-check",
			Usage: "do not check the payment account before uploading",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("at least one file is required", 1)
		}
		ctx := c.Context
		cfg, log := getConfig(c), getLogger(c)

		ch, err := connectChain(ctx, cfg, log, cfg.PrivateKey, "PRIVATE_KEY")
		if err != nil {
			return err
		}
		defer ch.Close()

		if !c.Bool("skip-payment-check") {
			if err := checkPaymentsReady(ctx, ch, cfg.WarmStorageAddress); err != nil {
				return err
			}
		}

		storage, err := openStorage(ctx, cfg, log, ch.key, ch.node.ChainID())
		if err != nil {
			return err
		}

		var ledger *quota.Ledger
		if c.IsSet("quota-address") {
			l, closer, err := openLedger(cfg, log)
			if err != nil {
				return err
			}
			defer closer()
			ledger = l
		}

		for i, path := range c.Args().Slice() {
			fmt.Printf("[%d/%d] %s\n", i+1, c.NArg(), path)

			var res *models.UploadResult
			if ledger != nil {
				res, err = uploadCharged(ctx, ledger, storage, c.String("quota-address"), path, log)
			} else {
				res, err = uploadFile(ctx, storage, path)
			}
			if err != nil {
				return err
			}
			printUpload(res)
		}
		return nil
	},
}

// uploadFile streams path to the provider after checking the size bounds.
func uploadFile(ctx context.Context, storage models.StorageService, path string) (*models.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("cannot open %s: %v", path, err), 1)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if err := synapse.CheckSize(st.Size()); err != nil {
		return nil, cli.Exit(fmt.Sprintf("%s: %v", path, err), 1)
	}

	res, err := storage.Upload(ctx, f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("upload of %s failed: %w", path, err)
	}
	return res, nil
}

// uploadCharged reserves the file size from the quota, uploads, and commits the
// upload to the ledger. The reservation is released when the upload fails.
func uploadCharged(ctx context.Context, ledger *quota.Ledger, storage models.StorageService, address, path string, log *logger.Logger) (*models.UploadResult, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("cannot open %s: %v", path, err), 1)
	}
	if err := synapse.CheckSize(st.Size()); err != nil {
		return nil, cli.Exit(fmt.Sprintf("%s: %v", path, err), 1)
	}

	r, err := ledger.Reserve(ctx, address, st.Size())
	if err != nil {
		if errors.Is(err, quota.ErrInsufficientQuota) || errors.Is(err, quota.ErrUserNotFound) {
			return nil, cli.Exit(fmt.Sprintf("upload of %s blocked: %v; buy more quota with `synapse-kit quota grant`", path, err), 1)
		}
		return nil, err
	}

	res, err := uploadFile(ctx, storage, path)
	if err != nil {
		if rerr := ledger.Release(ctx, r); rerr != nil {
			log.Error("Failed to release quota reservation", "error", rerr, "address", address, "size", r.Size)
		}
		return nil, err
	}

	if err := ledger.Commit(ctx, r, res.PieceCID); err != nil {
		if rerr := ledger.Release(ctx, r); rerr != nil {
			log.Error("Failed to release quota reservation", "error", rerr, "address", address, "size", r.Size)
		}
		return nil, fmt.Errorf("upload stored as %s but not recorded: %w", res.PieceCID, err)
	}
	return res, nil
}

func printUpload(res *models.UploadResult) {
	fmt.Printf("  %s %s\n", color.GreenString("PieceCID:"), res.PieceCID)
	fmt.Printf("  %s %s (%s padded)\n", color.GreenString("Size:"), humanize.IBytes(uint64(res.Size)), humanize.IBytes(synapse.PaddedPieceSize(res.Size)))
	fmt.Printf("  %s %s\n", color.GreenString("Provider:"), res.Provider)
}
