package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var downloadCmd = &cli.Command{
	Name:      "download",
	Usage:     "Download a piece and verify its commitment",
	ArgsUsage: "<piece cid>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "write the piece to this file",
		},
		&cli.BoolFlag{
			Name:  "no-record",
			Usage: "do not record the retrieval in the ledger egress table",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one piece cid", 1)
		}
		ctx := c.Context
		cfg, log := getConfig(c), getLogger(c)
		pieceCID := c.Args().First()

		storage, err := openStorage(ctx, cfg, log, nil, 0)
		if err != nil {
			return err
		}

		start := time.Now()
		data, err := storage.Download(ctx, pieceCID)
		if err != nil {
			return fmt.Errorf("download of %s failed: %w", pieceCID, err)
		}
		latency := time.Since(start)

		fmt.Printf("%s %s (%s in %s)\n", color.GreenString("Downloaded"), pieceCID, humanize.IBytes(uint64(len(data))), latency.Round(time.Millisecond))

		if out := c.String("output"); out != "" {
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Printf("Saved to %s\n", out)
		}

		if c.Bool("no-record") {
			return nil
		}
		ledger, closer, err := openLedger(cfg, log)
		if err != nil {
			return err
		}
		defer closer()
		return ledger.RecordDownload(ctx, pieceCID, int64(len(data)), latency)
	},
}
