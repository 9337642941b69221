package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var datasetCmd = &cli.Command{
	Name:  "dataset",
	Usage: "Manage data sets on the storage provider",
	Subcommands: []*cli.Command{
		datasetCreateCmd,
	},
}

var datasetCreateCmd = &cli.Command{
	Name:  "create",
	Usage: "Create a data set with metadata",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "metadata",
			Aliases: []string{"m"},
			Usage:   "metadata entry as key=value, repeatable",
		},
		&cli.BoolFlag{
			Name:  "with-cdn",
			Usage: "request CDN retrieval for the data set",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := c.Context
		cfg, log := getConfig(c), getLogger(c)

		metadata, err := parseMetadata(c.StringSlice("metadata"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if c.Bool("with-cdn") {
			metadata["withCDN"] = ""
		}
		if err := cfg.ValidateDataSet(); err != nil {
			return cli.Exit(err.Error(), 1)
		}

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

		fmt.Println("Creating data set, waiting for the provider to confirm...")
		ds, err := storage.CreateDataSet(ctx, metadata)
		if err != nil {
			return fmt.Errorf("data set creation failed: %w", err)
		}

		fmt.Printf("%s %d\n", color.GreenString("Data set id:"), ds.ID)
		fmt.Printf("Transaction: %s\n", ds.TxHash)
		fmt.Printf("Provider:    %s\n", ds.Provider)
		keys := make([]string, 0, len(ds.Metadata))
		for k := range ds.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s=%s\n", k, ds.Metadata[k])
		}
		return nil
	},
}

// parseMetadata turns key=value pairs into a map. Keys must be unique.
func parseMetadata(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", p)
		}
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("duplicate metadata key %q", k)
		}
		out[k] = v
	}
	return out, nil
}
