package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/fil-demos/synapse-kit/internal/config"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

const (
	metadataConfig = "config"
	metadataLogger = "logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "synapse-kit",
		Usage: "Filecoin warm storage walkthroughs: uploads, payments, quota and alerts",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
			&cli.StringFlag{Name: "rpc-url", Aliases: []string{"r"}, Usage: "Filecoin RPC endpoint"},
			&cli.StringFlag{Name: "ledger-driver", Usage: "Quota ledger backend (sqlite or postgres)"},
			&cli.StringFlag{Name: "ledger-db", Aliases: []string{"d"}, Usage: "SQLite quota ledger path"},
			&cli.StringSliceFlag{Name: "provider", Aliases: []string{"p"}, Usage: "PDP storage provider URL, repeatable"},
		},
		Before: setup,
		After: func(c *cli.Context) error {
			if l, ok := c.App.Metadata[metadataLogger].(*logger.Logger); ok {
				l.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			uploadCmd,
			downloadCmd,
			paymentsCmd,
			datasetCmd,
			quotaCmd,
			routeCmd,
			monitorCmd,
			serveCmd,
		},
	}
}

// setup loads the configuration, applies flag overrides and builds the logger.
func setup(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override with flags if set
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if c.IsSet("rpc-url") {
		cfg.RPCURL = c.String("rpc-url")
	}
	if c.IsSet("ledger-driver") {
		cfg.LedgerDriver = c.String("ledger-driver")
	}
	if c.IsSet("ledger-db") {
		cfg.LedgerDBPath = c.String("ledger-db")
	}
	if c.IsSet("provider") {
		cfg.ProviderURLs = c.StringSlice("provider")
	}

	// Initialize logger
	l, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[metadataConfig] = cfg
	c.App.Metadata[metadataLogger] = l
	return nil
}

func getConfig(c *cli.Context) *config.Config {
	return c.App.Metadata[metadataConfig].(*config.Config)
}

func getLogger(c *cli.Context) *logger.Logger {
	return c.App.Metadata[metadataLogger].(*logger.Logger)
}
