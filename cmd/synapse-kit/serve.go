package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fil-demos/synapse-kit/internal/http_api"
	"github.com/fil-demos/synapse-kit/internal/providers"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Serve the quota and routing HTTP API with Prometheus metrics",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "port", Usage: "listen port (default API_PORT)"},
		&cli.DurationFlag{Name: "provider-refresh", Value: 5 * time.Minute, Usage: "how often to re-check storage provider health"},
	},
	Action: func(c *cli.Context) error {
		cfg, log := getConfig(c), getLogger(c)
		if c.IsSet("port") {
			cfg.APIPort = c.Int("port")
		}
		if c.Duration("provider-refresh") <= 0 {
			return cli.Exit("--provider-refresh must be positive", 1)
		}

		ledger, closer, err := openLedger(cfg, log)
		if err != nil {
			return err
		}
		defer closer()

		var catalog http_api.ProviderCatalog
		if len(cfg.ProviderURLs) > 0 {
			pc := providers.NewCatalog(log, cfg.ProviderURLs)
			if err := pc.Refresh(c.Context); err != nil {
				log.Warn("Failed to check storage providers", "error", err)
			}
			pc.StartPeriodicUpdate(c.Duration("provider-refresh"))
			defer pc.Stop()
			catalog = pc
		}

		apiServer := http_api.NewHTTPServer(ledger, catalog, cfg.APIPort, log)
		go apiServer.Start()

		<-c.Context.Done()
		return apiServer.Shutdown()
	},
}
