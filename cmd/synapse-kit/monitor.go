package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/fil-demos/synapse-kit/internal/alerting"
	"github.com/fil-demos/synapse-kit/internal/config"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/internal/notificator"
	"github.com/fil-demos/synapse-kit/pkg/logger"
	"github.com/fil-demos/synapse-kit/pkg/tokens"
)

var monitorCmd = &cli.Command{
	Name:  "monitor",
	Usage: "Evaluate alert rules against the payment account, egress, cost and latency",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "interval", Usage: "keep checking at this interval instead of once"},
		&cli.DurationFlag{Name: "cooldown", Usage: "suppress a rule for this long after it fired (default ALERT_COOLDOWN)"},
		&cli.StringFlag{Name: "thresholds", Usage: "egress/cost/performance thresholds file (default ALERT_THRESHOLDS_FILE)"},
		&cli.BoolFlag{Name: "list-rules", Usage: "print the rule list with its limits and exit"},
	},
	Action: func(c *cli.Context) error {
		ctx := c.Context
		cfg, log := getConfig(c), getLogger(c)
		if c.IsSet("cooldown") {
			cfg.AlertCooldown = c.Duration("cooldown")
		}
		if c.IsSet("thresholds") {
			cfg.AlertThresholdsFile = c.String("thresholds")
		}

		params, err := alerting.ParamsFromConfig(cfg)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid alert configuration: %v", err), 1)
		}

		evaluator := alerting.NewEvaluator(alerting.DefaultRules(params), log)
		if c.Bool("list-rules") {
			printRules(c.App.Writer, evaluator.Rules())
			return nil
		}
		if c.IsSet("interval") && c.Duration("interval") <= 0 {
			return cli.Exit("--interval must be positive", 1)
		}

		ch, err := connectChain(ctx, cfg, log, cfg.PrivateKey, "PRIVATE_KEY")
		if err != nil {
			return err
		}
		defer ch.Close()

		var egress alerting.EgressReader
		ledger, closer, err := openLedger(cfg, log)
		if err != nil {
			log.Warn("Egress rules disabled, quota ledger unavailable", "error", err)
		} else {
			defer closer()
			egress = ledger
		}

		var probe models.StorageService
		if cfg.AlertProbePieceCID != "" {
			catalog, err := openCatalog(cfg, log)
			if err != nil {
				log.Warn("Performance rules disabled, no storage provider", "error", err)
			} else {
				defer catalog.Stop()
				if c.IsSet("interval") {
					catalog.StartPeriodicUpdate(c.Duration("interval"))
				}
				probe = catalog.Storage(storageOptions(cfg, nil, 0))
			}
		}

		dispatcher, err := newDispatcher(cfg, log)
		if err != nil {
			return err
		}

		source := alerting.NewChainSource(ch.payments, cfg.WarmStorageAddress, egress, probe, cfg.AlertProbePieceCID)
		monitor := alerting.NewMonitor(
			evaluator,
			source,
			alerting.NewHistory(cfg.AlertCooldown),
			dispatcher,
			log,
		)

		if !c.IsSet("interval") {
			if fired := monitor.Check(ctx); len(fired) == 0 {
				fmt.Println(color.GreenString("All checks passed"))
			}
			return nil
		}

		log.Info("Monitoring", "interval", c.Duration("interval"), "cooldown", cfg.AlertCooldown)
		if err := monitor.Run(ctx, c.Duration("interval")); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// newDispatcher builds the notification fan-out from the configured sinks.
// The console always receives alerts; the others only when configured.
func newDispatcher(cfg *config.Config, log *logger.Logger) (*notificator.Notificator, error) {
	var email, telegram, webhook models.NotificationService
	if cfg.EmailConfigured() {
		email = notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender, cfg.AlertEmailTo)
	}
	if cfg.TelegramConfigured() {
		t, err := notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram notificator: %w", err)
		}
		telegram = t
	}
	if cfg.AlertWebhookURL != "" {
		webhook = notificator.NewWebhookNotificator(cfg.AlertWebhookURL)
	}
	return notificator.NewNotificator(log, notificator.NewConsoleNotificator(os.Stdout), email, telegram, webhook), nil
}

// printRules lists the rules in evaluation order with the condition each one fires on.
func printRules(w io.Writer, rules []alerting.Rule) {
	for _, r := range rules {
		fmt.Fprintf(w, "%-28s %-8s %s\n", r.ID, r.Severity, ruleCondition(r))
	}
}

func ruleCondition(r alerting.Rule) string {
	switch r.Kind {
	case alerting.KindWalletBalanceLow:
		return "wallet balance < " + tokens.Format(r.Min, tokens.USDFCDecimals) + " USDFC"
	case alerting.KindAvailableFundsLow:
		return "available funds < " + tokens.Format(r.Min, tokens.USDFCDecimals) + " USDFC"
	case alerting.KindOperatorNotApprove:
		return "storage operator not approved"
	case alerting.KindAllowanceExhausted:
		return fmt.Sprintf("allowance usage >= %.0f%%", r.Ratio*100)
	case alerting.KindRailsTerminated:
		return "any payment rail terminated"
	case alerting.KindThreshold:
		if math.IsInf(r.Upper, 1) {
			return fmt.Sprintf("%s >= %g", r.Metric, r.Lower)
		}
		return fmt.Sprintf("%g <= %s < %g", r.Lower, r.Metric, r.Upper)
	}
	return string(r.Kind)
}
