// Package alerting evaluates alert rules against payment and storage metrics.
package alerting

import (
	"math"

	"github.com/fil-demos/synapse-kit/internal/config"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/tokens"
)

// Kind selects what a rule measures and how its condition is computed.
type Kind string

const (
	KindWalletBalanceLow   Kind = "wallet-balance-low"
	KindAvailableFundsLow  Kind = "available-funds-low"
	KindOperatorNotApprove Kind = "operator-not-approved"
	KindAllowanceExhausted Kind = "allowance-nearly-exhausted"
	KindRailsTerminated    Kind = "rails-terminated"
	KindThreshold          Kind = "threshold"
)

// Metric is a numeric measurement used by threshold rules.
type Metric string

const (
	// MetricEgress is bytes downloaded in the last 24 hours.
	MetricEgress Metric = "egress"
	// MetricCost is USD per month committed through active rails.
	MetricCost Metric = "cost"
	// MetricLatency is the retrieval latency of the probe piece in milliseconds.
	MetricLatency Metric = "performance"
)

// Rule is one entry of the static rule list. Only the parameters of its Kind are used.
type Rule struct {
	ID       string
	Name     string
	Severity models.Severity
	Kind     Kind

	// Min is the floor for balance rules.
	Min tokens.Amount
	// Ratio is the usage/allowance fraction for KindAllowanceExhausted.
	Ratio float64

	// Metric, Lower and Upper describe a threshold band: fires when Lower <= v < Upper.
	Metric Metric
	Lower  float64
	Upper  float64
}

// RuleParams are the configurable limits of the default rule list.
type RuleParams struct {
	Thresholds       config.Thresholds
	MinWalletBalance tokens.Amount
	MinFunds         tokens.Amount
	AllowanceRatio   float64
}

// ParamsFromConfig reads rule limits from the environment configuration and the thresholds file.
func ParamsFromConfig(cfg *config.Config) (RuleParams, error) {
	th, err := config.LoadThresholds(cfg.AlertThresholdsFile)
	if err != nil {
		return RuleParams{}, err
	}
	minWallet, err := tokens.Parse(cfg.AlertMinWalletBalance, tokens.USDFCDecimals)
	if err != nil {
		return RuleParams{}, err
	}
	minFunds, err := tokens.Parse(cfg.AlertMinAvailableFunds, tokens.USDFCDecimals)
	if err != nil {
		return RuleParams{}, err
	}
	return RuleParams{
		Thresholds:       th,
		MinWalletBalance: minWallet,
		MinFunds:         minFunds,
		AllowanceRatio:   cfg.AlertAllowanceRatio,
	}, nil
}

// DefaultRules returns the ordered rule list. Order is the evaluation and delivery order.
func DefaultRules(p RuleParams) []Rule {
	rules := []Rule{
		{
			ID:       "wallet-balance-low",
			Name:     "Low wallet balance",
			Severity: models.SeverityError,
			Kind:     KindWalletBalanceLow,
			Min:      p.MinWalletBalance,
		},
		{
			ID:       "available-funds-low",
			Name:     "Low available funds",
			Severity: models.SeverityCritical,
			Kind:     KindAvailableFundsLow,
			Min:      p.MinFunds,
		},
		{
			ID:       "operator-not-approved",
			Name:     "Storage operator not approved",
			Severity: models.SeverityCritical,
			Kind:     KindOperatorNotApprove,
		},
		{
			ID:       "allowance-nearly-exhausted",
			Name:     "Operator allowance nearly exhausted",
			Severity: models.SeverityWarning,
			Kind:     KindAllowanceExhausted,
			Ratio:    p.AllowanceRatio,
		},
		{
			ID:       "rails-terminated",
			Name:     "Payment rail terminated",
			Severity: models.SeverityError,
			Kind:     KindRailsTerminated,
		},
	}

	bands := []struct {
		metric Metric
		name   string
		pair   config.ThresholdPair
	}{
		{MetricEgress, "egress", p.Thresholds.Egress},
		{MetricCost, "cost", p.Thresholds.Cost},
		{MetricLatency, "performance", p.Thresholds.Performance},
	}
	for _, b := range bands {
		rules = append(rules,
			Rule{
				ID:       b.name + "-warning",
				Name:     "High " + b.name,
				Severity: models.SeverityWarning,
				Kind:     KindThreshold,
				Metric:   b.metric,
				Lower:    b.pair.Warning,
				Upper:    b.pair.Critical,
			},
			Rule{
				ID:       b.name + "-critical",
				Name:     "Critical " + b.name,
				Severity: models.SeverityCritical,
				Kind:     KindThreshold,
				Metric:   b.metric,
				Lower:    b.pair.Critical,
				Upper:    math.Inf(1),
			},
		)
	}
	return rules
}
