package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
	"github.com/fil-demos/synapse-kit/pkg/tokens"
)

// Evaluator checks rules against a Source.
type Evaluator struct {
	logger *logger.Logger
	rules  []Rule
}

func NewEvaluator(rules []Rule, logger *logger.Logger) *Evaluator {
	return &Evaluator{rules: rules, logger: logger}
}

func (e *Evaluator) Rules() []Rule {
	return e.rules
}

// Evaluate returns an alert for every rule whose condition holds, in rule order.
// A rule whose inputs cannot be read is logged and skipped.
func (e *Evaluator) Evaluate(ctx context.Context, src Source, now time.Time) []*models.Alert {
	snap := &snapshot{src: src, measures: make(map[Metric]measure)}

	var alerts []*models.Alert
	for _, rule := range e.rules {
		fired, message, err := e.check(ctx, rule, snap)
		if err != nil {
			e.logger.Warn("Skipping alert rule", "rule", rule.ID, "error", err)
			continue
		}
		if !fired {
			continue
		}
		alerts = append(alerts, &models.Alert{
			EventID:   uuid.NewString(),
			RuleID:    rule.ID,
			Name:      rule.Name,
			Severity:  rule.Severity,
			Message:   message,
			Timestamp: now,
		})
	}
	return alerts
}

func (e *Evaluator) check(ctx context.Context, rule Rule, snap *snapshot) (bool, string, error) {
	switch rule.Kind {
	case KindWalletBalanceLow:
		balance, err := snap.walletBalance(ctx)
		if err != nil {
			return false, "", err
		}
		return balance.LessThan(rule.Min), fmt.Sprintf("wallet holds %s USDFC, below %s USDFC",
			tokens.Format(balance, tokens.USDFCDecimals), tokens.Format(rule.Min, tokens.USDFCDecimals)), nil

	case KindAvailableFundsLow:
		info, err := snap.accountInfo(ctx)
		if err != nil {
			return false, "", err
		}
		return info.AvailableFunds.LessThan(rule.Min), fmt.Sprintf("payment account has %s USDFC available, below %s USDFC",
			tokens.Format(info.AvailableFunds, tokens.USDFCDecimals), tokens.Format(rule.Min, tokens.USDFCDecimals)), nil

	case KindOperatorNotApprove:
		approval, err := snap.approval(ctx)
		if err != nil {
			return false, "", err
		}
		return !approval.IsApproved, "storage operator is not approved to create payment rails", nil

	case KindAllowanceExhausted:
		approval, err := snap.approval(ctx)
		if err != nil {
			return false, "", err
		}
		if !approval.IsApproved {
			return false, "", nil
		}
		rate := usageRatio(approval.RateUsage, approval.RateAllowance)
		lockup := usageRatio(approval.LockupUsage, approval.LockupAllowance)
		return rate >= rule.Ratio || lockup >= rule.Ratio,
			fmt.Sprintf("rate allowance %.0f%% used, lockup allowance %.0f%% used", rate*100, lockup*100), nil

	case KindRailsTerminated:
		rails, err := snap.rails(ctx)
		if err != nil {
			return false, "", err
		}
		terminated := lo.Filter(rails, func(r models.Rail, _ int) bool { return r.IsTerminated })
		ids := lo.Map(terminated, func(r models.Rail, _ int) uint64 { return r.RailID })
		return len(terminated) > 0, fmt.Sprintf("%d payment rail(s) terminated: %v", len(terminated), ids), nil

	case KindThreshold:
		v, err := snap.measure(ctx, rule.Metric)
		if err != nil {
			return false, "", err
		}
		return v >= rule.Lower && v < rule.Upper, thresholdMessage(rule, v), nil
	}
	return false, "", fmt.Errorf("unknown rule kind %q", rule.Kind)
}

func usageRatio(usage, allowance tokens.Amount) float64 {
	a := tokens.ToFloat(allowance, 0)
	if a <= 0 {
		return 0
	}
	return tokens.ToFloat(usage, 0) / a
}

func thresholdMessage(rule Rule, v float64) string {
	switch rule.Metric {
	case MetricEgress:
		return fmt.Sprintf("egress over the last 24h is %s (threshold %s)",
			humanize.IBytes(uint64(v)), humanize.IBytes(uint64(rule.Lower)))
	case MetricCost:
		return fmt.Sprintf("committed storage cost is $%.2f/month (threshold $%.2f)", v, rule.Lower)
	case MetricLatency:
		return fmt.Sprintf("retrieval latency is %.0fms (threshold %.0fms)", v, rule.Lower)
	}
	return fmt.Sprintf("%s is %v (threshold %v)", rule.Metric, v, rule.Lower)
}

type measure struct {
	v   float64
	err error
}

// snapshot reads each source value at most once per evaluation.
type snapshot struct {
	src Source

	balance    *tokens.Amount
	balanceErr error
	info       *models.AccountInfo
	infoErr    error
	appr       *models.ServiceApproval
	apprErr    error
	railList   []models.Rail
	railsErr   error
	railsRead  bool
	measures   map[Metric]measure
}

func (s *snapshot) walletBalance(ctx context.Context) (tokens.Amount, error) {
	if s.balance == nil && s.balanceErr == nil {
		b, err := s.src.WalletBalance(ctx)
		s.balance, s.balanceErr = &b, err
	}
	if s.balanceErr != nil {
		return tokens.Zero(), s.balanceErr
	}
	return *s.balance, nil
}

func (s *snapshot) accountInfo(ctx context.Context) (*models.AccountInfo, error) {
	if s.info == nil && s.infoErr == nil {
		s.info, s.infoErr = s.src.AccountInfo(ctx)
		if s.info == nil && s.infoErr == nil {
			s.infoErr = fmt.Errorf("no account info")
		}
	}
	return s.info, s.infoErr
}

func (s *snapshot) approval(ctx context.Context) (*models.ServiceApproval, error) {
	if s.appr == nil && s.apprErr == nil {
		s.appr, s.apprErr = s.src.ServiceApproval(ctx)
		if s.appr == nil && s.apprErr == nil {
			s.apprErr = fmt.Errorf("no service approval")
		}
	}
	return s.appr, s.apprErr
}

func (s *snapshot) rails(ctx context.Context) ([]models.Rail, error) {
	if !s.railsRead {
		s.railList, s.railsErr = s.src.Rails(ctx)
		s.railsRead = true
	}
	return s.railList, s.railsErr
}

func (s *snapshot) measure(ctx context.Context, m Metric) (float64, error) {
	if r, ok := s.measures[m]; ok {
		return r.v, r.err
	}
	v, err := s.src.Measure(ctx, m)
	s.measures[m] = measure{v: v, err: err}
	return v, err
}
