package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/tokens"
)

// EpochsPerMonth is 30 days of 30 second epochs.
const EpochsPerMonth = 86400

// Source supplies the values rules are evaluated against.
type Source interface {
	WalletBalance(ctx context.Context) (tokens.Amount, error)
	AccountInfo(ctx context.Context) (*models.AccountInfo, error)
	ServiceApproval(ctx context.Context) (*models.ServiceApproval, error)
	Rails(ctx context.Context) ([]models.Rail, error)
	Measure(ctx context.Context, m Metric) (float64, error)
}

// EgressReader reports bytes downloaded since a point in time.
type EgressReader interface {
	EgressSince(ctx context.Context, t time.Time) (int64, error)
}

// ChainSource reads payment state from the chain, egress from the ledger and latency from a probe download.
type ChainSource struct {
	Payments models.PaymentsService
	Operator string
	Egress   EgressReader
	Storage  models.StorageService
	ProbeCID string

	now func() time.Time
}

func NewChainSource(payments models.PaymentsService, operator string, egress EgressReader, storage models.StorageService, probeCID string) *ChainSource {
	return &ChainSource{
		Payments: payments,
		Operator: operator,
		Egress:   egress,
		Storage:  storage,
		ProbeCID: probeCID,
		now:      time.Now,
	}
}

func (s *ChainSource) WalletBalance(ctx context.Context) (tokens.Amount, error) {
	return s.Payments.WalletBalance(ctx)
}

func (s *ChainSource) AccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	return s.Payments.AccountInfo(ctx)
}

func (s *ChainSource) ServiceApproval(ctx context.Context) (*models.ServiceApproval, error) {
	return s.Payments.ServiceApproval(ctx, s.Operator)
}

func (s *ChainSource) Rails(ctx context.Context) ([]models.Rail, error) {
	return s.Payments.RailsAsPayer(ctx)
}

func (s *ChainSource) Measure(ctx context.Context, m Metric) (float64, error) {
	switch m {
	case MetricEgress:
		if s.Egress == nil {
			return 0, fmt.Errorf("no ledger configured for egress")
		}
		n, err := s.Egress.EgressSince(ctx, s.now().Add(-24*time.Hour))
		return float64(n), err
	case MetricCost:
		return s.monthlyCost(ctx)
	case MetricLatency:
		return s.probeLatency(ctx)
	}
	return 0, fmt.Errorf("unknown metric %q", m)
}

func (s *ChainSource) monthlyCost(ctx context.Context) (float64, error) {
	rails, err := s.Payments.RailsAsPayer(ctx)
	if err != nil {
		return 0, err
	}
	active := lo.Filter(rails, func(r models.Rail, _ int) bool { return !r.IsTerminated })

	perEpoch := tokens.Zero()
	for _, r := range active {
		detail, err := s.Payments.Rail(ctx, r.RailID)
		if err != nil {
			return 0, fmt.Errorf("failed to read rail %d: %w", r.RailID, err)
		}
		perEpoch = tokens.Add(perEpoch, detail.PaymentRate)
	}
	return tokens.ToFloat(tokens.Mul(perEpoch, EpochsPerMonth), tokens.USDFCDecimals), nil
}

func (s *ChainSource) probeLatency(ctx context.Context) (float64, error) {
	if s.ProbeCID == "" || s.Storage == nil {
		return 0, fmt.Errorf("no probe piece configured")
	}
	start := s.now()
	if _, err := s.Storage.Download(ctx, s.ProbeCID); err != nil {
		return 0, fmt.Errorf("probe download failed: %w", err)
	}
	return float64(s.now().Sub(start).Milliseconds()), nil
}
