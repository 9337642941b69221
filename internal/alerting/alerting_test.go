package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fil-demos/synapse-kit/internal/config"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
	"github.com/fil-demos/synapse-kit/pkg/tokens"
)

type fakeSource struct {
	balance    tokens.Amount
	balanceErr error
	info       *models.AccountInfo
	approval   *models.ServiceApproval
	rails      []models.Rail
	values     map[Metric]float64
	errs       map[Metric]error

	calls map[string]int
}

func healthySource() *fakeSource {
	return &fakeSource{
		balance: tokens.MustParse("100", tokens.USDFCDecimals),
		info:    &models.AccountInfo{AvailableFunds: tokens.MustParse("50", tokens.USDFCDecimals)},
		approval: &models.ServiceApproval{
			IsApproved:      true,
			RateAllowance:   tokens.MustParse("10", tokens.USDFCDecimals),
			RateUsage:       tokens.MustParse("1", tokens.USDFCDecimals),
			LockupAllowance: tokens.MustParse("100", tokens.USDFCDecimals),
			LockupUsage:     tokens.MustParse("10", tokens.USDFCDecimals),
		},
		values: map[Metric]float64{MetricEgress: 0, MetricCost: 1, MetricLatency: 100},
		errs:   map[Metric]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeSource) WalletBalance(context.Context) (tokens.Amount, error) {
	f.calls["balance"]++
	return f.balance, f.balanceErr
}

func (f *fakeSource) AccountInfo(context.Context) (*models.AccountInfo, error) {
	f.calls["info"]++
	return f.info, nil
}

func (f *fakeSource) ServiceApproval(context.Context) (*models.ServiceApproval, error) {
	f.calls["approval"]++
	return f.approval, nil
}

func (f *fakeSource) Rails(context.Context) ([]models.Rail, error) {
	f.calls["rails"]++
	return f.rails, nil
}

func (f *fakeSource) Measure(_ context.Context, m Metric) (float64, error) {
	f.calls[string(m)]++
	return f.values[m], f.errs[m]
}

type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (d *recordingDispatcher) Dispatch(_ context.Context, a *models.Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
}

func testParams() RuleParams {
	return RuleParams{
		Thresholds:       config.DefaultThresholds(),
		MinWalletBalance: tokens.MustParse("1", tokens.USDFCDecimals),
		MinFunds:         tokens.MustParse("5", tokens.USDFCDecimals),
		AllowanceRatio:   0.8,
	}
}

func ruleIDs(alerts []*models.Alert) []string {
	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.RuleID)
	}
	return ids
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules(testParams())
	require.Len(t, rules, 11)

	seen := map[string]bool{}
	for _, r := range rules {
		assert.False(t, seen[r.ID], "duplicate rule id %s", r.ID)
		seen[r.ID] = true
	}
	assert.Equal(t, models.SeverityCritical, rules[1].Severity)
}

func TestEvaluate_Healthy(t *testing.T) {
	e := NewEvaluator(DefaultRules(testParams()), logger.NewNop())
	alerts := e.Evaluate(context.Background(), healthySource(), time.Now())
	assert.Empty(t, alerts)
}

func TestEvaluate_Fires(t *testing.T) {
	src := healthySource()
	src.balance = tokens.MustParse("0.5", tokens.USDFCDecimals)
	src.info.AvailableFunds = tokens.Zero()
	src.approval.RateUsage = tokens.MustParse("8", tokens.USDFCDecimals)
	src.rails = []models.Rail{{RailID: 1}, {RailID: 2, IsTerminated: true}}
	src.values[MetricCost] = 75

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := NewEvaluator(DefaultRules(testParams()), logger.NewNop())
	alerts := e.Evaluate(context.Background(), src, now)

	assert.Equal(t, []string{
		"wallet-balance-low",
		"available-funds-low",
		"allowance-nearly-exhausted",
		"rails-terminated",
		"cost-warning",
	}, ruleIDs(alerts))
	for _, a := range alerts {
		assert.Equal(t, now, a.Timestamp)
		assert.NotEmpty(t, a.EventID)
		assert.NotEmpty(t, a.Message)
	}
	assert.Contains(t, alerts[0].Message, "0.5 USDFC")
}

func TestEvaluate_OperatorNotApproved(t *testing.T) {
	src := healthySource()
	src.approval = &models.ServiceApproval{}

	e := NewEvaluator(DefaultRules(testParams()), logger.NewNop())
	alerts := e.Evaluate(context.Background(), src, time.Now())
	assert.Equal(t, []string{"operator-not-approved"}, ruleIDs(alerts))
}

func TestEvaluate_ThresholdBands(t *testing.T) {
	th := config.DefaultThresholds()
	tests := []struct {
		latency float64
		want    []string
	}{
		{th.Performance.Warning - 1, nil},
		{th.Performance.Warning, []string{"performance-warning"}},
		{th.Performance.Critical - 1, []string{"performance-warning"}},
		{th.Performance.Critical, []string{"performance-critical"}},
		{th.Performance.Critical * 10, []string{"performance-critical"}},
	}
	e := NewEvaluator(DefaultRules(testParams()), logger.NewNop())
	for _, tt := range tests {
		src := healthySource()
		src.values[MetricLatency] = tt.latency
		got := ruleIDs(e.Evaluate(context.Background(), src, time.Now()))
		if tt.want == nil {
			assert.Empty(t, got, "latency=%v", tt.latency)
		} else {
			assert.Equal(t, tt.want, got, "latency=%v", tt.latency)
		}
	}
}

func TestEvaluate_ErrorsSkipRule(t *testing.T) {
	src := healthySource()
	src.balanceErr = errors.New("rpc down")
	src.errs[MetricLatency] = errors.New("no probe")
	src.values[MetricEgress] = 60 << 30

	e := NewEvaluator(DefaultRules(testParams()), logger.NewNop())
	alerts := e.Evaluate(context.Background(), src, time.Now())

	assert.Equal(t, []string{"egress-critical"}, ruleIDs(alerts))
	// each input is read once per evaluation even when two rules share it
	assert.Equal(t, 1, src.calls["balance"])
	assert.Equal(t, 1, src.calls[string(MetricLatency)])
	assert.Equal(t, 1, src.calls["approval"])
}

func TestEvaluate_UnknownKind(t *testing.T) {
	e := NewEvaluator([]Rule{{ID: "x", Kind: "nope"}, {ID: "ok", Kind: KindOperatorNotApprove}}, logger.NewNop())
	src := healthySource()
	src.approval.IsApproved = false
	assert.Equal(t, []string{"ok"}, ruleIDs(e.Evaluate(context.Background(), src, time.Now())))
}

func TestHistory(t *testing.T) {
	h := NewHistory(15 * time.Minute)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, h.Allow("r", t0))
	assert.False(t, h.Allow("r", t0.Add(14*time.Minute)))
	assert.True(t, h.Allow("other", t0.Add(time.Minute)))
	assert.True(t, h.Allow("r", t0.Add(15*time.Minute)))

	last, ok := h.LastFired("r")
	require.True(t, ok)
	assert.Equal(t, t0.Add(15*time.Minute), last)

	assert.Equal(t, DefaultCooldown, NewHistory(0).Cooldown())
}

func TestMonitor_Cooldown(t *testing.T) {
	src := healthySource()
	src.approval = &models.ServiceApproval{}

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &recordingDispatcher{}
	m := NewMonitor(NewEvaluator(DefaultRules(testParams()), logger.NewNop()), src, NewHistory(15*time.Minute), d, logger.NewNop()).
		WithClock(func() time.Time { return now })
	ctx := context.Background()

	assert.Len(t, m.Check(ctx), 1)
	now = now.Add(5 * time.Minute)
	assert.Empty(t, m.Check(ctx))
	now = now.Add(10 * time.Minute)
	assert.Len(t, m.Check(ctx), 1)

	assert.Len(t, d.alerts, 2)
}

func TestMonitor_SharedHistory(t *testing.T) {
	src := healthySource()
	src.approval = &models.ServiceApproval{}
	h := NewHistory(time.Hour)

	d := &recordingDispatcher{}
	e := NewEvaluator(DefaultRules(testParams()), logger.NewNop())
	first := NewMonitor(e, src, h, d, logger.NewNop())
	second := NewMonitor(e, src, h, d, logger.NewNop())

	first.Check(context.Background())
	second.Check(context.Background())
	assert.Len(t, d.alerts, 1)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &recordingDispatcher{}
	src := healthySource()
	src.approval = &models.ServiceApproval{}
	m := NewMonitor(NewEvaluator(DefaultRules(testParams()), logger.NewNop()), src, NewHistory(time.Hour), d, logger.NewNop())

	done := make(chan error)
	go func() { done <- m.Run(ctx, 10*time.Millisecond) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Len(t, d.alerts, 1)
}
