package report

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quillmind/governd/pkg/alert"
	"github.com/quillmind/governd/pkg/flags"
	"github.com/quillmind/governd/pkg/ledger"
	"github.com/quillmind/governd/pkg/model"
	"github.com/quillmind/governd/pkg/snapshot"
)

type fakeTimers struct{ mx sync.Mutex }

func (f *fakeTimers) AfterFunc(_ time.Duration, _ func()) ledger.CancelFunc {
	return func() {}
}

func (f *fakeTimers) TickFunc(_ time.Duration, _ func()) ledger.CancelFunc {
	return func() {}
}

type fixture struct {
	aggregator *Aggregator
	alerts     *alert.Log
	sampler    *snapshot.Sampler
	timers     *fakeTimers
}

func newFixture() *fixture {
	ft := &fakeTimers{}
	l := ledger.New(ft)
	alerts := alert.NewLog(nil)
	catalog := flags.DefaultCatalog()
	gate := flags.NewGate(catalog, nil)
	sampler := snapshot.NewSampler(l, nil, nil, time.Second)
	return &fixture{
		aggregator: NewAggregator(catalog, gate, l, alerts, sampler, nil),
		alerts:     alerts,
		sampler:    sampler,
		timers:     ft,
	}
}

func TestBuild_UnknownKind_Error(t *testing.T) {
	f := newFixture()
	_, err := f.aggregator.Build(model.ReportKind("weekly"), "1.0")
	assert.EqualError(t, err, model.ReportKindErrorCode)
}

func TestBuild_CleanState_Passes(t *testing.T) {
	f := newFixture()
	f.sampler.Start(f.timers)
	for i := 0; i < 3; i++ {
		f.sampler.Sample()
	}

	rep, err := f.aggregator.Build(model.ReportTest, "1.0")
	if err != nil {
		t.Fatalf("Expected no error")
	}
	assert.True(t, rep.Passed, "blocking: %v", rep.BlockingReasons)
	assert.GreaterOrEqual(t, rep.Score, passThresholds[model.ReportTest])
	assert.Empty(t, rep.BlockingReasons)
	assert.NotEmpty(t, rep.Checks)
}

func TestBuild_UnresolvedCritical_Blocks(t *testing.T) {
	f := newFixture()
	f.sampler.Start(f.timers)
	f.alerts.Append(alert.NewFinding(model.FindingMutationThreat, model.SeverityCritical, "script inserted", nil))

	rep, err := f.aggregator.Build(model.ReportProduction, "1.0")
	if err != nil {
		t.Fatalf("Expected no error")
	}
	assert.False(t, rep.Passed)
	assert.NotEmpty(t, rep.BlockingReasons)

	var criticalCheck *model.CheckResult
	for i := range rep.Checks {
		if rep.Checks[i].Name == "no-unresolved-critical-alerts" {
			criticalCheck = &rep.Checks[i]
		}
	}
	if criticalCheck == nil {
		t.Fatalf("Expected the critical-alert check in the battery")
	}
	assert.Equal(t, model.CheckFail, criticalCheck.Status)
	assert.True(t, criticalCheck.Blocker)
}

func TestBuild_MonitoringPaused_BlocksQA(t *testing.T) {
	f := newFixture()
	// sampler never started

	rep, err := f.aggregator.Build(model.ReportQA, "1.0")
	if err != nil {
		t.Fatalf("Expected no error")
	}
	assert.False(t, rep.Passed)
}

func TestBuild_BundleSize_NeverFakedAsPass(t *testing.T) {
	f := newFixture()
	rep, err := f.aggregator.Build(model.ReportQA, "1.0")
	if err != nil {
		t.Fatalf("Expected no error")
	}
	found := false
	for _, c := range rep.Checks {
		if c.Name == "bundle-size" {
			found = true
			assert.Equal(t, model.CheckNotConfigured, c.Status)
		}
	}
	assert.True(t, found, "bundle-size must be represented, not omitted")
}

func TestBuild_HistoryCapped(t *testing.T) {
	f := newFixture()
	for i := 0; i < HistoryCap+5; i++ {
		if _, err := f.aggregator.Build(model.ReportBetaCompletion, "1.0"); err != nil {
			t.Fatalf("Expected no error")
		}
	}
	history := f.aggregator.History(model.ReportBetaCompletion)
	assert.Equal(t, HistoryCap, len(history))
}

func TestScore_Monotonic_FailNeverIncreases(t *testing.T) {
	weights := categoryWeights[model.ReportQA]
	base := []model.CheckResult{
		{Name: "a", Category: CategoryStability, Status: model.CheckPass, Severity: model.SeverityHigh},
		{Name: "b", Category: CategoryStability, Status: model.CheckPass, Severity: model.SeverityCritical},
		{Name: "c", Category: CategoryResources, Status: model.CheckPass, Severity: model.SeverityMedium},
		{Name: "d", Category: CategorySecurity, Status: model.CheckPass, Severity: model.SeverityHigh},
		{Name: "e", Category: CategoryFlags, Status: model.CheckPass, Severity: model.SeverityLow},
		{Name: "f", Category: CategoryDelivery, Status: model.CheckPass, Severity: model.SeverityLow},
	}
	baseScore := Score(base, weights)

	for i := range base {
		mutated := make([]model.CheckResult, len(base))
		copy(mutated, base)
		mutated[i].Status = model.CheckFail
		assert.LessOrEqual(t, Score(mutated, weights), baseScore, "flipping %s", base[i].Name)

		mutated[i].Status = model.CheckWarning
		assert.LessOrEqual(t, Score(mutated, weights), baseScore, "warning %s", base[i].Name)
	}
}

func TestScore_CriticalFail_ZeroContribution(t *testing.T) {
	weights := map[string]float64{CategoryStability: 1.0}
	checks := []model.CheckResult{
		{Name: "only", Category: CategoryStability, Status: model.CheckFail, Severity: model.SeverityCritical},
	}
	assert.Equal(t, 0.0, Score(checks, weights))

	checks[0].Severity = model.SeverityMedium
	assert.InDelta(t, creditFailPartial*100, Score(checks, weights), 0.001)
}
