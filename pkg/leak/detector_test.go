package leak

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quillmind/governd/pkg/ledger"
	"github.com/quillmind/governd/pkg/model"
)

type fakeTimers struct {
	mx sync.Mutex
}

func (f *fakeTimers) AfterFunc(_ time.Duration, _ func()) ledger.CancelFunc {
	return func() {}
}

func (f *fakeTimers) TickFunc(_ time.Duration, _ func()) ledger.CancelFunc {
	return func() {}
}

func snapshots(n int, heap func(i int) uint64, nodes func(i int) int) []model.RuntimeSnapshot {
	out := make([]model.RuntimeSnapshot, n)
	for i := range out {
		out[i] = model.RuntimeSnapshot{
			Timestamp:     time.Now(),
			UsedHeapBytes: heap(i),
			NodeCount:     nodes(i),
		}
	}
	return out
}

func flat(v uint64) func(int) uint64 { return func(int) uint64 { return v } }

func TestEvaluate_InsufficientHistory_Empty(t *testing.T) {
	d := NewDetector(ledger.New(&fakeTimers{}))
	assert.Empty(t, d.Evaluate(nil))
	assert.Empty(t, d.Evaluate(snapshots(4, flat(100), func(int) int { return 10 })))
}

func TestEvaluate_HeapGrowth_HighFinding(t *testing.T) {
	d := NewDetector(ledger.New(&fakeTimers{}))
	history := snapshots(5, func(i int) uint64 { return 100 + uint64(i)*20 }, func(int) int { return 10 })

	findings := d.Evaluate(history)
	if len(findings) != 1 {
		t.Fatalf("Expected exactly one finding, got %d", len(findings))
	}
	assert.Equal(t, model.FindingHeapGrowth, findings[0].Kind)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
}

func TestEvaluate_ModestGrowth_NoFinding(t *testing.T) {
	d := NewDetector(ledger.New(&fakeTimers{}))
	// 40% growth across the window stays under the 50% threshold
	history := snapshots(5, func(i int) uint64 { return 100 + uint64(i)*10 }, func(int) int { return 10 })
	assert.Empty(t, d.Evaluate(history))
}

func TestEvaluate_HeapPressure_UsesLimit(t *testing.T) {
	d := NewDetector(ledger.New(&fakeTimers{}))
	history := snapshots(5, flat(95), func(int) int { return 10 })
	for i := range history {
		history[i].HeapLimitBytes = 100
	}
	findings := d.Evaluate(history)
	if len(findings) != 1 {
		t.Fatalf("Expected exactly one finding, got %d", len(findings))
	}
	assert.Equal(t, model.FindingHeapPressure, findings[0].Kind)
}

func TestEvaluate_OrphanedListeners_SweptOnDetection(t *testing.T) {
	l := ledger.New(&fakeTimers{})
	l.AddListener("detached-widget", "click", func(any) {})
	d := NewDetector(l)

	history := snapshots(5, flat(100), func(int) int { return 10 })
	findings := d.Evaluate(history)
	if len(findings) != 1 {
		t.Fatalf("Expected exactly one finding, got %d", len(findings))
	}
	assert.Equal(t, model.FindingOrphanedListener, findings[0].Kind)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
	// detection and remediation are coupled: the sweep already happened
	assert.Equal(t, 0, l.CountActiveListeners())

	assert.Empty(t, d.Evaluate(history))
}

func TestEvaluate_NodeGrowthAndCount(t *testing.T) {
	d := NewDetector(ledger.New(&fakeTimers{}))

	grown := snapshots(5, flat(100), func(i int) int { return 100 + i*300 })
	findings := d.Evaluate(grown)
	if len(findings) != 1 {
		t.Fatalf("Expected exactly one finding, got %d", len(findings))
	}
	assert.Equal(t, model.FindingNodeGrowth, findings[0].Kind)
	assert.Equal(t, model.SeverityMedium, findings[0].Severity)

	huge := snapshots(5, flat(100), func(int) int { return 20000 })
	findings = d.Evaluate(huge)
	if len(findings) != 1 {
		t.Fatalf("Expected exactly one finding, got %d", len(findings))
	}
	assert.Equal(t, model.FindingNodeCount, findings[0].Kind)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
}

func TestEvaluate_IntervalCount_High(t *testing.T) {
	l := ledger.New(&fakeTimers{})
	for i := 0; i < IntervalCountLimit+1; i++ {
		l.SetRepeatingTimer(time.Second, func() {})
	}
	d := NewDetector(l)

	history := snapshots(5, flat(100), func(int) int { return 10 })
	findings := d.Evaluate(history)
	if len(findings) != 1 {
		t.Fatalf("Expected exactly one finding, got %d", len(findings))
	}
	assert.Equal(t, model.FindingIntervalCount, findings[0].Kind)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
}

func TestEvaluate_TimerCount_Medium(t *testing.T) {
	l := ledger.New(&fakeTimers{})
	for i := 0; i < TimerCountLimit+1; i++ {
		l.SetTimer(time.Hour, func() {})
	}
	d := NewDetector(l)

	history := snapshots(5, flat(100), func(int) int { return 10 })
	findings := d.Evaluate(history)
	if len(findings) != 1 {
		t.Fatalf("Expected exactly one finding, got %d", len(findings))
	}
	assert.Equal(t, model.FindingTimerCount, findings[0].Kind)
	assert.Equal(t, model.SeverityMedium, findings[0].Severity)
}

func TestEvaluate_StaleComponents_DropsVeryIdle(t *testing.T) {
	base := time.Now()
	clock := base
	l := ledger.New(&fakeTimers{}).WithClock(func() time.Time { return clock })
	for i := 0; i < StaleComponentLimit+2; i++ {
		l.RegisterComponent(string(rune('a' + i)))
	}
	d := NewDetector(l)

	clock = base.Add(90 * time.Minute)
	history := snapshots(5, flat(100), func(int) int { return 10 })
	findings := d.Evaluate(history)
	if len(findings) != 1 {
		t.Fatalf("Expected exactly one finding, got %d", len(findings))
	}
	assert.Equal(t, model.FindingStaleComponent, findings[0].Kind)
	// everything was idle past the drop age
	assert.Equal(t, 0, l.ComponentCount())
}
