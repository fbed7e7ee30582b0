// Package leak compares snapshot history and ledger contents against fixed
// thresholds and emits findings. Detection of severe leaks is never purely
// observational: high-severity findings trigger best-effort remediation
// before Evaluate returns.
package leak

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quillmind/governd/pkg/alert"
	"github.com/quillmind/governd/pkg/ledger"
	"github.com/quillmind/governd/pkg/model"
)

// Thresholds for the detector rules.
const (
	MinSnapshots = 5

	HeapGrowthRatio   = 0.5
	HeapPressureRatio = 0.9

	ListenerCountLimit = 1000

	NodeGrowthLimit = 1000
	NodeCountLimit  = 10000

	TimerCountLimit    = 100
	IntervalCountLimit = 20

	StaleComponentAge   = 30 * time.Minute
	StaleComponentLimit = 10
	DropComponentAge    = 60 * time.Minute
)

// Detector evaluates the leak rules. Each rule runs independently and is
// recover-guarded, so one failing rule cannot suppress the others.
type Detector struct {
	ledger *ledger.Ledger
}

func NewDetector(l *ledger.Ledger) *Detector {
	return &Detector{ledger: l}
}

// Evaluate runs every rule over history. Fewer than MinSnapshots readings
// is insufficient data, not an error: the result is empty.
func (d *Detector) Evaluate(history []model.RuntimeSnapshot) []model.Finding {
	if len(history) < MinSnapshots {
		return nil
	}
	window := history[len(history)-MinSnapshots:]

	rules := []func([]model.RuntimeSnapshot) *model.Finding{
		d.heapGrowthRule,
		d.heapPressureRule,
		d.listenerRule,
		d.nodeRule,
		d.timerRule,
		d.staleComponentRule,
	}

	var findings []model.Finding
	for _, rule := range rules {
		if f := runRule(rule, window); f != nil {
			findings = append(findings, *f)
		}
	}

	for _, f := range findings {
		if f.Severity == model.SeverityHigh {
			d.remediate()
			break
		}
	}
	return findings
}

func runRule(rule func([]model.RuntimeSnapshot) *model.Finding, window []model.RuntimeSnapshot) (f *model.Finding) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("leak rule panicked: %v", r)
			f = nil
		}
	}()
	return rule(window)
}

// remediate clears what is safe to clear automatically: orphaned listeners
// can never fire usefully again, and long-idle components are dead weight.
func (d *Detector) remediate() {
	if swept := d.ledger.SweepOrphanedListeners(); swept > 0 {
		log.Infof("leak remediation: swept %d orphaned listeners", swept)
	}
	if dropped := d.ledger.DropStaleComponents(DropComponentAge); dropped > 0 {
		log.Infof("leak remediation: dropped %d stale components", dropped)
	}
}

func (d *Detector) heapGrowthRule(window []model.RuntimeSnapshot) *model.Finding {
	oldest, newest := window[0], window[len(window)-1]
	if oldest.UsedHeapBytes == 0 || newest.UsedHeapBytes <= oldest.UsedHeapBytes {
		return nil
	}
	growth := float64(newest.UsedHeapBytes-oldest.UsedHeapBytes) / float64(oldest.UsedHeapBytes)
	if growth <= HeapGrowthRatio {
		return nil
	}
	f := alert.NewFinding(model.FindingHeapGrowth, model.SeverityHigh,
		fmt.Sprintf("rapid heap growth: %.0f%% across snapshot window", growth*100),
		map[string]any{"oldHeapBytes": oldest.UsedHeapBytes, "newHeapBytes": newest.UsedHeapBytes})
	return &f
}

func (d *Detector) heapPressureRule(window []model.RuntimeSnapshot) *model.Finding {
	newest := window[len(window)-1]
	if newest.HeapLimitBytes == 0 {
		return nil
	}
	ratio := float64(newest.UsedHeapBytes) / float64(newest.HeapLimitBytes)
	if ratio <= HeapPressureRatio {
		return nil
	}
	f := alert.NewFinding(model.FindingHeapPressure, model.SeverityHigh,
		fmt.Sprintf("heap near limit: %.1f%% of %d bytes", ratio*100, newest.HeapLimitBytes),
		map[string]any{"usedHeapBytes": newest.UsedHeapBytes, "heapLimitBytes": newest.HeapLimitBytes})
	return &f
}

func (d *Detector) listenerRule(_ []model.RuntimeSnapshot) *model.Finding {
	if orphans := d.ledger.CountOrphanedListeners(); orphans > 0 {
		swept := d.ledger.SweepOrphanedListeners()
		f := alert.NewFinding(model.FindingOrphanedListener, model.SeverityHigh,
			fmt.Sprintf("%d orphaned listeners detected and swept", orphans),
			map[string]any{"orphaned": orphans, "swept": swept})
		return &f
	}
	if total := d.ledger.CountActiveListeners(); total > ListenerCountLimit {
		f := alert.NewFinding(model.FindingListenerCount, model.SeverityMedium,
			fmt.Sprintf("%d active listeners exceeds limit %d", total, ListenerCountLimit),
			map[string]any{"activeListeners": total})
		return &f
	}
	return nil
}

func (d *Detector) nodeRule(window []model.RuntimeSnapshot) *model.Finding {
	newest := window[len(window)-1]
	if newest.NodeCount > NodeCountLimit {
		f := alert.NewFinding(model.FindingNodeCount, model.SeverityHigh,
			fmt.Sprintf("node count %d exceeds limit %d", newest.NodeCount, NodeCountLimit),
			map[string]any{"nodeCount": newest.NodeCount})
		return &f
	}
	delta := newest.NodeCount - window[0].NodeCount
	if delta > NodeGrowthLimit {
		f := alert.NewFinding(model.FindingNodeGrowth, model.SeverityMedium,
			fmt.Sprintf("node count grew by %d across snapshot window", delta),
			map[string]any{"delta": delta})
		return &f
	}
	return nil
}

func (d *Detector) timerRule(_ []model.RuntimeSnapshot) *model.Finding {
	// intervals are weighted worse: they recur indefinitely
	if intervals := d.ledger.CountActiveIntervals(); intervals > IntervalCountLimit {
		f := alert.NewFinding(model.FindingIntervalCount, model.SeverityHigh,
			fmt.Sprintf("%d active intervals exceeds limit %d", intervals, IntervalCountLimit),
			map[string]any{"activeIntervals": intervals})
		return &f
	}
	if timers := d.ledger.CountActiveTimers(); timers > TimerCountLimit {
		f := alert.NewFinding(model.FindingTimerCount, model.SeverityMedium,
			fmt.Sprintf("%d active timers exceeds limit %d", timers, TimerCountLimit),
			map[string]any{"activeTimers": timers})
		return &f
	}
	return nil
}

func (d *Detector) staleComponentRule(_ []model.RuntimeSnapshot) *model.Finding {
	stale := d.ledger.StaleComponents(StaleComponentAge)
	if len(stale) <= StaleComponentLimit {
		return nil
	}
	dropped := d.ledger.DropStaleComponents(DropComponentAge)
	f := alert.NewFinding(model.FindingStaleComponent, model.SeverityMedium,
		fmt.Sprintf("%d components idle beyond %s", len(stale), StaleComponentAge),
		map[string]any{"staleComponents": len(stale), "dropped": dropped})
	return &f
}
