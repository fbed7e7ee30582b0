package report

import (
	"fmt"

	"github.com/quillmind/governd/pkg/leak"
	"github.com/quillmind/governd/pkg/model"
)

// Check categories. Per-kind weights over these sum to 1.0.
const (
	CategoryStability = "stability"
	CategoryResources = "resources"
	CategorySecurity  = "security"
	CategoryFlags     = "flags"
	CategoryDelivery  = "delivery"
)

// Alert backlog bounds for the stability battery.
const (
	alertBacklogWarn = 20
	alertBacklogFail = 50
)

// heapWarnRatio is the early-warning band below the detector's hard limit.
const heapWarnRatio = 0.75

func (a *Aggregator) stabilityChecks(kind model.ReportKind) []model.CheckResult {
	var checks []model.CheckResult

	critical := a.alerts.UnresolvedCritical()
	c := model.CheckResult{
		Name:     "no-unresolved-critical-alerts",
		Category: CategoryStability,
		Status:   model.CheckPass,
		Severity: model.SeverityCritical,
		Blocker:  true,
	}
	if critical > 0 {
		c.Status = model.CheckFail
		c.Message = fmt.Sprintf("%d unresolved critical findings", critical)
	}
	checks = append(checks, c)

	backlog := len(a.alerts.Unresolved())
	c = model.CheckResult{
		Name:     "alert-backlog",
		Category: CategoryStability,
		Status:   model.CheckPass,
		Severity: model.SeverityMedium,
	}
	switch {
	case backlog > alertBacklogFail:
		c.Status = model.CheckFail
		c.Message = fmt.Sprintf("%d unresolved findings", backlog)
	case backlog > alertBacklogWarn:
		c.Status = model.CheckWarning
		c.Message = fmt.Sprintf("%d unresolved findings", backlog)
	}
	checks = append(checks, c)

	c = model.CheckResult{
		Name:     "monitoring-active",
		Category: CategoryStability,
		Status:   model.CheckPass,
		Severity: model.SeverityHigh,
		Blocker:  kind == model.ReportQA || kind == model.ReportProduction,
	}
	if !a.sampler.Running() {
		c.Status = model.CheckFail
		c.Message = "snapshot sampling is paused"
	}
	checks = append(checks, c)

	return checks
}

func (a *Aggregator) resourceChecks() []model.CheckResult {
	var checks []model.CheckResult
	history := a.sampler.History()

	c := model.CheckResult{
		Name:     "heap-pressure",
		Category: CategoryResources,
		Severity: model.SeverityHigh,
	}
	if len(history) == 0 {
		c.Status = model.CheckNotConfigured
		c.Message = "no snapshots collected yet"
	} else {
		latest := history[len(history)-1]
		if latest.HeapLimitBytes == 0 {
			c.Status = model.CheckNotConfigured
			c.Message = "heap limit unavailable on this platform"
		} else {
			ratio := float64(latest.UsedHeapBytes) / float64(latest.HeapLimitBytes)
			switch {
			case ratio > leak.HeapPressureRatio:
				c.Status = model.CheckFail
				c.Message = fmt.Sprintf("heap at %.1f%% of limit", ratio*100)
			case ratio > heapWarnRatio:
				c.Status = model.CheckWarning
				c.Message = fmt.Sprintf("heap at %.1f%% of limit", ratio*100)
			default:
				c.Status = model.CheckPass
			}
		}
	}
	checks = append(checks, c)

	c = model.CheckResult{
		Name:     "heap-growth",
		Category: CategoryResources,
		Severity: model.SeverityHigh,
	}
	if len(history) < leak.MinSnapshots {
		c.Status = model.CheckNotConfigured
		c.Message = "insufficient snapshot history"
	} else {
		window := history[len(history)-leak.MinSnapshots:]
		oldest, newest := window[0], window[len(window)-1]
		c.Status = model.CheckPass
		if oldest.UsedHeapBytes > 0 && newest.UsedHeapBytes > oldest.UsedHeapBytes {
			growth := float64(newest.UsedHeapBytes-oldest.UsedHeapBytes) / float64(oldest.UsedHeapBytes)
			if growth > leak.HeapGrowthRatio {
				c.Status = model.CheckFail
				c.Message = fmt.Sprintf("heap grew %.0f%% across window", growth*100)
			}
		}
	}
	checks = append(checks, c)

	c = model.CheckResult{
		Name:     "orphaned-listeners",
		Category: CategoryResources,
		Status:   model.CheckPass,
		Severity: model.SeverityMedium,
	}
	if orphans := a.ledger.CountOrphanedListeners(); orphans > 0 {
		c.Status = model.CheckFail
		c.Message = fmt.Sprintf("%d orphaned listeners", orphans)
	}
	checks = append(checks, c)

	c = model.CheckResult{
		Name:     "timer-balance",
		Category: CategoryResources,
		Status:   model.CheckPass,
		Severity: model.SeverityMedium,
	}
	timers, intervals := a.ledger.CountActiveTimers(), a.ledger.CountActiveIntervals()
	if timers > leak.TimerCountLimit || intervals > leak.IntervalCountLimit {
		c.Status = model.CheckFail
		c.Message = fmt.Sprintf("%d timers / %d intervals active", timers, intervals)
	}
	checks = append(checks, c)

	c = model.CheckResult{
		Name:     "listener-balance",
		Category: CategoryResources,
		Status:   model.CheckPass,
		Severity: model.SeverityMedium,
	}
	if listeners := a.ledger.CountActiveListeners(); listeners > leak.ListenerCountLimit {
		c.Status = model.CheckFail
		c.Message = fmt.Sprintf("%d listeners active", listeners)
	}
	checks = append(checks, c)

	return checks
}

func (a *Aggregator) securityChecks(kind model.ReportKind) []model.CheckResult {
	var checks []model.CheckResult

	var injections, lockouts, mutations int
	for _, f := range a.alerts.Unresolved() {
		switch f.Kind {
		case model.FindingInjectionInput:
			injections++
		case model.FindingRateLimited:
			lockouts++
		case model.FindingMutationThreat:
			mutations++
		}
	}

	c := model.CheckResult{
		Name:     "no-injection-findings",
		Category: CategorySecurity,
		Status:   model.CheckPass,
		Severity: model.SeverityHigh,
		Blocker:  kind == model.ReportProduction,
	}
	if injections > 0 {
		c.Status = model.CheckFail
		c.Message = fmt.Sprintf("%d unresolved injection findings", injections)
	}
	checks = append(checks, c)

	c = model.CheckResult{
		Name:     "no-mutation-threats",
		Category: CategorySecurity,
		Status:   model.CheckPass,
		Severity: model.SeverityCritical,
		Blocker:  true,
	}
	if mutations > 0 {
		c.Status = model.CheckFail
		c.Message = fmt.Sprintf("%d unresolved mutation threats", mutations)
	}
	checks = append(checks, c)

	c = model.CheckResult{
		Name:     "rate-limit-health",
		Category: CategorySecurity,
		Status:   model.CheckPass,
		Severity: model.SeverityMedium,
	}
	if lockouts > 0 {
		c.Status = model.CheckWarning
		c.Message = fmt.Sprintf("%d identifiers locked out", lockouts)
	}
	checks = append(checks, c)

	return checks
}

func (a *Aggregator) flagChecks(kind model.ReportKind) []model.CheckResult {
	var checks []model.CheckResult
	defs := a.catalog.All()

	c := model.CheckResult{
		Name:     "flag-catalog-loaded",
		Category: CategoryFlags,
		Status:   model.CheckPass,
		Severity: model.SeverityHigh,
		Blocker:  kind == model.ReportProduction,
	}
	if len(defs) == 0 {
		c.Status = model.CheckFail
		c.Message = "flag catalog is empty"
	}
	checks = append(checks, c)

	c = model.CheckResult{
		Name:     "rollout-sanity",
		Category: CategoryFlags,
		Status:   model.CheckPass,
		Severity: model.SeverityLow,
	}
	zeroed := 0
	for _, d := range defs {
		if d.Enabled && d.RolloutPercentage == 0 {
			zeroed++
		}
	}
	if zeroed > 0 {
		c.Status = model.CheckWarning
		c.Message = fmt.Sprintf("%d enabled flags with 0%% rollout", zeroed)
	}
	checks = append(checks, c)

	if kind == model.ReportBetaCompletion {
		c = model.CheckResult{
			Name:     "beta-flag-coverage",
			Category: CategoryFlags,
			Status:   model.CheckPass,
			Severity: model.SeverityMedium,
		}
		betaFlags := 0
		for _, d := range defs {
			if d.Audience == model.AudienceRestrictedGroup {
				betaFlags++
			}
		}
		if betaFlags == 0 {
			c.Status = model.CheckWarning
			c.Message = "no restricted-group flags in catalog"
		}
		checks = append(checks, c)

		c = model.CheckResult{
			Name:     "beta-usage-signal",
			Category: CategoryFlags,
			Status:   model.CheckPass,
			Severity: model.SeverityLow,
		}
		if len(a.gate.UsageLog()) == 0 {
			c.Status = model.CheckWarning
			c.Message = "no flag usage recorded this session"
		}
		checks = append(checks, c)
	}

	return checks
}

func (a *Aggregator) deliveryChecks() []model.CheckResult {
	// true bundle size is unknowable at runtime: represented, never faked
	return []model.CheckResult{{
		Name:     "bundle-size",
		Category: CategoryDelivery,
		Status:   model.CheckNotConfigured,
		Severity: model.SeverityLow,
		Message:  "bundle size is not measurable at runtime",
	}}
}
