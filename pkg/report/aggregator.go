// Package report pulls current gate, ledger, alert and snapshot state into
// scored readiness reports with capped per-kind histories.
package report

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillmind/governd/pkg/alert"
	"github.com/quillmind/governd/pkg/buffer"
	"github.com/quillmind/governd/pkg/flags"
	"github.com/quillmind/governd/pkg/ledger"
	"github.com/quillmind/governd/pkg/model"
	"github.com/quillmind/governd/pkg/snapshot"
	"github.com/quillmind/governd/pkg/storage"
)

// HistoryCap bounds each kind's report history.
const HistoryCap = 10

// Check contribution credits. The 0.7 warning credit is an operational
// heuristic, not derived.
const (
	creditPass          = 1.0
	creditWarning       = 0.7
	creditNotConfigured = 0.7
	creditFailPartial   = 0.3
	creditFailCritical  = 0.0
)

// Pass thresholds per report kind, on the 0-100 score.
var passThresholds = map[model.ReportKind]float64{
	model.ReportTest:           90,
	model.ReportQA:             80,
	model.ReportProduction:     85,
	model.ReportBetaCompletion: 75,
}

// categoryWeights per kind sum to 1.0 over the categories that kind
// actually measures.
var categoryWeights = map[model.ReportKind]map[string]float64{
	model.ReportTest: {
		CategoryStability: 0.25,
		CategoryResources: 0.25,
		CategorySecurity:  0.25,
		CategoryFlags:     0.25,
	},
	model.ReportQA: {
		CategoryStability: 0.25,
		CategoryResources: 0.25,
		CategorySecurity:  0.20,
		CategoryFlags:     0.15,
		CategoryDelivery:  0.15,
	},
	model.ReportProduction: {
		CategoryStability: 0.30,
		CategoryResources: 0.25,
		CategorySecurity:  0.25,
		CategoryFlags:     0.10,
		CategoryDelivery:  0.10,
	},
	model.ReportBetaCompletion: {
		CategoryStability: 0.20,
		CategoryResources: 0.15,
		CategorySecurity:  0.15,
		CategoryFlags:     0.50,
	},
}

// Aggregator builds reports from the live governance services.
type Aggregator struct {
	catalog *flags.Catalog
	gate    *flags.Gate
	ledger  *ledger.Ledger
	alerts  *alert.Log
	sampler *snapshot.Sampler
	store   *storage.Store

	mx        sync.Mutex
	histories map[model.ReportKind]*buffer.Ring[model.Report]
}

func NewAggregator(catalog *flags.Catalog, gate *flags.Gate, l *ledger.Ledger, alerts *alert.Log, sampler *snapshot.Sampler, store *storage.Store) *Aggregator {
	a := &Aggregator{
		catalog:   catalog,
		gate:      gate,
		ledger:    l,
		alerts:    alerts,
		sampler:   sampler,
		store:     store,
		histories: map[model.ReportKind]*buffer.Ring[model.Report]{},
	}
	for kind := range passThresholds {
		ring := buffer.NewRing[model.Report](HistoryCap)
		if store != nil {
			var items []model.Report
			if store.GetJSON(storage.KeyReportPrefix+string(kind), &items) {
				ring.Replace(items)
			}
		}
		a.histories[kind] = ring
	}
	return a
}

// Build assembles, scores and persists one report. The report is
// write-once: appended to its kind's history and returned, never mutated.
func (a *Aggregator) Build(kind model.ReportKind, version string) (model.Report, error) {
	weights, ok := categoryWeights[kind]
	if !ok {
		return model.Report{}, errors.New(model.ReportKindErrorCode)
	}

	var checks []model.CheckResult
	checks = append(checks, a.stabilityChecks(kind)...)
	checks = append(checks, a.resourceChecks()...)
	checks = append(checks, a.securityChecks(kind)...)
	checks = append(checks, a.flagChecks(kind)...)
	if _, measured := weights[CategoryDelivery]; measured {
		checks = append(checks, a.deliveryChecks()...)
	}

	score := Score(checks, weights)
	blocking := blockingReasons(checks, score, passThresholds[kind], a.alerts.UnresolvedCritical())

	rep := model.Report{
		ID:              uuid.NewString(),
		Kind:            kind,
		Timestamp:       time.Now(),
		Version:         version,
		Score:           score,
		Passed:          len(blocking) == 0,
		Checks:          checks,
		BlockingReasons: blocking,
		Recommendations: recommendations(checks),
	}

	a.mx.Lock()
	a.histories[kind].Append(rep)
	items := a.histories[kind].Items()
	a.mx.Unlock()
	if a.store != nil {
		_ = a.store.PutJSON(storage.KeyReportPrefix+string(kind), items)
	}
	return rep, nil
}

// History returns the retained reports for kind, oldest first.
func (a *Aggregator) History(kind model.ReportKind) []model.Report {
	a.mx.Lock()
	defer a.mx.Unlock()
	ring, ok := a.histories[kind]
	if !ok {
		return nil
	}
	return ring.Items()
}

// Score computes the category-weighted 0-100 score. Within a category each
// check contributes its status credit; a failing critical check zeroes its
// own contribution.
func Score(checks []model.CheckResult, weights map[string]float64) float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, c := range checks {
		sums[c.Category] += contribution(c)
		counts[c.Category]++
	}
	var score float64
	for category, weight := range weights {
		if counts[category] == 0 {
			continue
		}
		score += weight * (sums[category] / float64(counts[category]))
	}
	return score * 100
}

func contribution(c model.CheckResult) float64 {
	switch c.Status {
	case model.CheckPass:
		return creditPass
	case model.CheckWarning:
		return creditWarning
	case model.CheckNotConfigured:
		return creditNotConfigured
	case model.CheckFail:
		if c.Severity == model.SeverityCritical {
			return creditFailCritical
		}
		return creditFailPartial
	default:
		return creditFailPartial
	}
}

func blockingReasons(checks []model.CheckResult, score, threshold float64, unresolvedCritical int) []string {
	var reasons []string
	if score < threshold {
		reasons = append(reasons, fmt.Sprintf("score %.1f below threshold %.0f", score, threshold))
	}
	for _, c := range checks {
		if c.Blocker && c.Status == model.CheckFail {
			reasons = append(reasons, fmt.Sprintf("blocker check %q failed: %s", c.Name, c.Message))
		}
	}
	if unresolvedCritical > 0 {
		reasons = append(reasons, fmt.Sprintf("%d unresolved critical alerts", unresolvedCritical))
	}
	return reasons
}

func recommendations(checks []model.CheckResult) []string {
	var recs []string
	for _, c := range checks {
		switch c.Status {
		case model.CheckFail:
			recs = append(recs, fmt.Sprintf("fix %s: %s", c.Name, c.Message))
		case model.CheckWarning:
			recs = append(recs, fmt.Sprintf("review %s: %s", c.Name, c.Message))
		}
	}
	return recs
}
