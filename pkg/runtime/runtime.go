// Package runtime constructs the governance services once per process and
// owns their lifecycle: monitoring start/stop, scheduled reports, cleanup.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/quillmind/governd/pkg/alert"
	"github.com/quillmind/governd/pkg/flags"
	"github.com/quillmind/governd/pkg/leak"
	"github.com/quillmind/governd/pkg/ledger"
	"github.com/quillmind/governd/pkg/model"
	"github.com/quillmind/governd/pkg/report"
	"github.com/quillmind/governd/pkg/service"
	"github.com/quillmind/governd/pkg/snapshot"
	"github.com/quillmind/governd/pkg/storage"
	"github.com/quillmind/governd/pkg/telemetry"
	"github.com/quillmind/governd/pkg/threat"
)

const (
	DefaultDetectInterval = 30 * time.Second
	DefaultReportSchedule = "@hourly"
)

type Config struct {
	CatalogPath    string
	DataDir        string
	Port           int32
	Version        string
	SampleInterval time.Duration
	DetectInterval time.Duration
	ReportSchedule string
}

// Runtime wires the governance layer together. Construct one per process;
// everything downstream receives its services by handle, never through
// ambient globals.
type Runtime struct {
	config Config

	Store    *storage.Store
	Catalog  *flags.Catalog
	Gate     *flags.Gate
	Ledger   *ledger.Ledger
	Sampler  *snapshot.Sampler
	Detector *leak.Detector
	Scanner  *threat.Scanner
	Alerts   *alert.Log
	Reports  *report.Aggregator

	timers ledger.TimerProvider

	mx         sync.Mutex
	detectStop ledger.CancelFunc
	watchStop  func()
	cron       *cron.Cron
	cleanedUp  bool
}

// New builds the service graph. The store is optional: a failed open
// degrades to in-memory operation rather than refusing to start.
func New(config Config) *Runtime {
	if config.DetectInterval <= 0 {
		config.DetectInterval = DefaultDetectInterval
	}
	if config.ReportSchedule == "" {
		config.ReportSchedule = DefaultReportSchedule
	}

	store, err := storage.Open(config.DataDir)
	if err != nil {
		log.Errorf("runtime: storage unavailable, continuing in memory: %v", err)
		store = nil
	}

	catalog := flags.DefaultCatalog()
	if config.CatalogPath != "" {
		if err := catalog.LoadFile(config.CatalogPath); err != nil {
			log.Errorf("runtime: flag catalog %s rejected, using builtin: %v", config.CatalogPath, err)
		}
	}

	timers := ledger.ClockTimers{}
	l := ledger.New(timers)
	alerts := alert.NewLog(store)
	gate := flags.NewGate(catalog, store)
	sampler := snapshot.NewSampler(l, nil, store, config.SampleInterval)
	scanner := threat.NewScanner(alerts)
	detector := leak.NewDetector(l)
	reports := report.NewAggregator(catalog, gate, l, alerts, sampler, store)

	return &Runtime{
		config:   config,
		Store:    store,
		Catalog:  catalog,
		Gate:     gate,
		Ledger:   l,
		Sampler:  sampler,
		Detector: detector,
		Scanner:  scanner,
		Alerts:   alerts,
		Reports:  reports,
		timers:   timers,
	}
}

// Start launches monitoring, the catalog watch, the report schedule and
// the admin service, then blocks until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	r.startMonitoring()

	if r.config.CatalogPath != "" {
		stop, err := r.Catalog.Watch(r.config.CatalogPath)
		if err != nil {
			log.Errorf("runtime: catalog watch: %v", err)
		} else {
			r.mx.Lock()
			r.watchStop = stop
			r.mx.Unlock()
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(r.config.ReportSchedule, func() {
		if _, err := r.Reports.Build(model.ReportQA, r.config.Version); err != nil {
			log.Errorf("runtime: scheduled report: %v", err)
		}
	}); err != nil {
		log.Errorf("runtime: report schedule %q: %v", r.config.ReportSchedule, err)
	} else {
		c.Start()
		r.mx.Lock()
		r.cron = c
		r.mx.Unlock()
	}

	var httpService service.IService = &service.HTTPService{
		HTTPServiceConfiguration: &service.HTTPServiceConfiguration{Port: r.config.Port},
		Gate:                     r.Gate,
		Scanner:                  r.Scanner,
		Alerts:                   r.Alerts,
		Reports:                  r.Reports,
		Sampler:                  r.Sampler,
	}

	err := httpService.Serve(ctx)
	r.Cleanup()
	return err
}

func (r *Runtime) startMonitoring() {
	r.Sampler.Start(r.timers)
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.detectStop == nil {
		r.detectStop = r.timers.TickFunc(r.config.DetectInterval, r.detect)
	}
}

// detect runs one leak evaluation pass and refreshes the gauges.
func (r *Runtime) detect() {
	findings := r.Detector.Evaluate(r.Sampler.History())
	for _, f := range findings {
		r.Alerts.Append(f)
		telemetry.FindingsTotal.WithLabelValues(string(f.Severity)).Inc()
	}

	telemetry.ActiveTimers.Set(float64(r.Ledger.CountActiveTimers()))
	telemetry.ActiveIntervals.Set(float64(r.Ledger.CountActiveIntervals()))
	telemetry.ActiveListeners.Set(float64(r.Ledger.CountActiveListeners()))
	telemetry.TrackedComponents.Set(float64(r.Ledger.ComponentCount()))
	telemetry.AlertBacklog.Set(float64(len(r.Alerts.Unresolved())))
	if history := r.Sampler.History(); len(history) > 0 {
		telemetry.HeapUsedBytes.Set(float64(history[len(history)-1].UsedHeapBytes))
	}
}

// PauseMonitoring stops the sampling and detection ticks without losing
// collected history. Idempotent.
func (r *Runtime) PauseMonitoring() {
	r.Sampler.Pause()
	r.mx.Lock()
	stop := r.detectStop
	r.detectStop = nil
	r.mx.Unlock()
	if stop != nil {
		stop()
	}
}

// ResumeMonitoring restarts monitoring after a pause. Resuming while
// already running is a no-op.
func (r *Runtime) ResumeMonitoring() {
	r.startMonitoring()
}

// Cleanup is the terminal operation: cancels everything owned here and
// clears the ledger. Safe to call even if monitoring never started, and
// safe to call twice.
func (r *Runtime) Cleanup() {
	r.PauseMonitoring()

	r.mx.Lock()
	watchStop := r.watchStop
	r.watchStop = nil
	c := r.cron
	r.cron = nil
	done := r.cleanedUp
	r.cleanedUp = true
	r.mx.Unlock()

	if watchStop != nil {
		watchStop()
	}
	if c != nil {
		c.Stop()
	}
	r.Ledger.Cleanup()
	if !done && r.Store != nil {
		if err := r.Store.Close(); err != nil {
			log.Errorf("runtime: closing store: %v", err)
		}
	}
}
