// Package snapshot samples runtime resource counters on a fixed cadence
// and keeps a bounded, persisted history of the readings.
package snapshot

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"

	"github.com/quillmind/governd/pkg/buffer"
	"github.com/quillmind/governd/pkg/ledger"
	"github.com/quillmind/governd/pkg/model"
	"github.com/quillmind/governd/pkg/storage"
)

const (
	// HistoryCap bounds the retained snapshot history.
	HistoryCap = 50
	// DefaultInterval is the sampling cadence.
	DefaultInterval = 10 * time.Second
)

// NodeCounter reports the host's live element count. The host wires in
// whatever "node" means for it; nil means the ledger's component count is
// used as a stand-in.
type NodeCounter interface {
	NodeCount() int
}

// Sampler captures RuntimeSnapshots from the ledger, the Go heap and
// system memory. Pause and Resume are idempotent and never drop history.
type Sampler struct {
	ledger   *ledger.Ledger
	nodes    NodeCounter
	store    *storage.Store
	interval time.Duration

	mx      sync.Mutex
	history *buffer.Ring[model.RuntimeSnapshot]
	cancel  ledger.CancelFunc
}

func NewSampler(l *ledger.Ledger, nodes NodeCounter, store *storage.Store, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Sampler{
		ledger:   l,
		nodes:    nodes,
		store:    store,
		interval: interval,
		history:  buffer.NewRing[model.RuntimeSnapshot](HistoryCap),
	}
	if store != nil {
		var items []model.RuntimeSnapshot
		if store.GetJSON(storage.KeySnapshots, &items) {
			s.history.Replace(items)
		}
	}
	return s
}

// Start begins sampling through the given timer provider. Calling Start
// while already running is a no-op.
func (s *Sampler) Start(timers ledger.TimerProvider) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.cancel != nil {
		return
	}
	s.cancel = timers.TickFunc(s.interval, s.Sample)
}

// Pause stops the sampling tick, keeping all collected history. Idempotent.
func (s *Sampler) Pause() {
	s.mx.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mx.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Resume restarts sampling after a Pause. Resuming while running is a
// no-op.
func (s *Sampler) Resume(timers ledger.TimerProvider) {
	s.Start(timers)
}

// Sample captures one fully-populated snapshot, appends it and persists
// the trimmed history.
func (s *Sampler) Sample() {
	snap := s.capture()

	s.mx.Lock()
	s.history.Append(snap)
	items := s.history.Items()
	s.mx.Unlock()

	if s.store != nil {
		_ = s.store.PutJSON(storage.KeySnapshots, items)
	}
}

func (s *Sampler) capture() model.RuntimeSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	var limit uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		limit = vm.Total
	} else {
		// heap-limit dependent rules skip when this stays zero
		log.Debugf("snapshot: system memory unavailable: %v", err)
	}

	nodeCount := s.ledger.ComponentCount()
	if s.nodes != nil {
		nodeCount = s.nodes.NodeCount()
	}

	return model.RuntimeSnapshot{
		Timestamp:             time.Now(),
		UsedHeapBytes:         ms.HeapAlloc,
		TotalHeapBytes:        ms.HeapSys,
		HeapLimitBytes:        limit,
		TrackedComponentCount: s.ledger.ComponentCount(),
		ActiveListenerCount:   s.ledger.CountActiveListeners(),
		NodeCount:             nodeCount,
	}
}

// History returns the retained snapshots, oldest first.
func (s *Sampler) History() []model.RuntimeSnapshot {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.history.Items()
}

// Running reports whether the sampling tick is active.
func (s *Sampler) Running() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.cancel != nil
}
