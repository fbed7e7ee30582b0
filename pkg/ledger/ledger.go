// Package ledger tracks every live timer, interval and event listener the
// host application registers through it, together with the component
// registry those listeners hang off. It is the shared mutable heart of the
// governance layer: detectors read its counters, and remediation sweeps
// happen here.
package ledger

import (
	"reflect"
	"sync"
	"time"
)

// TimerID is an opaque handle for a tracked timer or interval.
type TimerID int64

// Callback is an event listener body. Removal matches on exact function
// identity, mirroring native listener semantics.
type Callback func(payload any)

type listenerEntry struct {
	ptr uintptr
	cb  Callback
}

type component struct {
	registeredAt time.Time
	lastTouched  time.Time
}

// Ledger is constructed once per process by the runtime and handed to
// consumers; double installation would double-count every registration.
type Ledger struct {
	timers TimerProvider

	mx        sync.Mutex
	nextID    TimerID
	active    map[TimerID]CancelFunc // one-shot timers
	repeating map[TimerID]CancelFunc // intervals
	// listeners is owner -> eventType -> callbacks.
	listeners map[string]map[string][]listenerEntry
	comps     map[string]*component
	now       func() time.Time
}

func New(timers TimerProvider) *Ledger {
	return &Ledger{
		timers:    timers,
		active:    map[TimerID]CancelFunc{},
		repeating: map[TimerID]CancelFunc{},
		listeners: map[string]map[string][]listenerEntry{},
		comps:     map[string]*component{},
		now:       time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// SetTimer schedules fn once after d. The handle is recorded before the
// timer can fire; the callback self-removes exactly once even if a test
// double invokes it twice.
func (l *Ledger) SetTimer(d time.Duration, fn func()) TimerID {
	l.mx.Lock()
	l.nextID++
	id := l.nextID
	l.active[id] = nil
	l.mx.Unlock()

	cancel := l.timers.AfterFunc(d, func() {
		if l.completeTimer(id) {
			fn()
		}
	})

	l.mx.Lock()
	if _, live := l.active[id]; live {
		l.active[id] = cancel
	}
	l.mx.Unlock()
	return id
}

// completeTimer removes id from the active set, reporting whether this
// call was the one that removed it.
func (l *Ledger) completeTimer(id TimerID) bool {
	l.mx.Lock()
	defer l.mx.Unlock()
	if _, ok := l.active[id]; !ok {
		return false
	}
	delete(l.active, id)
	return true
}

// ClearTimer cancels a pending timer. Unknown ids are a no-op.
func (l *Ledger) ClearTimer(id TimerID) {
	l.mx.Lock()
	cancel, ok := l.active[id]
	delete(l.active, id)
	l.mx.Unlock()
	if ok && cancel != nil {
		cancel()
	}
}

// SetRepeatingTimer schedules fn every d until cleared.
func (l *Ledger) SetRepeatingTimer(d time.Duration, fn func()) TimerID {
	l.mx.Lock()
	l.nextID++
	id := l.nextID
	l.repeating[id] = nil
	l.mx.Unlock()

	cancel := l.timers.TickFunc(d, fn)

	l.mx.Lock()
	if _, live := l.repeating[id]; live {
		l.repeating[id] = cancel
	} else {
		// cleared before we stored the cancel
		l.mx.Unlock()
		cancel()
		return id
	}
	l.mx.Unlock()
	return id
}

// ClearRepeatingTimer stops an interval. Unknown ids are a no-op.
func (l *Ledger) ClearRepeatingTimer(id TimerID) {
	l.mx.Lock()
	cancel, ok := l.repeating[id]
	delete(l.repeating, id)
	l.mx.Unlock()
	if ok && cancel != nil {
		cancel()
	}
}

// AddListener registers cb for eventType on behalf of ownerID.
func (l *Ledger) AddListener(ownerID, eventType string, cb Callback) {
	if cb == nil {
		return
	}
	l.mx.Lock()
	defer l.mx.Unlock()
	byEvent, ok := l.listeners[ownerID]
	if !ok {
		byEvent = map[string][]listenerEntry{}
		l.listeners[ownerID] = byEvent
	}
	byEvent[eventType] = append(byEvent[eventType], listenerEntry{
		ptr: reflect.ValueOf(cb).Pointer(),
		cb:  cb,
	})
}

// RemoveListener removes the first registration matching (owner, event,
// callback identity). No match is a no-op, mirroring native semantics.
func (l *Ledger) RemoveListener(ownerID, eventType string, cb Callback) {
	if cb == nil {
		return
	}
	target := reflect.ValueOf(cb).Pointer()
	l.mx.Lock()
	defer l.mx.Unlock()
	entries := l.listeners[ownerID][eventType]
	for i, e := range entries {
		if e.ptr == target {
			l.listeners[ownerID][eventType] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	l.pruneOwnerLocked(ownerID)
}

// Emit dispatches payload to every listener registered for eventType, in
// registration order per owner.
func (l *Ledger) Emit(eventType string, payload any) {
	l.mx.Lock()
	var cbs []Callback
	for _, byEvent := range l.listeners {
		for _, e := range byEvent[eventType] {
			cbs = append(cbs, e.cb)
		}
	}
	l.mx.Unlock()
	for _, cb := range cbs {
		cb(payload)
	}
}

// RegisterComponent records ownerID as attached.
func (l *Ledger) RegisterComponent(ownerID string) {
	l.mx.Lock()
	defer l.mx.Unlock()
	now := l.now()
	l.comps[ownerID] = &component{registeredAt: now, lastTouched: now}
}

// TouchComponent refreshes a component's last-touched timestamp.
func (l *Ledger) TouchComponent(ownerID string) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if c, ok := l.comps[ownerID]; ok {
		c.lastTouched = l.now()
	}
}

// DeregisterComponent detaches ownerID. Its remaining listeners become
// orphans until the next sweep.
func (l *Ledger) DeregisterComponent(ownerID string) {
	l.mx.Lock()
	defer l.mx.Unlock()
	delete(l.comps, ownerID)
}

func (l *Ledger) CountActiveTimers() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return len(l.active)
}

func (l *Ledger) CountActiveIntervals() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return len(l.repeating)
}

func (l *Ledger) CountActiveListeners() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.countListenersLocked()
}

func (l *Ledger) countListenersLocked() int {
	n := 0
	for _, byEvent := range l.listeners {
		for _, entries := range byEvent {
			n += len(entries)
		}
	}
	return n
}

// CountOrphanedListeners reports listeners whose owner is detached.
func (l *Ledger) CountOrphanedListeners() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	n := 0
	for owner, byEvent := range l.listeners {
		if _, attached := l.comps[owner]; attached {
			continue
		}
		for _, entries := range byEvent {
			n += len(entries)
		}
	}
	return n
}

// SweepOrphanedListeners removes every listener whose owner is no longer
// registered and returns the number removed. Orphans can never fire
// usefully again, so removal is safe remediation rather than data loss.
// A second sweep with no new registrations returns 0.
func (l *Ledger) SweepOrphanedListeners() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	removed := 0
	for owner, byEvent := range l.listeners {
		if _, attached := l.comps[owner]; attached {
			continue
		}
		for _, entries := range byEvent {
			removed += len(entries)
		}
		delete(l.listeners, owner)
	}
	return removed
}

func (l *Ledger) ComponentCount() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return len(l.comps)
}

// StaleComponents returns ids of components idle longer than age.
func (l *Ledger) StaleComponents(age time.Duration) []string {
	l.mx.Lock()
	defer l.mx.Unlock()
	cutoff := l.now().Add(-age)
	var out []string
	for id, c := range l.comps {
		if c.lastTouched.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

// DropStaleComponents deregisters components idle longer than age and
// returns how many were dropped.
func (l *Ledger) DropStaleComponents(age time.Duration) int {
	l.mx.Lock()
	defer l.mx.Unlock()
	cutoff := l.now().Add(-age)
	dropped := 0
	for id, c := range l.comps {
		if c.lastTouched.Before(cutoff) {
			delete(l.comps, id)
			dropped++
		}
	}
	return dropped
}

// Cleanup cancels everything the ledger owns and clears all state. Safe to
// call at any point, including before anything was registered.
func (l *Ledger) Cleanup() {
	l.mx.Lock()
	cancels := make([]CancelFunc, 0, len(l.active)+len(l.repeating))
	for _, c := range l.active {
		if c != nil {
			cancels = append(cancels, c)
		}
	}
	for _, c := range l.repeating {
		if c != nil {
			cancels = append(cancels, c)
		}
	}
	l.active = map[TimerID]CancelFunc{}
	l.repeating = map[TimerID]CancelFunc{}
	l.listeners = map[string]map[string][]listenerEntry{}
	l.comps = map[string]*component{}
	l.mx.Unlock()
	for _, c := range cancels {
		c()
	}
}

func (l *Ledger) pruneOwnerLocked(ownerID string) {
	byEvent, ok := l.listeners[ownerID]
	if !ok {
		return
	}
	for event, entries := range byEvent {
		if len(entries) == 0 {
			delete(byEvent, event)
		}
	}
	if len(byEvent) == 0 {
		delete(l.listeners, ownerID)
	}
}
