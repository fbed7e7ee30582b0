// Package alert keeps the bounded, append-only log of detector findings
// and their resolve/assign lifecycle.
package alert

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/quillmind/governd/pkg/buffer"
	"github.com/quillmind/governd/pkg/model"
	"github.com/quillmind/governd/pkg/storage"
)

// LogCap bounds the retained findings; the oldest entry is evicted in the
// same call that appends past the cap.
const LogCap = 100

// NewFinding stamps a detector result. Severity is assigned here, once,
// and never recomputed.
func NewFinding(kind model.FindingKind, severity model.Severity, message string, details map[string]any) model.Finding {
	return model.Finding{
		ID:        uuid.NewString(),
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
		Details:   details,
	}
}

// Log is the capped finding history. Critical findings are additionally
// published to subscribers (the banner hook); a slow subscriber drops the
// event rather than blocking a detector.
type Log struct {
	store *storage.Store

	mx       sync.Mutex
	findings *buffer.Ring[model.Finding]
	subs     []chan model.Finding
}

func NewLog(store *storage.Store) *Log {
	l := &Log{
		store:    store,
		findings: buffer.NewRing[model.Finding](LogCap),
	}
	if store != nil {
		var items []model.Finding
		if store.GetJSON(storage.KeyAlerts, &items) {
			l.findings.Replace(items)
		}
	}
	return l
}

// Append records f, evicting the oldest entry if the log is full.
func (l *Log) Append(f model.Finding) {
	l.mx.Lock()
	l.findings.Append(f)
	items := l.findings.Items()
	var subs []chan model.Finding
	if f.Severity == model.SeverityCritical {
		subs = append(subs, l.subs...)
	}
	l.mx.Unlock()

	log.WithFields(log.Fields{
		"kind":     f.Kind,
		"severity": f.Severity,
	}).Info(f.Message)

	for _, ch := range subs {
		select {
		case ch <- f:
		default:
		}
	}
	if l.store != nil {
		_ = l.store.PutJSON(storage.KeyAlerts, items)
	}
}

// SubscribeCritical returns a channel receiving critical findings as they
// are appended.
func (l *Log) SubscribeCritical() <-chan model.Finding {
	ch := make(chan model.Finding, 8)
	l.mx.Lock()
	l.subs = append(l.subs, ch)
	l.mx.Unlock()
	return ch
}

// Resolve marks the finding with id resolved. Unknown ids report false.
func (l *Log) Resolve(id string) bool {
	return l.update(id, func(f *model.Finding) { f.Resolved = true })
}

// Assign attaches an owner to the finding with id.
func (l *Log) Assign(id, assignee string) bool {
	return l.update(id, func(f *model.Finding) { f.AssignedTo = assignee })
}

func (l *Log) update(id string, apply func(*model.Finding)) bool {
	l.mx.Lock()
	items := l.findings.Items()
	found := false
	for i := range items {
		if items[i].ID == id {
			apply(&items[i])
			found = true
			break
		}
	}
	if found {
		l.findings.Replace(items)
	}
	l.mx.Unlock()
	if found && l.store != nil {
		_ = l.store.PutJSON(storage.KeyAlerts, items)
	}
	return found
}

// All returns the retained findings, oldest first.
func (l *Log) All() []model.Finding {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.findings.Items()
}

// Unresolved returns findings not yet resolved.
func (l *Log) Unresolved() []model.Finding {
	var out []model.Finding
	for _, f := range l.All() {
		if !f.Resolved {
			out = append(out, f)
		}
	}
	return out
}

// UnresolvedCritical counts open critical findings; a non-zero count
// blocks every readiness verdict.
func (l *Log) UnresolvedCritical() int {
	n := 0
	for _, f := range l.All() {
		if !f.Resolved && f.Severity == model.SeverityCritical {
			n++
		}
	}
	return n
}

func (l *Log) Len() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.findings.Len()
}
