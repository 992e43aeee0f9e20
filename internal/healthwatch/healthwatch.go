// Package healthwatch polls the health registry for FIPS/Ent8/Ent16
// pass/fail flips and forwards them to the audit trail and the D-Bus
// notifier. Polling, rather than a callback hook on Monitor, keeps
// Monitor.Check on its hot path free of anything but the statistical
// tests themselves.
package healthwatch

import (
	"context"
	"time"

	"entropyd/internal/audit"
	"entropyd/internal/dbusnotify"
	"entropyd/internal/health"
)

// Watcher periodically snapshots every registered monitor and reports
// any test whose ok flag flipped since the previous poll.
type Watcher struct {
	auditLog *audit.Log
	notifier *dbusnotify.Notifier
	interval time.Duration

	last map[string]health.Stats
}

// New constructs a Watcher. Either auditLog or notifier may be nil, in
// which case that sink is simply skipped.
func New(auditLog *audit.Log, notifier *dbusnotify.Notifier, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		auditLog: auditLog,
		notifier: notifier,
		interval: interval,
		last:     make(map[string]health.Stats),
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	for _, m := range health.All() {
		next := m.Snapshot()
		prev, seen := w.last[next.ID]
		w.last[next.ID] = next
		if !seen {
			continue
		}

		w.reportIfChanged(next.ID, "fips", prev.FIPSOK, next.FIPSOK)
		w.reportIfChanged(next.ID, "ent8", prev.Ent8OK, next.Ent8OK)
		w.reportIfChanged(next.ID, "ent16", prev.Ent16OK, next.Ent16OK)
	}
}

func (w *Watcher) reportIfChanged(id, test string, before, after bool) {
	if before == after {
		return
	}
	if w.auditLog != nil {
		w.auditLog.RecordTransition(audit.Transition{
			SourceID:  id,
			TestName:  test,
			Timestamp: time.Now(),
			OKBefore:  before,
			OKAfter:   after,
		})
	}
	if w.notifier != nil {
		w.notifier.Notify(id, test, after)
	}
}
