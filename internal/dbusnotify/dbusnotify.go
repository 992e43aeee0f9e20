// Package dbusnotify emits a best-effort D-Bus signal whenever a
// source's health state changes, for desktop session integration. It is
// deliberately not a daemon dependency: construction failures or a
// disconnected bus only disable notification, they never fail startup.
package dbusnotify

import (
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	busName      = "com.entropyd.Monitor"
	objectPath   = dbus.ObjectPath("/com/entropyd/Monitor")
	signalIface  = "com.entropyd.Monitor"
	healthSignal = "HealthChanged"
)

// Notifier emits HealthChanged signals on the session bus. A nil or
// disconnected Notifier is safe to call Notify on; it just does nothing.
type Notifier struct {
	mu   sync.Mutex
	conn *dbus.Conn
	log  *slog.Logger
}

// New connects to the session bus and requests ownership of the
// entropyd notification name. If the bus is unavailable (headless
// system service with no session bus), it returns a Notifier whose
// Notify calls are no-ops rather than an error, since D-Bus
// notification is an optional convenience, not a correctness
// requirement of any daemon operation.
func New(log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	n := &Notifier{log: log}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Warn("dbusnotify: session bus unavailable, notifications disabled", "error", err)
		return n
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil || reply != dbus.RequestNameReplyPrimaryOwner {
		log.Warn("dbusnotify: could not claim bus name, notifications disabled", "name", busName, "error", err)
		conn.Close()
		return n
	}

	n.conn = conn
	return n
}

// Notify emits a HealthChanged(sourceID, test, ok) signal. It is a
// no-op if the bus connection was never established.
func (n *Notifier) Notify(sourceID, test string, ok bool) {
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()

	if conn == nil {
		return
	}

	if err := conn.Emit(objectPath, signalIface+"."+healthSignal, sourceID, test, ok); err != nil {
		n.log.Warn("dbusnotify: emit failed", "error", err)
	}
}

// Close releases the bus connection, if any.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}
