package dbusnotify

import "testing"

func TestNotifyWithoutBusIsNoop(t *testing.T) {
	n := &Notifier{}
	n.Notify("hwrng-a", "fips", false) // must not panic without a connection
}

func TestCloseWithoutBusIsNoop(t *testing.T) {
	n := &Notifier{}
	if err := n.Close(); err != nil {
		t.Fatalf("Close on unconnected notifier should not error: %v", err)
	}
}
