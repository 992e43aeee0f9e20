package health

import "sync"

// registry is the process-wide, lazily-initialised table of
// HealthMonitors, keyed by id. Entries self-register on construction and
// self-deregister on Close: weak, non-owning references -- the registry
// never keeps a Monitor alive on its own.
var registry sync.Map // string -> *Monitor

// Register adds m to the process-wide registry under m.ID, replacing any
// previous entry of the same id.
func Register(m *Monitor) {
	registry.Store(m.ID, m)
}

// Deregister removes id from the registry.
func Deregister(id string) {
	registry.Delete(id)
}

// Lookup returns the monitor registered under id, if any.
func Lookup(id string) (*Monitor, bool) {
	v, ok := registry.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Monitor), true
}

// IDs returns every currently-registered monitor id, in unspecified order.
func IDs() []string {
	var ids []string
	registry.Range(func(k, v any) bool {
		ids = append(ids, k.(string))
		return true
	})
	return ids
}

// All returns a snapshot slice of every registered monitor.
func All() []*Monitor {
	var ms []*Monitor
	registry.Range(func(_, v any) bool {
		ms = append(ms, v.(*Monitor))
		return true
	})
	return ms
}
