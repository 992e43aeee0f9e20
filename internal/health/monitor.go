// Package health implements HealthMonitor: the per-source (and
// cross-source) wrapper around FIPS, Ent<8>, and Ent<16> that produces a
// single Check verdict, plus the process-wide registry HealthMonitors
// self-register into.
package health

import (
	"sync"

	"entropyd/internal/stats"
)

// defaults for Ent short-block lengths and long-term watermarks, per the
// glossary: 500_000 samples for W=8, 100_000_000 for W=16; long_minsamples
// 250MB for W=8, 800MB for W=16.
const (
	ShortBlockLenW8  = 500_000
	ShortBlockLenW16 = 100_000_000
	LongMinSamplesW8  = 250_000_000
	LongMinSamplesW16 = 800_000_000
)

// Monitor wraps FIPS plus Ent<8> and Ent<16> for one named channel (a
// source, a group, "Pool", or "Kernel"), applying the same hysteresis
// FIPS uses to the Ent ok-predicates as well: a channel is "good" only
// after sustained passing, "bad" on a single detected anomaly.
type Monitor struct {
	mu sync.Mutex

	ID string

	fips  *stats.FIPS
	ent8  *stats.Ent
	ent16 *stats.Ent

	fipsOK  bool
	ent8OK  bool
	ent16OK bool

	bytesAnalysed uint64
	bytesPassed   uint64

	// partialFIPSBuffer holds bytes not yet enough to form a complete
	// 2500-byte FIPS block.
	partialFIPSBuffer []byte

	// consecutive pass-run bookkeeping for the Ent hysteresis, mirroring
	// FIPS's own wasOK/consecutivePasses state machine.
	ent8WasOK, ent16WasOK                 bool
	ent8ConsecutivePasses, ent16Consecutive int

	// ent8PrevFail/ent16PrevFail are the cumulative FailCounts as of the
	// last updateEntOK call, letting it detect whether the *most recent*
	// flush introduced a new failure instead of re-triggering on every
	// flush after the first ever failure.
	ent8PrevFail, ent16PrevFail stats.FailCounts
}

// New constructs a HealthMonitor for id. assumeEnt8OK decides ent8Ok's
// initial value: true for slower sources (<5 Mbps) so the first block does
// not have to wait for the 500_000-sample Ent8 convergence window;
// ent16Ok always starts true; fipsOk always starts false.
func New(id string, assumeEnt8OK bool) *Monitor {
	m := &Monitor{
		ID:      id,
		fips:    stats.NewFIPS(),
		ent8:    stats.New(8, ShortBlockLenW8, LongMinSamplesW8),
		ent16:   stats.New(16, ShortBlockLenW16, LongMinSamplesW16),
		fipsOK:  false,
		ent8OK:  assumeEnt8OK,
		ent16OK: true,

		ent8WasOK:  assumeEnt8OK,
		ent16WasOK: true,
	}
	Register(m)
	return m
}

// Close deregisters the monitor from the process-wide registry.
func (m *Monitor) Close() {
	Deregister(m.ID)
}

// Check feeds buf (n bytes) into ent8 and ent16, assembles complete
// 2500-byte FIPS blocks from a rolling remainder, updates fipsOK/ent8OK/
// ent16OK, and returns the composite verdict.
func (m *Monitor) Check(buf []byte, n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := buf[:n]

	m.ent8.Update(stats.WidenSamples(8, data), data)
	m.ent16.Update(stats.WidenSamples(16, data), data)

	m.partialFIPSBuffer = append(m.partialFIPSBuffer, data...)
	for len(m.partialFIPSBuffer) >= stats.BlockBytes {
		block := m.partialFIPSBuffer[:stats.BlockBytes]
		m.fips.Process(block)
		m.fipsOK = m.fips.IsOK()
		m.partialFIPSBuffer = append([]byte(nil), m.partialFIPSBuffer[stats.BlockBytes:]...)
	}

	m.ent8OK = m.updateEntOK(m.ent8, &m.ent8WasOK, &m.ent8ConsecutivePasses, &m.ent8PrevFail)
	m.ent16OK = m.updateEntOK(m.ent16, &m.ent16WasOK, &m.ent16Consecutive, &m.ent16PrevFail)

	ok := m.fipsOK && m.ent8OK && m.ent16OK

	m.bytesAnalysed += uint64(n)
	if ok {
		m.bytesPassed += uint64(n)
	}

	return ok
}

// updateEntOK applies a hysteresis (a single failed flush breaks ok, 20
// consecutive passing flushes restore it) to an Ent accumulator's
// per-flush failure counts. prevFail holds the cumulative FailCounts as
// of the previous call, so only a failure introduced by the *most
// recent* flush (the delta, not the running total) can break ok -- the
// running totals returned by e.Fail() never decrease, so testing them
// directly would latch justFailed forever after the first failure and
// the 20-consecutive-pass recovery could never fire.
func (m *Monitor) updateEntOK(e *stats.Ent, wasOK *bool, consecutive *int, prevFail *stats.FailCounts) bool {
	fail := e.Fail()
	if fail.Tested == prevFail.Tested {
		// no new flush since the last call
		return *wasOK
	}

	justFailed := failedThisFlush(fail, *prevFail)
	*prevFail = fail

	if *wasOK {
		if justFailed {
			*wasOK = false
			*consecutive = 0
			return false
		}
		*consecutive++
		return true
	}

	if justFailed {
		*consecutive = 0
		return false
	}
	*consecutive++
	if *consecutive >= 20 {
		*wasOK = true
		return true
	}
	return false
}

// failedThisFlush reports whether any sub-metric's cumulative failure
// count grew between prev and total, i.e. whether the flush that
// produced total (and not some earlier one) failed.
func failedThisFlush(total, prev stats.FailCounts) bool {
	return total.Entropy > prev.Entropy || total.Chisq > prev.Chisq ||
		total.Mean > prev.Mean || total.Pi > prev.Pi ||
		total.Corr > prev.Corr || total.MinEntropy > prev.MinEntropy
}

// Stats is a snapshot of a Monitor's public counters, used by ReportStats.
type Stats struct {
	ID            string
	FIPSOK        bool
	Ent8OK        bool
	Ent16OK       bool
	BytesAnalysed uint64
	BytesPassed   uint64
	Ent8          stats.Triple
	Ent16         stats.Triple
}

// Snapshot returns the monitor's current public state.
func (m *Monitor) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		ID:            m.ID,
		FIPSOK:        m.fipsOK,
		Ent8OK:        m.ent8OK,
		Ent16OK:       m.ent16OK,
		BytesAnalysed: m.bytesAnalysed,
		BytesPassed:   m.bytesPassed,
		Ent8:          m.ent8.Results(),
		Ent16:         m.ent16.Results(),
	}
}

// FIPSSnapshot returns the FIPS sub-system's diagnostic view -- blocks
// analysed and the current (read-only) OK state -- under the monitor's
// mutex. stats.FIPS has no internal lock of its own: Check mutates it
// directly under m.mu, so any other reader must go through here rather
// than dereference a raw *stats.FIPS.
func (m *Monitor) FIPSSnapshot() (blocksAnalysed uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fips.BlocksAnalysed(), m.fips.OK()
}

// Ent8 exposes the underlying Ent<8> accumulator. Ent is safe for
// concurrent use on its own (see internal/stats/ent.go), unlike FIPS.
func (m *Monitor) Ent8() *stats.Ent { return m.ent8 }

// Ent16 exposes the underlying Ent<16> accumulator.
func (m *Monitor) Ent16() *stats.Ent { return m.ent16 }
