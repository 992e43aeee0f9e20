// Package stats implements the running statistical analysers: Ent[W] (the
// ENT-style suite parameterised on symbol width W), BitRuns, and FIPS.
// Each maintains both short-term (per-block) and long-term (running)
// accumulators with overflow-safe normalisation.
package stats

import (
	"math"
	"sync"
)

// noPrevSample is the sentinel Corr0 holds before the first sample has ever
// arrived.
const noPrevSample = -1

// Metrics holds one snapshot of Ent's derived statistics.
type Metrics struct {
	Entropy    float64
	Chisq      float64
	Mean       float64
	Pi         float64
	Corr       float64
	MinEntropy float64
}

// Triple is the {current, min, max} result Ent reports. Min
// and Max are tracked with respect to the metric's ideal value: closest-to-
// ideal for Mean/Pi/Corr, and largest/smallest observed for Entropy/Chisq/
// MinEntropy.
type Triple struct {
	Current Metrics
	Min     Metrics
	Max     Metrics
}

// FailCounts tracks how many long-term flushes failed each check, plus how
// many were tested at all.
type FailCounts struct {
	Tested     uint64
	Entropy    uint64
	Chisq      uint64
	Mean       uint64
	Pi         uint64
	Corr       uint64
	MinEntropy uint64
}

// accum is one {bin, samples, inradius, pisamples, corr*} accumulator set,
// shared shape for both the short-term and long-term views.
type accum struct {
	bin       []uint64
	samples   uint64
	inradius  uint64
	pisamples uint64
	corr0     int64
	corrn     int64
	corr1     int64
	corr2     int64
	corr3     int64
	hasFirst  bool
}

func newAccum(width uint) *accum {
	return &accum{bin: make([]uint64, 1<<width), corr0: noPrevSample}
}

// Thresholds bounds the pass/fail decision for a flush. Defaults are
// conservative, symmetric-around-ideal bounds; the exact numeric thresholds
// are left as an empirical tunable (see design notes, open question c).
type Thresholds struct {
	MinEntropyBits   float64 // entropy below this fails (ideal ~= Width)
	MaxChisqRatio    float64 // chisq / degrees-of-freedom above this fails
	MeanTolerance    float64 // |mean - ideal| / ideal above this fails
	PiTolerance      float64 // |pi - math.Pi| above this fails
	CorrTolerance    float64 // |corr| above this fails
	MinEntropyFloor  float64 // NIST min-entropy below this fails
}

// DefaultThresholds returns the stock bounds used when a caller does not
// supply its own.
func DefaultThresholds(width uint) Thresholds {
	return Thresholds{
		MinEntropyBits:  float64(width) * 0.99,
		MaxChisqRatio:   1.5,
		MeanTolerance:   0.02,
		PiTolerance:     0.05,
		CorrTolerance:   0.02,
		MinEntropyFloor: float64(width) * 0.9,
	}
}

// Ent is the running statistical suite for symbol width Width bits
// (Width ∈ {8, 16}). It is safe for concurrent use.
type Ent struct {
	mu sync.Mutex

	Width         uint
	ShortBlockLen uint64 // samples per flush (500_000 for W=8, 100_000_000 for W=16 by default)
	LongMinSamples uint64 // MinEntropy failures count only from this many long samples on; the other checks are not gated

	short *accum
	long  *accum

	// piBuf accumulates raw 8-bit bytes across calls so that 6-byte tuples
	// spanning Update boundaries are still interpreted correctly.
	piBuf []byte

	thresholds Thresholds
	results    Triple
	fail       FailCounts
	haveResult bool
}

// New constructs an Ent accumulator for the given symbol width and
// short-block length (see glossary: 500_000 for W=8, 100_000_000 for W=16).
func New(width uint, shortBlockLen, longMinSamples uint64) *Ent {
	if width != 8 && width != 16 {
		panic("stats: Ent width must be 8 or 16")
	}
	return &Ent{
		Width:          width,
		ShortBlockLen:  shortBlockLen,
		LongMinSamples: longMinSamples,
		short:          newAccum(width),
		long:           newAccum(width),
		thresholds:     DefaultThresholds(width),
	}
}

// SetThresholds overrides the default pass/fail bounds.
func (e *Ent) SetThresholds(t Thresholds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = t
}

// Update feeds n width-bit samples (each already reduced to a uint64, high
// bits clear) into the short-term accumulator, and the raw 8-bit byte
// stream raw8 (the original, unwidened stream) into the Monte-Carlo pi
// estimator. len(raw8) need not relate simply to len(samples) except that
// it is the same underlying bytes the samples were derived from.
func (e *Ent) Update(samples []uint64, raw8 []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range samples {
		e.short.bin[s]++
		e.short.samples++

		if !e.short.hasFirst {
			e.short.corr0 = int64(s)
			e.short.hasFirst = true
		} else {
			prev := e.short.corrn
			e.short.corr1 += prev * int64(s)
			e.short.corr2 += int64(s)
			e.short.corr3 += int64(s) * int64(s)
		}
		e.short.corrn = int64(s)
	}

	e.piBuf = append(e.piBuf, raw8...)
	e.consumePiTuples()

	if e.short.samples >= e.ShortBlockLen {
		e.flush()
	}
}

// consumePiTuples interprets complete 6-byte tuples of e.piBuf as two
// 24-bit coordinates and folds them into the short-term Monte-Carlo pi
// accumulators, leaving any trailing partial tuple buffered.
func (e *Ent) consumePiTuples() {
	n := len(e.piBuf) / 6
	const maxCoord = (1<<24 - 1)
	for i := 0; i < n; i++ {
		b := e.piBuf[i*6 : i*6+6]
		x := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
		y := uint32(b[3])<<16 | uint32(b[4])<<8 | uint32(b[5])
		xs, ys := uint64(x), uint64(y)
		if xs*xs+ys*ys <= uint64(maxCoord)*uint64(maxCoord) {
			e.short.inradius++
		}
		e.short.pisamples++
	}
	e.piBuf = e.piBuf[n*6:]
}

// flush computes derived metrics from the short-term accumulator, folds it
// into the long-term accumulator, normalises the long-term accumulator if
// either running counter is near overflow, then resets the short-term
// accumulator for the next block.
func (e *Ent) flush() {
	m := derive(e.short, e.Width)
	e.recordResult(m)

	// fold short into long
	for i, v := range e.short.bin {
		e.long.bin[i] += v
	}
	e.long.samples += e.short.samples
	e.long.inradius += e.short.inradius
	e.long.pisamples += e.short.pisamples
	if !e.long.hasFirst && e.short.hasFirst {
		e.long.corr0 = e.short.corr0
		e.long.hasFirst = true
	}
	e.long.corr1 += e.short.corr1
	e.long.corr2 += e.short.corr2
	e.long.corr3 += e.short.corr3
	// carry corrn over as the next flush's prev for the long series.
	e.long.corrn = e.short.corrn

	const overflowGuard = math.MaxUint64 / 2
	if e.long.samples > overflowGuard || e.long.pisamples > overflowGuard {
		normalize(e.long, e.Width)
	}

	e.short = newAccum(e.Width)
}

// recordResult updates Current/Min/Max and FailCounts from one flush's
// derived metrics.
func (e *Ent) recordResult(m Metrics) {
	e.fail.Tested++

	if !e.haveResult {
		e.results.Current = m
		e.results.Min = m
		e.results.Max = m
		e.haveResult = true
	} else {
		e.results.Current = m

		if m.Entropy < e.results.Min.Entropy {
			e.results.Min.Entropy = m.Entropy
		}
		if m.Entropy > e.results.Max.Entropy {
			e.results.Max.Entropy = m.Entropy
		}
		if m.Chisq < e.results.Min.Chisq {
			e.results.Min.Chisq = m.Chisq
		}
		if m.Chisq > e.results.Max.Chisq {
			e.results.Max.Chisq = m.Chisq
		}
		if m.MinEntropy < e.results.Min.MinEntropy {
			e.results.Min.MinEntropy = m.MinEntropy
		}
		if m.MinEntropy > e.results.Max.MinEntropy {
			e.results.Max.MinEntropy = m.MinEntropy
		}

		ideal := (float64(uint64(1)<<e.Width) - 1) / 2
		closerToIdeal(&e.results.Min.Mean, &e.results.Max.Mean, m.Mean, ideal)
		closerToIdeal(&e.results.Min.Pi, &e.results.Max.Pi, m.Pi, math.Pi)
		closerToIdeal(&e.results.Min.Corr, &e.results.Max.Corr, m.Corr, 0)
	}

	t := e.thresholds
	if m.Entropy < t.MinEntropyBits {
		e.fail.Entropy++
	}
	dof := float64(int64(1)<<e.Width - 1)
	if dof > 0 && m.Chisq/dof > t.MaxChisqRatio {
		e.fail.Chisq++
	}
	ideal := (float64(uint64(1)<<e.Width) - 1) / 2
	if ideal != 0 && math.Abs(m.Mean-ideal)/ideal > t.MeanTolerance {
		e.fail.Mean++
	}
	if math.Abs(m.Pi-math.Pi) > t.PiTolerance {
		e.fail.Pi++
	}
	if math.Abs(m.Corr) > t.CorrTolerance {
		e.fail.Corr++
	}
	longEnough := e.long.samples >= e.LongMinSamples
	if longEnough && m.MinEntropy < t.MinEntropyFloor {
		e.fail.MinEntropy++
	}
}

// closerToIdeal keeps *min as the value farthest from ideal and *max as the
// value closest to ideal: min/max are per-metric extrema with respect to an
// ideal value (closest-to-ideal for mean/pi/corr). We store "closest" in Max
// and "farthest" in Min so both fields remain populated and comparable
// across flushes.
func closerToIdeal(min, max *float64, v, ideal float64) {
	if math.Abs(v-ideal) > math.Abs(*min-ideal) {
		*min = v
	}
	if math.Abs(v-ideal) < math.Abs(*max-ideal) {
		*max = v
	}
}

// derive computes Shannon entropy, chi-square, mean, pi, lag-1
// autocorrelation, and NIST SP 800-90B min-entropy from one accumulator.
func derive(a *accum, width uint) Metrics {
	var m Metrics
	if a.samples == 0 {
		return m
	}
	n := float64(a.samples)

	var h float64
	var cmax uint64
	for _, c := range a.bin {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
		if c > cmax {
			cmax = c
		}
	}
	m.Entropy = h

	expected := n / float64(uint64(1)<<width)
	var chisq float64
	var meanSum float64
	for i, c := range a.bin {
		d := float64(c) - expected
		if expected > 0 {
			chisq += d * d / expected
		}
		meanSum += float64(i) * float64(c)
	}
	m.Chisq = chisq
	m.Mean = meanSum / n

	if a.pisamples > 0 {
		m.Pi = 4 * float64(a.inradius) / float64(a.pisamples)
	}

	if a.hasFirst {
		nf := float64(a.samples)
		c1 := float64(a.corr1) + float64(a.corrn)*float64(a.corr0)
		c2 := float64(a.corr2)
		c3 := float64(a.corr3)
		denom := nf*c3 - c2*c2
		if denom == 0 {
			m.Corr = 1.0
		} else {
			m.Corr = (nf*c1 - c2*c2) / denom
		}
	}

	pmax := float64(cmax) / n
	inner := n * pmax * (1 - pmax)
	if inner < 0 {
		inner = 0
	}
	arg := (float64(cmax) + 2.3*math.Sqrt(inner)) / n
	if arg > 0 {
		m.MinEntropy = -math.Log2(arg)
	}

	return m
}

// normalize performs an invariant-preserving long-term halving: naive
// bin_i >>= 1 biases chi-square toward zero over time, so each bin is
// instead redrawn toward the new expected count with a sign-matched fudge
// factor derived from its own chi-square contribution.
func normalize(a *accum, width uint) {
	oldSamples := float64(a.samples)
	if oldSamples == 0 {
		return
	}
	oldExpected := oldSamples / float64(uint64(1)<<width)
	newExpected := oldExpected / 2

	var newSamples uint64
	for i, c := range a.bin {
		errv := float64(c) - oldExpected
		var chisqI float64
		if oldExpected > 0 {
			chisqI = errv * errv / oldExpected
		}
		fudge := math.Sqrt(newExpected * chisqI)
		var nv float64
		if errv >= 0 {
			nv = math.Round(newExpected + fudge)
		} else {
			nv = math.Round(newExpected - fudge)
		}
		if nv < 0 {
			nv = 0
		}
		a.bin[i] = uint64(nv)
		newSamples += uint64(nv)
	}

	ratio := 1.0
	if a.samples > 0 {
		ratio = float64(newSamples) / float64(a.samples)
	}
	a.samples = newSamples
	a.corr1 = int64(math.Round(float64(a.corr1) * ratio))
	a.corr2 = int64(math.Round(float64(a.corr2) * ratio))
	a.corr3 = int64(math.Round(float64(a.corr3) * ratio))
	a.inradius /= 2
	a.pisamples /= 2
}

// Results returns the current {current, min, max} triple.
func (e *Ent) Results() Triple {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.results
}

// Fail returns the accumulated per-metric failure counts.
func (e *Ent) Fail() FailCounts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fail
}

// Samples returns the long-term sample count, used to gate failures below
// LongMinSamples.
func (e *Ent) Samples() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.long.samples
}

// RawData is the long-term accumulator state in the shape the GetRawData
// control command exposes: Samples, Bins, PiSamples, PiIn, plus the derived
// Current/Min/Max triple and whether the suite has ever failed.
type RawData struct {
	Samples   uint64
	Bins      []uint64
	PiSamples uint64
	PiIn      uint64
	Current   Metrics
	Min       Metrics
	Max       Metrics
	Failed    bool
}

// RawData returns a snapshot of the long-term accumulator suitable for
// serialisation over the control protocol.
func (e *Ent) RawData() RawData {
	e.mu.Lock()
	defer e.mu.Unlock()

	bins := make([]uint64, len(e.long.bin))
	copy(bins, e.long.bin)

	return RawData{
		Samples:   e.long.samples,
		Bins:      bins,
		PiSamples: e.long.pisamples,
		PiIn:      e.long.inradius,
		Current:   e.results.Current,
		Min:       e.results.Min,
		Max:       e.results.Max,
		Failed:    e.fail.Tested > 0 && (e.fail.Entropy > 0 || e.fail.Chisq > 0 || e.fail.Mean > 0 || e.fail.Pi > 0 || e.fail.Corr > 0 || e.fail.MinEntropy > 0),
	}
}

// WidenSamples splits raw bytes into Width-bit samples: each byte for
// Width=8, or each big-endian pair of bytes for Width=16 (a trailing odd
// byte is dropped; health.Monitor.Check does not carry it over, so an
// odd-length buffer such as the kernel feeder's 625-byte folded block
// loses its last byte from the Width=16 samples).
func WidenSamples(width uint, raw []byte) []uint64 {
	switch width {
	case 8:
		out := make([]uint64, len(raw))
		for i, b := range raw {
			out[i] = uint64(b)
		}
		return out
	case 16:
		n := len(raw) / 2
		out := make([]uint64, n)
		for i := 0; i < n; i++ {
			out[i] = uint64(raw[i*2])<<8 | uint64(raw[i*2+1])
		}
		return out
	default:
		panic("stats: unsupported width")
	}
}
