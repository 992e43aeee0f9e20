// Package poller periodically queries an entropyd control socket and
// turns the replies into the snapshots the dashboard renders.
package poller

import (
	"bufio"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"entropyd/internal/jsonvalue"
)

// SourceStat is one source's health as reported by ReportStats.
type SourceStat struct {
	ID            string
	QA            bool
	FIPS          bool
	BytesAnalysed int64
	BytesPassed   int64
}

// Snapshot is a single poll result.
type Snapshot struct {
	Sources []SourceStat
	Err     error
	At      time.Time
}

// Poller holds a control-protocol connection and the address used to
// reconnect after a dropped socket.
type Poller struct {
	addr  string
	token string
	conn  net.Conn
	r     *bufio.Reader
}

// New returns a poller that dials addr lazily on the first Poll call.
func New(addr, token string) *Poller {
	return &Poller{addr: addr, token: token}
}

func (p *Poller) dial() error {
	network, target := "unix", p.addr
	if strings.HasPrefix(p.addr, "tcp:") {
		network, target = "tcp", strings.TrimPrefix(p.addr, "tcp:")
	}

	conn, err := net.DialTimeout(network, target, 3*time.Second)
	if err != nil {
		return err
	}
	if network == "tcp" && p.token != "" {
		if _, err := conn.Write(append([]byte(p.token), 0)); err != nil {
			conn.Close()
			return err
		}
	}
	p.conn = conn
	p.r = bufio.NewReader(conn)
	return nil
}

func (p *Poller) call(command string) (jsonvalue.Value, error) {
	if p.conn == nil {
		if err := p.dial(); err != nil {
			return jsonvalue.Value{}, err
		}
	}

	req := jsonvalue.Array(jsonvalue.String(command), jsonvalue.Int(time.Now().UnixNano()))
	if _, err := p.conn.Write(append([]byte(jsonvalue.Encode(req)), 0)); err != nil {
		p.reset()
		return jsonvalue.Value{}, err
	}

	raw, err := p.r.ReadBytes(0)
	if err != nil {
		p.reset()
		return jsonvalue.Value{}, err
	}

	return jsonvalue.Parse(raw[:len(raw)-1])
}

func (p *Poller) reset() {
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn, p.r = nil, nil
}

// Close releases the underlying connection, if any.
func (p *Poller) Close() {
	p.reset()
}

// Poll fetches the current source list and stats in two round trips and
// returns the combined snapshot. It never panics; connection failures
// surface through Snapshot.Err so the dashboard can render them inline.
func (p *Poller) Poll() Snapshot {
	snap := Snapshot{At: time.Now()}

	idsResp, err := p.call("GetIDs")
	if err != nil {
		snap.Err = fmt.Errorf("GetIDs: %w", err)
		return snap
	}
	statsResp, err := p.call("ReportStats")
	if err != nil {
		snap.Err = fmt.Errorf("ReportStats: %w", err)
		return snap
	}

	ids := payload(idsResp).AsArray()
	stats := payload(statsResp).AsObject()

	for _, idv := range ids {
		id := idv.AsString()
		s := SourceStat{ID: id}
		if stats != nil {
			if v, ok := stats.Get(id); ok {
				obj := v.AsObject()
				if qa, ok := obj.Get("QA"); ok {
					s.QA = qa.AsBool()
				}
				if fips, ok := obj.Get("FIPS"); ok {
					s.FIPS = fips.AsBool()
				}
				if ba, ok := obj.Get("BytesAnalysed"); ok {
					s.BytesAnalysed = int64(ba.AsNumber())
				}
				if bp, ok := obj.Get("BytesPassed"); ok {
					s.BytesPassed = int64(bp.AsNumber())
				}
			}
		}
		snap.Sources = append(snap.Sources, s)
	}

	sort.Slice(snap.Sources, func(i, j int) bool { return snap.Sources[i].ID < snap.Sources[j].ID })
	return snap
}

func payload(v jsonvalue.Value) jsonvalue.Value {
	arr := v.AsArray()
	if len(arr) < 3 {
		return jsonvalue.Null()
	}
	return arr[2]
}

// Run polls on the given interval until stop is closed, sending every
// snapshot (including failed ones) to out.
func Run(p *Poller, interval time.Duration, out chan<- Snapshot, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	out <- p.Poll()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			out <- p.Poll()
		}
	}
}
