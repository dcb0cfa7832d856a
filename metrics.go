package kbus

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the send-to-commit latency histogram buckets in
// nanoseconds, logarithmically spaced from 1us to 10s.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks per-device operational statistics: send/bind traffic,
// queue pressure, and routing-engine latency. Grounded on go-ublk's
// metrics.go: atomic counters plus a cumulative latency histogram, snapshot
// on demand rather than pushed.
type Metrics struct {
	MessagesSent     atomic.Uint64
	MessagesReceived atomic.Uint64
	RepliesSent      atomic.Uint64
	BytesSent        atomic.Uint64

	BindOps       atomic.Uint64
	UnbindOps     atomic.Uint64
	BindErrors    atomic.Uint64

	SendErrors    atomic.Uint64
	SendAgain     atomic.Uint64
	SendBusy      atomic.Uint64
	SyntheticSent atomic.Uint64

	SetAsideDepth atomic.Uint32 // current set-aside list length
	SetAsideMax   atomic.Uint32 // high-water mark
	TragicEvents  atomic.Uint64 // times is_tragic flipped true

	TotalSendLatencyNs atomic.Uint64
	SendCount          atomic.Uint64
	LatencyBuckets     [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates a metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSend records one routing-engine pass, successful or not.
func (m *Metrics) RecordSend(bytes uint64, latencyNs uint64, err error) {
	switch {
	case err == nil:
		m.MessagesSent.Add(1)
		m.BytesSent.Add(bytes)
	case IsKind(err, Again):
		m.SendAgain.Add(1)
	case IsKind(err, Busy):
		m.SendBusy.Add(1)
	default:
		m.SendErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordReceive records one message delivered to a reader.
func (m *Metrics) RecordReceive() {
	m.MessagesReceived.Add(1)
}

// RecordBind records a bind or unbind attempt.
func (m *Metrics) RecordBind(unbind bool, err error) {
	if unbind {
		m.UnbindOps.Add(1)
	} else {
		m.BindOps.Add(1)
	}
	if err != nil {
		m.BindErrors.Add(1)
	}
}

// RecordSynthetic records one core-generated diagnostic message.
func (m *Metrics) RecordSynthetic() {
	m.SyntheticSent.Add(1)
}

// RecordSetAside updates the set-aside gauge and high-water mark, and
// counts a transition into the tragic state.
func (m *Metrics) RecordSetAside(depth int, tragic bool) {
	d := uint32(depth)
	m.SetAsideDepth.Store(d)
	for {
		cur := m.SetAsideMax.Load()
		if d <= cur || m.SetAsideMax.CompareAndSwap(cur, d) {
			break
		}
	}
	if tragic {
		m.TragicEvents.Add(1)
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalSendLatencyNs.Add(latencyNs)
	m.SendCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to serialize.
type MetricsSnapshot struct {
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64

	BindOps    uint64
	UnbindOps  uint64
	BindErrors uint64

	SendErrors    uint64
	SendAgain     uint64
	SendBusy      uint64
	SyntheticSent uint64

	SetAsideDepth uint32
	SetAsideMax   uint32
	TragicEvents  uint64

	AvgSendLatencyNs uint64
	UptimeNs         uint64
	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot returns a consistent-enough point-in-time copy for reporting.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		MessagesSent:     m.MessagesSent.Load(),
		MessagesReceived: m.MessagesReceived.Load(),
		BytesSent:        m.BytesSent.Load(),
		BindOps:          m.BindOps.Load(),
		UnbindOps:        m.UnbindOps.Load(),
		BindErrors:       m.BindErrors.Load(),
		SendErrors:       m.SendErrors.Load(),
		SendAgain:        m.SendAgain.Load(),
		SendBusy:         m.SendBusy.Load(),
		SyntheticSent:    m.SyntheticSent.Load(),
		SetAsideDepth:    m.SetAsideDepth.Load(),
		SetAsideMax:      m.SetAsideMax.Load(),
		TragicEvents:     m.TragicEvents.Load(),
		UptimeNs:         uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
	if n := m.SendCount.Load(); n > 0 {
		snap.AvgSendLatencyNs = m.TotalSendLatencyNs.Load() / n
	}
	for i := range snap.LatencyHistogram {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return snap
}
