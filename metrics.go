package blockstream

import "sync/atomic"

// Metrics tracks read activity across one or more block streams.
// All counters are atomic; a single collector may be shared by every
// stream a store hands out. A nil *Metrics is valid and drops all
// observations, so streams never need to nil-check before reporting.
type Metrics struct {
	bytesRead     atomic.Int64
	bufferedReads atomic.Int64 // Reads served from the internal buffer
	bypassReads   atomic.Int64 // Reads routed directly to the transport
	refills       atomic.Int64 // Buffer refills triggered
	streamsOpened atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	BytesRead     int64
	BufferedReads int64
	BypassReads   int64
	Refills       int64
	StreamsOpened int64
}

// Stats returns a snapshot of the current counters.
func (m *Metrics) Stats() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		BytesRead:     m.bytesRead.Load(),
		BufferedReads: m.bufferedReads.Load(),
		BypassReads:   m.bypassReads.Load(),
		Refills:       m.refills.Load(),
		StreamsOpened: m.streamsOpened.Load(),
	}
}

// observeBuffered records a read served from the stream buffer.
// Observers are fire-and-forget: they never fail the read they report.
func (m *Metrics) observeBuffered(n int) {
	if m == nil {
		return
	}
	m.bytesRead.Add(int64(n))
	m.bufferedReads.Add(1)
}

// observeBypass records a read serviced directly by the transport.
func (m *Metrics) observeBypass(n int) {
	if m == nil {
		return
	}
	m.bytesRead.Add(int64(n))
	m.bypassReads.Add(1)
}

func (m *Metrics) observeRefill() {
	if m == nil {
		return
	}
	m.refills.Add(1)
}

func (m *Metrics) observeStreamOpened() {
	if m == nil {
		return
	}
	m.streamsOpened.Add(1)
}
