package run

import (
	"fmt"
	"strings"
	"sync/atomic"
)

type metrics struct {
	heard         atomic.Int64
	sent          atomic.Int64
	skipped       atomic.Int64
	dropped       atomic.Int64
	listens       atomic.Int64
	captureErrors atomic.Int64
	playbacks     atomic.Int64
}

func (m *metrics) reset() {
	m.heard.Store(0)
	m.sent.Store(0)
	m.skipped.Store(0)
	m.dropped.Store(0)
	m.listens.Store(0)
	m.captureErrors.Store(0)
	m.playbacks.Store(0)
}

func (m *metrics) incHeard()         { m.heard.Add(1) }
func (m *metrics) incSent()          { m.sent.Add(1) }
func (m *metrics) incSkipped()       { m.skipped.Add(1) }
func (m *metrics) incDropped()       { m.dropped.Add(1) }
func (m *metrics) incListens()       { m.listens.Add(1) }
func (m *metrics) incCaptureErrors() { m.captureErrors.Add(1) }
func (m *metrics) incPlaybacks()     { m.playbacks.Add(1) }

// text renders the counters in Prometheus exposition format.
func (m *metrics) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "kisanvoice_listens_total %d\n", m.listens.Load())
	fmt.Fprintf(&b, "kisanvoice_heard_total %d\n", m.heard.Load())
	fmt.Fprintf(&b, "kisanvoice_capture_errors_total %d\n", m.captureErrors.Load())
	fmt.Fprintf(&b, "kisanvoice_playbacks_total %d\n", m.playbacks.Load())
	fmt.Fprintf(&b, "kisanvoice_hooks_sent_total %d\n", m.sent.Load())
	fmt.Fprintf(&b, "kisanvoice_hooks_skipped_total %d\n", m.skipped.Load())
	fmt.Fprintf(&b, "kisanvoice_hooks_dropped_total %d\n", m.dropped.Load())
	return b.String()
}
