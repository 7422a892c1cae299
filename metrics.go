package main

import "sync/atomic"

// SessionMetrics counts what a session's frame loop did. Safe for concurrent
// reads from the operator API while the headset link writes.
type SessionMetrics struct {
	Frames        atomic.Uint64
	Teleports     atomic.Uint64
	Turns         atomic.Uint64
	Controllers   atomic.Uint64 // connection notifications seen
	RateLimited   atomic.Uint64 // messages over the per-second budget
	TotalUpdateNs atomic.Uint64
}

// AddFrame records one Update call and how long it took.
func (m *SessionMetrics) AddFrame(ns int64) {
	m.Frames.Add(1)
	if ns > 0 {
		m.TotalUpdateNs.Add(uint64(ns))
	}
}

// AvgUpdateMicros is the mean Update duration.
func (m *SessionMetrics) AvgUpdateMicros() float64 {
	frames := m.Frames.Load()
	if frames == 0 {
		return 0
	}
	return float64(m.TotalUpdateNs.Load()) / float64(frames) / 1e3
}

// Snapshot returns a read-only copy for HTTP output.
func (m *SessionMetrics) Snapshot() map[string]any {
	return map[string]any{
		"frames":        m.Frames.Load(),
		"teleports":     m.Teleports.Load(),
		"turns":         m.Turns.Load(),
		"controllers":   m.Controllers.Load(),
		"rate_limited":  m.RateLimited.Load(),
		"avg_update_us": m.AvgUpdateMicros(),
	}
}
