// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package sluice

import (
	"expvar"
	"sync"
)

var (
	channelMetrics = new(expvar.Map)

	channelsActiveGauge    = new(expvar.Int)
	messagesSentCount      = new(expvar.Int)
	messagesReceivedCount  = new(expvar.Int)
	bytesSentCount         = new(expvar.Int)
	bytesReceivedCount     = new(expvar.Int)
	sendsBlockedCount      = new(expvar.Int)
	receivesBlockedCount   = new(expvar.Int)
	messagesTruncatedCount = new(expvar.Int)
)

func init() {
	channelMetrics.Set("channels_active", channelsActiveGauge)
	channelMetrics.Set("messages_sent", messagesSentCount)
	channelMetrics.Set("messages_received", messagesReceivedCount)
	channelMetrics.Set("bytes_sent", bytesSentCount)
	channelMetrics.Set("bytes_received", bytesReceivedCount)
	channelMetrics.Set("sends_blocked", sendsBlockedCount)
	channelMetrics.Set("receives_blocked", receivesBlockedCount)
	channelMetrics.Set("messages_truncated", messagesTruncatedCount)
}

// ChannelMetrics returns a map of exported channel metrics for use with the
// expvar package. This map is shared among all channels opened by this
// package. The caller is free to add or remove metrics in the map, but note
// that such changes will affect all channels.
//
// The caller is responsible for publishing the metrics to the exporter via
// expvar.Publish or similar.
func ChannelMetrics() *expvar.Map { return channelMetrics }

// A Metrics value collects counters and maximum value trackers for a single
// channel. A nil *Metrics is valid, and discards all metrics. A *Metrics
// value is safe for concurrent use by multiple goroutines.
type Metrics struct {
	mu      sync.Mutex
	counter map[string]int64
	maxVal  map[string]int64
}

// NewMetrics creates a new, empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{counter: make(map[string]int64), maxVal: make(map[string]int64)}
}

// Count adds n to the current value of the counter named, defining the
// counter if it does not already exist.
func (m *Metrics) Count(name string, n int64) {
	if m != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.counter[name] += n
	}
}

// SetMaxValue sets the maximum value metric named to the greater of n and
// its current value, defining the value if it does not already exist.
func (m *Metrics) SetMaxValue(name string, n int64) {
	if m != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if n > m.maxVal[name] {
			m.maxVal[name] = n
		}
	}
}

// CountAndSetMax adds n to the current value of the counter named, and also
// updates a max value tracker with the same name in a single step.
func (m *Metrics) CountAndSetMax(name string, n int64) {
	if m != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if n > m.maxVal[name] {
			m.maxVal[name] = n
		}
		m.counter[name] += n
	}
}

// Snapshot copies an atomic snapshot of the counters and max value trackers
// into the provided non-nil maps.
func (m *Metrics) Snapshot(counters, maxValues map[string]int64) {
	if m != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		for name, val := range m.counter {
			counters[name] = val
		}
		for name, val := range m.maxVal {
			maxValues[name] = val
		}
	}
}
