package engine

import (
	"sync"
	"time"
)

// monitorCapacity bounds the diagnostic log
const monitorCapacity = 1000

// Direction marks whether a monitor entry entered or left the engine
type Direction int

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirOut {
		return "out"
	}
	return "in"
}

// MonitorEntry is one line of the diagnostic event log
type MonitorEntry struct {
	Time      time.Time
	Direction Direction
	Kind      string
	Channel   uint8
	Summary   string
}

// MIDIMonitor is a bounded ring log of engine traffic, for diagnostics
// only. Oldest entries drop first.
type MIDIMonitor struct {
	mu      sync.Mutex
	entries []MonitorEntry
	start   int
	count   int
}

// NewMIDIMonitor creates an empty monitor
func NewMIDIMonitor() *MIDIMonitor {
	return &MIDIMonitor{entries: make([]MonitorEntry, monitorCapacity)}
}

// Record appends one entry, evicting the oldest at capacity
func (m *MIDIMonitor) Record(dir Direction, kind string, channel uint8, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := (m.start + m.count) % len(m.entries)
	m.entries[idx] = MonitorEntry{
		Time:      time.Now(),
		Direction: dir,
		Kind:      kind,
		Channel:   channel,
		Summary:   summary,
	}
	if m.count < len(m.entries) {
		m.count++
	} else {
		m.start = (m.start + 1) % len(m.entries)
	}
}

// Events returns the log oldest-first
func (m *MIDIMonitor) Events() []MonitorEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MonitorEntry, m.count)
	for i := 0; i < m.count; i++ {
		out[i] = m.entries[(m.start+i)%len(m.entries)]
	}
	return out
}

// Len returns the number of stored entries
func (m *MIDIMonitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Clear empties the log
func (m *MIDIMonitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start = 0
	m.count = 0
}
