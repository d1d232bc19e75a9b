package engine

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// MappingCurve shapes a mapping's normalized CC value
type MappingCurve int

const (
	MapLinear MappingCurve = iota
	MapExponential
	MapLogarithmic
)

var mappingCurveNames = map[MappingCurve]string{
	MapLinear:      "linear",
	MapExponential: "exponential",
	MapLogarithmic: "logarithmic",
}

func (c MappingCurve) String() string {
	if s, ok := mappingCurveNames[c]; ok {
		return s
	}
	return "linear"
}

// MarshalText encodes the curve by name
func (c MappingCurve) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a curve name; unknown names are an error
func (c *MappingCurve) UnmarshalText(text []byte) error {
	for kind, name := range mappingCurveNames {
		if name == string(text) {
			*c = kind
			return nil
		}
	}
	return fmt.Errorf("unknown mapping curve %q", text)
}

// apply shapes a 0..1 normalized value
func (c MappingCurve) apply(v float64) float64 {
	switch c {
	case MapExponential:
		return v * v
	case MapLogarithmic:
		return math.Sqrt(v)
	default:
		return v
	}
}

// MIDIMapping binds one CC (on one channel) to a target parameter
type MIDIMapping struct {
	ID        string       `json:"id"`
	CC        uint8        `json:"cc"`
	Channel   uint8        `json:"channel"`
	TargetID  string       `json:"targetId"`
	Min       float64      `json:"min"`
	Max       float64      `json:"max"`
	Curve     MappingCurve `json:"curve"`
	Enabled   bool         `json:"enabled"`
	LastValue float64      `json:"lastValue"`
}

// LearnSession is the transient "bind the next CC" state. At most one
// exists at a time.
type LearnSession struct {
	TargetID   string
	OnComplete func(MIDIMapping)
	OnCancel   func()
}

// MIDILearnManager runs the learn workflow and evaluates stored
// mappings against incoming CCs.
type MIDILearnManager struct {
	mu  sync.Mutex
	log *zap.Logger

	session  *LearnSession
	mappings []*MIDIMapping
	nextID   int
}

// NewMIDILearnManager creates an empty mapping store
func NewMIDILearnManager(log *zap.Logger) *MIDILearnManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &MIDILearnManager{log: log}
}

// StartLearn installs a learn session. A previous session is torn down
// first: its cancel callback runs synchronously before the new session
// exists, so the callbacks never interleave.
func (lm *MIDILearnManager) StartLearn(session LearnSession) {
	lm.mu.Lock()
	prev := lm.session
	lm.session = nil
	lm.mu.Unlock()

	if prev != nil && prev.OnCancel != nil {
		prev.OnCancel()
	}

	lm.mu.Lock()
	lm.session = &session
	lm.mu.Unlock()
}

// CancelLearn tears down the active session, if any
func (lm *MIDILearnManager) CancelLearn() {
	lm.mu.Lock()
	prev := lm.session
	lm.session = nil
	lm.mu.Unlock()

	if prev != nil && prev.OnCancel != nil {
		prev.OnCancel()
	}
}

// Learning reports whether a session is active
func (lm *MIDILearnManager) Learning() bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.session != nil
}

// HandleLearnMessage consumes one CC for the active session: a mapping
// with a 1:1 range and linear curve is created and stored, the
// completion callback fires, and the session ends. Returns false when
// no session was active.
func (lm *MIDILearnManager) HandleLearnMessage(cc, channel, value uint8) bool {
	lm.mu.Lock()
	session := lm.session
	if session == nil {
		lm.mu.Unlock()
		return false
	}
	lm.session = nil
	mapping := lm.addLocked(MIDIMapping{
		CC:       cc,
		Channel:  channel,
		TargetID: session.TargetID,
		Min:      0,
		Max:      1,
		Curve:    MapLinear,
		Enabled:  true,
	})
	snap := *mapping
	lm.mu.Unlock()

	lm.log.Debug("learned mapping",
		zap.String("target", snap.TargetID),
		zap.Uint8("cc", cc),
		zap.Uint8("channel", channel))
	if session.OnComplete != nil {
		session.OnComplete(snap)
	}
	return true
}

// HandleCC evaluates every enabled mapping matching cc+channel and
// returns target-id to value for each. Several mappings may feed
// different targets from the same CC.
func (lm *MIDILearnManager) HandleCC(cc, channel, value uint8) map[string]float64 {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	out := map[string]float64{}
	for _, m := range lm.mappings {
		if !m.Enabled || m.CC != cc || m.Channel != channel {
			continue
		}
		norm := m.Curve.apply(float64(value) / 127)
		v := m.Min + norm*(m.Max-m.Min)
		m.LastValue = v
		out[m.TargetID] = v
	}
	return out
}

// AddMapping stores a mapping directly, assigning a fresh id
func (lm *MIDILearnManager) AddMapping(m MIDIMapping) MIDIMapping {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return *lm.addLocked(m)
}

func (lm *MIDILearnManager) addLocked(m MIDIMapping) *MIDIMapping {
	lm.nextID++
	m.ID = fmt.Sprintf("map-%d", lm.nextID)
	stored := m
	lm.mappings = append(lm.mappings, &stored)
	return &stored
}

// RemoveMapping deletes a mapping by id
func (lm *MIDILearnManager) RemoveMapping(id string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for i, m := range lm.mappings {
		if m.ID == id {
			lm.mappings = append(lm.mappings[:i], lm.mappings[i+1:]...)
			return
		}
	}
}

// SetMappingEnabled toggles one mapping
func (lm *MIDILearnManager) SetMappingEnabled(id string, on bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for _, m := range lm.mappings {
		if m.ID == id {
			m.Enabled = on
			return
		}
	}
}

// ClearMappings removes every mapping
func (lm *MIDILearnManager) ClearMappings() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.mappings = nil
}

// Mappings returns a snapshot of all mappings
func (lm *MIDILearnManager) Mappings() []MIDIMapping {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	out := make([]MIDIMapping, 0, len(lm.mappings))
	for _, m := range lm.mappings {
		out = append(out, *m)
	}
	return out
}
