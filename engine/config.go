package engine

import (
	"fmt"
	"time"
)

// ArpMode selects how held notes are ordered into the arpeggio sequence
type ArpMode int

const (
	ModeUp ArpMode = iota
	ModeDown
	ModeUpDown
	ModeDownUp
	ModeRandom
	ModePlayed
	ModeChord
)

var arpModeNames = map[ArpMode]string{
	ModeUp:     "up",
	ModeDown:   "down",
	ModeUpDown: "up-down",
	ModeDownUp: "down-up",
	ModeRandom: "random",
	ModePlayed: "played",
	ModeChord:  "chord",
}

func (m ArpMode) String() string {
	if s, ok := arpModeNames[m]; ok {
		return s
	}
	return "up"
}

// MarshalText encodes the mode by name for config files
func (m ArpMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name; unknown names are an error
func (m *ArpMode) UnmarshalText(text []byte) error {
	for mode, name := range arpModeNames {
		if name == string(text) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown arpeggiator mode %q", text)
}

// TimeBase selects the note value of one arpeggiator step
type TimeBase int

const (
	Sixteenth TimeBase = iota
	Eighth
	EighthTriplet
	Quarter
	QuarterTriplet
	Half
)

var timeBaseNames = map[TimeBase]string{
	Sixteenth:      "1/16",
	Eighth:         "1/8",
	EighthTriplet:  "1/8T",
	Quarter:        "1/4",
	QuarterTriplet: "1/4T",
	Half:           "1/2",
}

func (tb TimeBase) String() string {
	if s, ok := timeBaseNames[tb]; ok {
		return s
	}
	return "1/16"
}

// MarshalText encodes the time base by name for config files
func (tb TimeBase) MarshalText() ([]byte, error) {
	return []byte(tb.String()), nil
}

// UnmarshalText decodes a time base name; unknown names are an error
func (tb *TimeBase) UnmarshalText(text []byte) error {
	for base, name := range timeBaseNames {
		if name == string(text) {
			*tb = base
			return nil
		}
	}
	return fmt.Errorf("unknown time base %q", text)
}

// StepDuration returns the duration of one step at the given tempo.
// One beat is 60000/tempo milliseconds.
func (tb TimeBase) StepDuration(tempo float64) time.Duration {
	beat := 60000.0 / tempo // ms
	var ms float64
	switch tb {
	case Sixteenth:
		ms = beat / 4
	case Eighth:
		ms = beat / 2
	case EighthTriplet:
		ms = beat / 3
	case Quarter:
		ms = beat
	case QuarterTriplet:
		ms = 2 * beat / 3
	case Half:
		ms = 2 * beat
	default:
		ms = beat / 4
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// ArpStep is one cell of the arpeggiator pattern
type ArpStep struct {
	Enabled       bool    `json:"enabled"`
	OctaveOffset  int     `json:"octaveOffset"`
	VelocityScale float64 `json:"velocityScale"`
	GateLength    float64 `json:"gateLength"`
}

// DefaultPattern returns a 16-step all-on pattern at full velocity
func DefaultPattern() []ArpStep {
	steps := make([]ArpStep, 16)
	for i := range steps {
		steps[i] = ArpStep{Enabled: true, VelocityScale: 1.0, GateLength: 0.8}
	}
	return steps
}

// ArpConfig configures the arpeggiator. Out-of-range numeric values are
// clamped on apply; they come from continuous UI controls and are never
// worth rejecting.
type ArpConfig struct {
	Mode        ArpMode   `json:"mode"`
	TimeBase    TimeBase  `json:"timeBase"`
	Pattern     []ArpStep `json:"pattern"`
	OctaveRange int       `json:"octaveRange"` // 1-4
	Swing       float64   `json:"swing"`       // 0-1
	GateLength  float64   `json:"gateLength"`  // 0-1
	Tempo       float64   `json:"tempo"`       // 20-300 BPM
}

// DefaultArpConfig returns the configuration a fresh session starts with
func DefaultArpConfig() ArpConfig {
	return ArpConfig{
		Mode:        ModeUp,
		TimeBase:    Sixteenth,
		Pattern:     DefaultPattern(),
		OctaveRange: 1,
		Swing:       0,
		GateLength:  0.8,
		Tempo:       120,
	}
}

func (c *ArpConfig) normalize() {
	c.OctaveRange = clampInt(c.OctaveRange, 1, 4)
	c.Swing = clampFloat(c.Swing, 0, 1)
	c.GateLength = clampFloat(c.GateLength, 0, 1)
	c.Tempo = clampFloat(c.Tempo, 20, 300)
	if len(c.Pattern) == 0 {
		c.Pattern = DefaultPattern()
	}
	for i := range c.Pattern {
		c.Pattern[i].VelocityScale = clampFloat(c.Pattern[i].VelocityScale, 0, 2)
		c.Pattern[i].GateLength = clampFloat(c.Pattern[i].GateLength, 0, 1)
	}
}

// MPEConfig configures the MPE zone. MemberChannels must not include
// the master channel; Configure drops any that do.
type MPEConfig struct {
	Enabled             bool    `json:"enabled"`
	MasterChannel       uint8   `json:"masterChannel"`
	MemberChannels      []uint8 `json:"memberChannels"`
	PitchBendRange      int     `json:"pitchBendRange"` // semitones
	PressureEnabled     bool    `json:"pressureEnabled"`
	TimbreEnabled       bool    `json:"timbreEnabled"`
	SlideToPitchEnabled bool    `json:"slideToPitchEnabled"`
}

// DefaultMPEConfig returns the standard lower-zone layout: master on
// channel 0, members 1-14
func DefaultMPEConfig() MPEConfig {
	members := make([]uint8, 0, 14)
	for ch := uint8(1); ch <= 14; ch++ {
		members = append(members, ch)
	}
	return MPEConfig{
		Enabled:             false,
		MasterChannel:       0,
		MemberChannels:      members,
		PitchBendRange:      48,
		PressureEnabled:     true,
		TimbreEnabled:       true,
		SlideToPitchEnabled: false,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampNote(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

func clampVelocity(v int) uint8 {
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}
