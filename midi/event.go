package midi

import (
	"fmt"
	"time"
)

// EventKind identifies a decoded inbound MIDI event
type EventKind int

const (
	KindNoteOn EventKind = iota
	KindNoteOff
	KindControlChange
	KindPitchBend
	KindChannelPressure
	KindProgramChange
)

// String returns a short name for logs and the monitor view
func (k EventKind) String() string {
	switch k {
	case KindNoteOn:
		return "note-on"
	case KindNoteOff:
		return "note-off"
	case KindControlChange:
		return "cc"
	case KindPitchBend:
		return "pitch-bend"
	case KindChannelPressure:
		return "pressure"
	case KindProgramChange:
		return "program"
	}
	return "unknown"
}

// Event is a decoded inbound MIDI event from the external decoder.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind     EventKind
	Channel  uint8  // 0-15
	Note     uint8  // note number, KindNoteOn/KindNoteOff
	Velocity uint8  // 1-127, KindNoteOn
	CC       uint8  // controller number, KindControlChange
	Value    uint8  // 0-127, KindControlChange/KindChannelPressure
	Bend     uint16 // 0-16383, center 8192, KindPitchBend
	Program  uint8  // KindProgramChange
}

// Summary renders the kind-relevant fields for logs and the monitor
func (e Event) Summary() string {
	switch e.Kind {
	case KindNoteOn:
		return fmt.Sprintf("note=%d vel=%d", e.Note, e.Velocity)
	case KindNoteOff:
		return fmt.Sprintf("note=%d", e.Note)
	case KindControlChange:
		return fmt.Sprintf("cc=%d val=%d", e.CC, e.Value)
	case KindPitchBend:
		return fmt.Sprintf("bend=%d", e.Bend)
	case KindChannelPressure:
		return fmt.Sprintf("pressure=%d", e.Value)
	case KindProgramChange:
		return fmt.Sprintf("program=%d", e.Program)
	}
	return ""
}

// NoteOnEvent builds a note-on input event
func NoteOnEvent(note, velocity, channel uint8) Event {
	return Event{Kind: KindNoteOn, Note: note, Velocity: velocity, Channel: channel}
}

// NoteOffEvent builds a note-off input event
func NoteOffEvent(note, channel uint8) Event {
	return Event{Kind: KindNoteOff, Note: note, Channel: channel}
}

// ControlChangeEvent builds a CC input event
func ControlChangeEvent(cc, value, channel uint8) Event {
	return Event{Kind: KindControlChange, CC: cc, Value: value, Channel: channel}
}

// PitchBendEvent builds a pitch-bend input event (0-16383, center 8192)
func PitchBendEvent(value uint16, channel uint8) Event {
	return Event{Kind: KindPitchBend, Bend: value, Channel: channel}
}

// ChannelPressureEvent builds a channel-pressure input event
func ChannelPressureEvent(value, channel uint8) Event {
	return Event{Kind: KindChannelPressure, Value: value, Channel: channel}
}

// ProgramChangeEvent builds a program-change input event
func ProgramChangeEvent(program, channel uint8) Event {
	return Event{Kind: KindProgramChange, Program: program, Channel: channel}
}

// OutputNote is a note handed to the external synthesis engine.
// Duration is advisory: when non-zero the engine schedules the matching
// note-off itself, and the receiver only needs to sound the note.
type OutputNote struct {
	Number   uint8
	Velocity uint8
	Channel  uint8
	Duration time.Duration
}

// CC74 carries MPE timbre (the "brightness" dimension)
const CC74 uint8 = 74

// PitchBendCenter is the neutral 14-bit pitch wheel position
const PitchBendCenter uint16 = 8192

// PitchBendMax is the highest 14-bit pitch wheel value
const PitchBendMax uint16 = 16383
