package midi

import (
	"fmt"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/zap"
)

// Bridge connects a hardware MIDI port pair to the engine: inbound
// messages are decoded into Events, and engine output events are
// encoded back to wire messages on the out port.
type Bridge struct {
	log *zap.Logger

	inPort   drivers.In
	stopFunc func()
	send     func(gomidi.Message) error
}

// InPortNames lists available MIDI input port names
func InPortNames() []string {
	var names []string
	for _, p := range gomidi.GetInPorts() {
		names = append(names, p.String())
	}
	return names
}

// OutPortNames lists available MIDI output port names
func OutPortNames() []string {
	var names []string
	for _, p := range gomidi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

func findInPort(name string) (drivers.In, error) {
	for _, p := range gomidi.GetInPorts() {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input port matching %q", name)
}

func findOutPort(name string) (drivers.Out, error) {
	for _, p := range gomidi.GetOutPorts() {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output port matching %q", name)
}

// NewBridge opens the named port pair. Either name may be empty to run
// one-directional (monitor-only input, or output-only).
func NewBridge(inName, outName string, log *zap.Logger) (*Bridge, error) {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bridge{log: log}

	if inName != "" {
		in, err := findInPort(inName)
		if err != nil {
			return nil, err
		}
		b.inPort = in
	}

	if outName != "" {
		out, err := findOutPort(outName)
		if err != nil {
			b.closeIn()
			return nil, err
		}
		send, err := gomidi.SendTo(out)
		if err != nil {
			b.closeIn()
			return nil, fmt.Errorf("open output %q: %w", outName, err)
		}
		b.send = send
	}

	return b, nil
}

// Listen starts decoding inbound messages into Events. The handler is
// called from the driver's callback goroutine.
func (b *Bridge) Listen(handler func(Event)) error {
	if b.inPort == nil {
		return fmt.Errorf("bridge has no input port")
	}
	stop, err := gomidi.ListenTo(b.inPort, func(msg gomidi.Message, timestampms int32) {
		if ev, ok := decodeMessage(msg); ok {
			handler(ev)
		}
	})
	if err != nil {
		return fmt.Errorf("open input %q: %w", b.inPort.String(), err)
	}
	b.stopFunc = stop
	return nil
}

// decodeMessage translates a wire message into an Event. Note starts
// and ends go through GetNoteStart/GetNoteEnd so a NoteOn with velocity
// zero - the running-status release convention - decodes as a note end.
func decodeMessage(msg gomidi.Message) (Event, bool) {
	var channel, note, velocity, cc, value, program uint8
	var rel int16
	var abs uint16

	switch {
	case msg.GetNoteStart(&channel, &note, &velocity):
		return NoteOnEvent(note, velocity, channel), true
	case msg.GetNoteEnd(&channel, &note):
		return NoteOffEvent(note, channel), true
	case msg.GetControlChange(&channel, &cc, &value):
		return ControlChangeEvent(cc, value, channel), true
	case msg.GetPitchBend(&channel, &rel, &abs):
		return PitchBendEvent(abs, channel), true
	case msg.GetAfterTouch(&channel, &value):
		return ChannelPressureEvent(value, channel), true
	case msg.GetProgramChange(&channel, &program):
		return ProgramChangeEvent(program, channel), true
	}
	return Event{}, false
}

// SendNote encodes a note output event onto the wire
func (b *Bridge) SendNote(note OutputNote, on bool) {
	if b.send == nil {
		return
	}
	var err error
	if on {
		err = b.send(gomidi.NoteOn(note.Channel, note.Number, note.Velocity))
	} else {
		err = b.send(gomidi.NoteOff(note.Channel, note.Number))
	}
	if err != nil {
		b.log.Warn("send note failed", zap.Uint8("note", note.Number), zap.Error(err))
	}
}

// SendCC encodes a CC output event onto the wire
func (b *Bridge) SendCC(cc, channel, value uint8) {
	if b.send == nil {
		return
	}
	if err := b.send(gomidi.ControlChange(channel, cc, value)); err != nil {
		b.log.Warn("send cc failed", zap.Uint8("cc", cc), zap.Error(err))
	}
}

func (b *Bridge) closeIn() {
	if b.stopFunc != nil {
		b.stopFunc()
		b.stopFunc = nil
	}
}

// Close stops listening and releases the driver
func (b *Bridge) Close() error {
	b.closeIn()
	b.send = nil
	gomidi.CloseDriver()
	return nil
}
