package engine

import (
	"sync"

	"go.uber.org/zap"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/midi"
)

// MPENote is the multidimensional state of one sounding note
type MPENote struct {
	Number    uint8   `json:"noteNumber"`
	Velocity  uint8   `json:"velocity"`
	Channel   uint8   `json:"channel"`
	PitchBend float64 `json:"pitchBend"` // -1..1
	Pressure  float64 `json:"pressure"`  // 0..1
	Timbre    float64 `json:"timbre"`    // 0..1
	Slide     float64 `json:"slide"`     // 0..1
}

// MPEVoice is one member-channel slot holding at most one active note
type MPEVoice struct {
	Channel uint8
	Note    *MPENote
}

// VoiceUpdateFunc observes note and expression changes across the
// voice table. note is the changed voice's note (nil once released);
// voices is the full table snapshot.
type VoiceUpdateFunc func(channel uint8, note *MPENote, voices []MPEVoice, on bool)

// MPEManager allocates one voice per configured member channel and
// tracks per-note expression. The master channel carries zone-wide
// messages and never owns a note.
type MPEManager struct {
	mu  sync.Mutex
	log *zap.Logger

	cfg    MPEConfig
	voices map[uint8]*MPEVoice

	update VoiceUpdateFunc
}

// NewMPEManager builds the voice table from cfg. update receives every
// note-on, note-off and expression change.
func NewMPEManager(cfg MPEConfig, update VoiceUpdateFunc, log *zap.Logger) *MPEManager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &MPEManager{log: log, update: update}
	m.Configure(cfg)
	return m
}

// Configure rebuilds the voice table wholesale. In-flight notes are
// lost; callers should Panic first if that matters.
func (m *MPEManager) Configure(cfg MPEConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]uint8, 0, len(cfg.MemberChannels))
	for _, ch := range cfg.MemberChannels {
		if ch == cfg.MasterChannel || ch > 15 {
			continue
		}
		members = append(members, ch)
	}
	cfg.MemberChannels = members
	m.cfg = cfg

	m.voices = make(map[uint8]*MPEVoice, len(members))
	for _, ch := range members {
		m.voices[ch] = &MPEVoice{Channel: ch}
	}
}

// Config returns the active configuration
func (m *MPEManager) Config() MPEConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Enabled reports whether the zone is active
func (m *MPEManager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Enabled
}

// SetEnabled toggles the zone without rebuilding voices
func (m *MPEManager) SetEnabled(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Enabled = on
}

// Voices returns a snapshot of the voice table
func (m *MPEManager) Voices() []MPEVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voicesLocked()
}

func (m *MPEManager) voicesLocked() []MPEVoice {
	out := make([]MPEVoice, 0, len(m.voices))
	for _, ch := range m.cfg.MemberChannels {
		v := m.voices[ch]
		snap := MPEVoice{Channel: v.Channel}
		if v.Note != nil {
			n := *v.Note
			snap.Note = &n
		}
		out = append(out, snap)
	}
	return out
}

// NoteOn binds a neutral-expression note to the channel's voice.
// The master channel never carries notes; unknown channels are
// ignored with a diagnostic.
func (m *MPEManager) NoteOn(note, velocity, channel uint8) {
	m.mu.Lock()
	if channel == m.cfg.MasterChannel {
		m.mu.Unlock()
		return
	}
	voice, ok := m.voices[channel]
	if !ok {
		m.mu.Unlock()
		m.log.Debug("note-on on non-member channel",
			zap.Uint8("channel", channel), zap.Uint8("note", note))
		return
	}
	voice.Note = &MPENote{Number: note, Velocity: velocity, Channel: channel}
	n := *voice.Note
	voices := m.voicesLocked()
	m.mu.Unlock()

	m.notify(channel, &n, voices, true)
}

// NoteOff releases the voice's note, but only when the stored note
// number matches. A mismatch is a protocol error on the sender's side;
// dropping it beats a phantom note-off on a reused channel.
func (m *MPEManager) NoteOff(note, channel uint8) {
	m.mu.Lock()
	voice, ok := m.voices[channel]
	if !ok || voice.Note == nil {
		m.mu.Unlock()
		return
	}
	if voice.Note.Number != note {
		stored := voice.Note.Number
		m.mu.Unlock()
		m.log.Debug("note-off mismatch",
			zap.Uint8("channel", channel),
			zap.Uint8("stored", stored),
			zap.Uint8("incoming", note))
		return
	}
	released := *voice.Note
	voice.Note = nil
	voices := m.voicesLocked()
	m.mu.Unlock()

	m.notify(channel, &released, voices, false)
}

// PitchBend normalizes a 14-bit wheel value into -1..1 on the
// channel's active note
func (m *MPEManager) PitchBend(value uint16, channel uint8) {
	if value > midi.PitchBendMax {
		value = midi.PitchBendMax
	}
	delta := float64(value) - float64(midi.PitchBendCenter)
	var norm float64
	if delta >= 0 {
		norm = delta / float64(midi.PitchBendMax-midi.PitchBendCenter)
	} else {
		norm = delta / float64(midi.PitchBendCenter)
	}
	m.expression(channel, func(n *MPENote) { n.PitchBend = norm }, true)
}

// Pressure normalizes channel pressure into 0..1 on the active note
func (m *MPEManager) Pressure(value, channel uint8) {
	m.expression(channel, func(n *MPENote) { n.Pressure = float64(value) / 127 }, m.capability().PressureEnabled)
}

// Timbre normalizes CC74 into 0..1 on the active note
func (m *MPEManager) Timbre(value, channel uint8) {
	m.expression(channel, func(n *MPENote) { n.Timbre = float64(value) / 127 }, m.capability().TimbreEnabled)
}

// Slide normalizes the slide dimension into 0..1 on the active note
func (m *MPEManager) Slide(value, channel uint8) {
	m.expression(channel, func(n *MPENote) { n.Slide = float64(value) / 127 }, m.capability().SlideToPitchEnabled)
}

func (m *MPEManager) capability() MPEConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// expression applies one dimension update and re-emits a note-on-style
// update so continuous expression stays observable downstream
func (m *MPEManager) expression(channel uint8, apply func(*MPENote), capable bool) {
	if !capable {
		return
	}
	m.mu.Lock()
	voice, ok := m.voices[channel]
	if !ok || voice.Note == nil {
		m.mu.Unlock()
		return
	}
	apply(voice.Note)
	n := *voice.Note
	voices := m.voicesLocked()
	m.mu.Unlock()

	m.notify(channel, &n, voices, true)
}

// Panic releases every active voice, emitting note-offs first
func (m *MPEManager) Panic() {
	m.mu.Lock()
	type release struct {
		channel uint8
		note    MPENote
	}
	var released []release
	for _, ch := range m.cfg.MemberChannels {
		v := m.voices[ch]
		if v.Note != nil {
			released = append(released, release{channel: ch, note: *v.Note})
			v.Note = nil
		}
	}
	voices := m.voicesLocked()
	m.mu.Unlock()

	for _, r := range released {
		n := r.note
		m.notify(r.channel, &n, voices, false)
	}
}

func (m *MPEManager) notify(channel uint8, note *MPENote, voices []MPEVoice, on bool) {
	if m.update != nil {
		m.update(channel, note, voices, on)
	}
}
