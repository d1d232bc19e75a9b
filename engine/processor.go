package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/midi"
)

type options struct {
	log     *zap.Logger
	sched   Scheduler
	rng     *rand.Rand
	arpCfg  ArpConfig
	mpeCfg  MPEConfig
	effects NoteEffectsConfig
}

// Option configures a Processor at construction
type Option func(*options)

// WithLogger sets the engine logger (default: no-op)
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithScheduler replaces the wall-clock scheduler (tests use a fake)
func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.sched = s }
}

// WithRand seeds the random source shared by humanize and random mode
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithArpConfig sets the initial arpeggiator configuration
func WithArpConfig(cfg ArpConfig) Option {
	return func(o *options) { o.arpCfg = cfg }
}

// WithMPEConfig sets the initial MPE configuration
func WithMPEConfig(cfg MPEConfig) Option {
	return func(o *options) { o.mpeCfg = cfg }
}

// WithNoteEffects sets the initial note-effects configuration
func WithNoteEffects(cfg NoteEffectsConfig) Option {
	return func(o *options) { o.effects = cfg }
}

// Processor is the composition root: it owns every manager, resolves
// dispatch precedence between them, and funnels all note output
// through the note-effects pipeline before the output boundary.
type Processor struct {
	log   *zap.Logger
	sched Scheduler

	emitter    *midi.Emitter
	effects    *NoteEffectsProcessor
	arp        *Arpeggiator
	mpe        *MPEManager
	automation *CCAutomationManager
	learn      *MIDILearnManager
	monitor    *MIDIMonitor

	mu           sync.Mutex
	directActive map[uint16]uint8      // input (channel,note) -> emitted number
	mpeActive    map[uint8]uint8       // member channel -> sounding note number
	pendingOns   map[uint16]*pendingOn // output (channel,note) -> scheduled delayed on
}

type pendingOn struct {
	cancel Cancel
}

// NewProcessor builds the engine. All managers are explicitly owned
// here; there is no package-level state and constructing two
// processors gives two fully independent engines.
func NewProcessor(opts ...Option) *Processor {
	o := options{
		log:     zap.NewNop(),
		sched:   NewScheduler(),
		arpCfg:  DefaultArpConfig(),
		mpeCfg:  DefaultMPEConfig(),
		effects: DefaultNoteEffectsConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Processor{
		log:          o.log,
		sched:        o.sched,
		emitter:      midi.NewEmitter(o.log),
		monitor:      NewMIDIMonitor(),
		directActive: make(map[uint16]uint8),
		mpeActive:    make(map[uint8]uint8),
		pendingOns:   make(map[uint16]*pendingOn),
	}
	p.effects = NewNoteEffectsProcessor(o.effects, o.rng)
	p.arp = NewArpeggiator(o.arpCfg, o.sched, p.emitProcessedNote, o.log)
	if o.rng != nil {
		p.arp.SetRand(o.rng)
	}
	p.mpe = NewMPEManager(o.mpeCfg, p.onVoiceUpdate, o.log)
	p.automation = NewCCAutomationManager(o.sched, p.emitCC, o.log)
	p.learn = NewMIDILearnManager(o.log)
	return p
}

// Arpeggiator returns the owned arpeggiator
func (p *Processor) Arpeggiator() *Arpeggiator { return p.arp }

// MPE returns the owned MPE manager
func (p *Processor) MPE() *MPEManager { return p.mpe }

// Automation returns the owned CC automation manager
func (p *Processor) Automation() *CCAutomationManager { return p.automation }

// Learn returns the owned MIDI learn manager
func (p *Processor) Learn() *MIDILearnManager { return p.learn }

// Monitor returns the diagnostic event log
func (p *Processor) Monitor() *MIDIMonitor { return p.monitor }

// Emitter returns the output boundary
func (p *Processor) Emitter() *midi.Emitter { return p.emitter }

// Effects returns the note-effects pipeline
func (p *Processor) Effects() *NoteEffectsProcessor { return p.effects }

// Handle dispatches one inbound event through the precedence chain
func (p *Processor) Handle(ev midi.Event) {
	p.monitor.Record(DirIn, ev.Kind.String(), ev.Channel, ev.Summary())

	switch ev.Kind {
	case midi.KindNoteOn:
		p.handleNoteOn(ev)
	case midi.KindNoteOff:
		p.handleNoteOff(ev)
	case midi.KindControlChange:
		p.handleCC(ev)
	case midi.KindPitchBend:
		if p.mpe.Enabled() {
			p.mpe.PitchBend(ev.Bend, ev.Channel)
		}
	case midi.KindChannelPressure:
		if p.mpe.Enabled() {
			p.mpe.Pressure(ev.Value, ev.Channel)
		}
	case midi.KindProgramChange:
		// the monitor entry above is the whole effect
		p.log.Debug("program change dropped, no output surface",
			zap.Uint8("program", ev.Program),
			zap.Uint8("channel", ev.Channel))
	}
}

// handleNoteOn resolves note precedence: MPE consumes exclusively,
// then the arpeggiator, then the direct effects pipeline.
func (p *Processor) handleNoteOn(ev midi.Event) {
	switch {
	case p.mpe.Enabled():
		p.mpe.NoteOn(ev.Note, ev.Velocity, ev.Channel)
	case p.arp.Enabled():
		p.arp.NoteOn(ev.Note, ev.Velocity, ev.Channel)
	default:
		note := midi.OutputNote{Number: ev.Note, Velocity: ev.Velocity, Channel: ev.Channel}
		out, offset := p.effects.Process(note, 0)
		p.mu.Lock()
		p.directActive[noteKey(ev.Channel, ev.Note)] = out.Number
		p.mu.Unlock()
		p.emitNoteAfter(out, true, offset)
	}
}

func (p *Processor) handleNoteOff(ev midi.Event) {
	switch {
	case p.mpe.Enabled():
		p.mpe.NoteOff(ev.Note, ev.Channel)
	case p.arp.Enabled():
		p.arp.NoteOff(ev.Note)
	default:
		number := clampNote(int(ev.Note) + p.effects.Config().Transpose)
		p.mu.Lock()
		if n, ok := p.directActive[noteKey(ev.Channel, ev.Note)]; ok {
			number = n
			delete(p.directActive, noteKey(ev.Channel, ev.Note))
		}
		p.mu.Unlock()
		p.emitNote(midi.OutputNote{Number: number, Channel: ev.Channel}, false)
	}
}

// handleCC walks the CC precedence chain: an active learn session
// consumes exclusively; recording also records; CC74 feeds MPE timbre;
// mappings resolve to parameter changes; and the raw CC is always
// forwarded to the output boundary.
func (p *Processor) handleCC(ev midi.Event) {
	if p.learn.HandleLearnMessage(ev.CC, ev.Channel, ev.Value) {
		return
	}

	if p.automation.Recording() {
		p.automation.Record(ev.CC, ev.Channel, ev.Value)
	}

	if p.mpe.Enabled() && ev.CC == midi.CC74 && p.mpe.Config().TimbreEnabled {
		p.mpe.Timbre(ev.Value, ev.Channel)
	}

	for target, value := range p.learn.HandleCC(ev.CC, ev.Channel, ev.Value) {
		p.monitor.Record(DirOut, "parameter", ev.Channel, fmt.Sprintf("%s=%.3f", target, value))
		p.emitter.EmitParameter(target, value)
	}

	p.emitCC(ev.CC, ev.Channel, ev.Value)
}

// Panic silences everything: arpeggiator, MPE voices and any direct
// notes still sounding.
func (p *Processor) Panic() {
	p.arp.Panic()
	p.mpe.Panic()

	p.mu.Lock()
	active := p.directActive
	p.directActive = make(map[uint16]uint8)
	p.mu.Unlock()
	for key, number := range active {
		p.emitNote(midi.OutputNote{Number: number, Channel: uint8(key >> 8)}, false)
	}
}

// onVoiceUpdate funnels MPE note output through the effects pipeline.
// Expression changes re-emit the voice with on=true, so note-ons are
// deduplicated against the sounding set: only a fresh note triggers
// output.
func (p *Processor) onVoiceUpdate(channel uint8, note *MPENote, voices []MPEVoice, on bool) {
	if note == nil {
		return
	}
	p.mu.Lock()
	if on {
		if sounding, ok := p.mpeActive[channel]; ok && sounding == note.Number {
			p.mu.Unlock()
			return
		}
		p.mpeActive[channel] = note.Number
	} else {
		delete(p.mpeActive, channel)
	}
	p.mu.Unlock()

	out := midi.OutputNote{Number: note.Number, Velocity: note.Velocity, Channel: channel}
	p.emitProcessedNote(out, on)
}

// emitProcessedNote is the shared output path for arpeggiator and MPE
// notes: note-ons run the effects pipeline (possibly delayed by its
// timing displacement), note-offs only follow the transpose so they
// match their note-on.
func (p *Processor) emitProcessedNote(note midi.OutputNote, on bool) {
	if !on {
		note.Number = clampNote(int(note.Number) + p.effects.Config().Transpose)
		p.emitNote(note, false)
		return
	}
	out, offset := p.effects.Process(note, 0)
	p.emitNoteAfter(out, true, offset)
}

// emitNoteAfter emits now or schedules the emission. Displaced note-ons
// are tracked so a note-off arriving inside the displacement window
// cancels the pair instead of overtaking its own note-on.
func (p *Processor) emitNoteAfter(note midi.OutputNote, on bool, offset time.Duration) {
	if offset <= 0 {
		p.emitNote(note, on)
		return
	}
	key := noteKey(note.Channel, note.Number)
	entry := &pendingOn{}
	p.mu.Lock()
	if prev, ok := p.pendingOns[key]; ok {
		prev.cancel()
	}
	entry.cancel = p.sched.Schedule(offset, func() {
		p.mu.Lock()
		if p.pendingOns[key] == entry {
			delete(p.pendingOns, key)
		}
		p.mu.Unlock()
		p.emitNote(note, on)
	})
	p.pendingOns[key] = entry
	p.mu.Unlock()
}

// cancelPendingOn suppresses a scheduled displaced note-on whose
// note-off arrived first. Returns true when the pair cancels out and
// the off must not be emitted either.
func (p *Processor) cancelPendingOn(note midi.OutputNote) bool {
	key := noteKey(note.Channel, note.Number)
	p.mu.Lock()
	entry, ok := p.pendingOns[key]
	if ok {
		delete(p.pendingOns, key)
	}
	p.mu.Unlock()
	return ok && entry.cancel()
}

func (p *Processor) emitNote(note midi.OutputNote, on bool) {
	if !on && p.cancelPendingOn(note) {
		return
	}
	kind := "note-off"
	if on {
		kind = "note-on"
	}
	p.monitor.Record(DirOut, kind, note.Channel, fmt.Sprintf("note=%d vel=%d", note.Number, note.Velocity))
	p.emitter.EmitNote(note, on)
}

func (p *Processor) emitCC(cc, channel, value uint8) {
	p.monitor.Record(DirOut, "cc", channel, fmt.Sprintf("cc=%d val=%d", cc, value))
	p.emitter.EmitCC(cc, channel, value)
}

func noteKey(channel, note uint8) uint16 {
	return uint16(channel)<<8 | uint16(note)
}
