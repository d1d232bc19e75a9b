package engine

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/midi"
)

// arpBaseVelocity is the velocity a step with scale 1.0 sounds at
const arpBaseVelocity = 100

type heldNote struct {
	note     uint8
	velocity uint8
	channel  uint8
	order    int // insertion order, for ModePlayed
}

// Arpeggiator turns the currently held notes into a timed sequence.
// The clock is a self-rescheduling one-shot timer: each tick schedules
// the next against the interval grid anchored at clock start, so timer
// latency never accumulates.
type Arpeggiator struct {
	mu    sync.Mutex
	log   *zap.Logger
	sched Scheduler
	rng   *rand.Rand

	cfg     ArpConfig
	enabled bool

	held      []heldNote // sorted by note number, duplicate-free
	nextOrder int

	seq      []heldNote // mode-ordered sequence, rebuilt when dirty
	seqDirty bool

	playing      bool
	step         int
	octaveCursor int
	clockStart   time.Time
	tickIndex    int
	cancelTick   Cancel

	sounding      []midi.OutputNote
	cancelNoteOff Cancel

	output func(midi.OutputNote, bool)
}

// NewArpeggiator creates a stopped arpeggiator. output receives its
// notes; the processor routes that through the note-effects pipeline.
func NewArpeggiator(cfg ArpConfig, sched Scheduler, output func(midi.OutputNote, bool), log *zap.Logger) *Arpeggiator {
	cfg.normalize()
	if log == nil {
		log = zap.NewNop()
	}
	return &Arpeggiator{
		cfg:    cfg,
		sched:  sched,
		output: output,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRand replaces the random source used by ModeRandom (for tests)
func (a *Arpeggiator) SetRand(rng *rand.Rand) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rng = rng
}

// Config returns the active configuration
func (a *Arpeggiator) Config() ArpConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Configure applies a new configuration, clamping out-of-range values.
// A tempo or time-base change while playing restarts the clock so the
// new interval takes effect on the next step.
func (a *Arpeggiator) Configure(cfg ArpConfig) {
	cfg.normalize()
	a.mu.Lock()
	restart := a.playing && (cfg.Tempo != a.cfg.Tempo || cfg.TimeBase != a.cfg.TimeBase)
	a.cfg = cfg
	a.seqDirty = true
	if restart {
		a.stopClockLocked()
		a.startClockLocked()
	}
	a.mu.Unlock()
}

// Enabled reports whether the arpeggiator is switched on
func (a *Arpeggiator) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// SetEnabled switches the arpeggiator on or off. Enabling with notes
// already held starts the clock; disabling flushes the sounding note.
func (a *Arpeggiator) SetEnabled(on bool) {
	a.mu.Lock()
	if a.enabled == on {
		a.mu.Unlock()
		return
	}
	a.enabled = on
	var flush []midi.OutputNote
	if on && len(a.held) > 0 {
		a.startClockLocked()
	} else if !on {
		a.stopClockLocked()
		flush = a.takeSoundingLocked()
	}
	a.mu.Unlock()
	a.emitOffs(flush)
}

// NoteOn adds a note to the held set, keeping it sorted and
// duplicate-free. The first held note starts the clock when enabled.
func (a *Arpeggiator) NoteOn(note, velocity, channel uint8) {
	a.mu.Lock()
	idx := sort.Search(len(a.held), func(i int) bool { return a.held[i].note >= note })
	if idx < len(a.held) && a.held[idx].note == note {
		a.held[idx].velocity = velocity
		a.mu.Unlock()
		return
	}
	h := heldNote{note: note, velocity: velocity, channel: channel, order: a.nextOrder}
	a.nextOrder++
	a.held = append(a.held, heldNote{})
	copy(a.held[idx+1:], a.held[idx:])
	a.held[idx] = h
	a.seqDirty = true

	if a.enabled && !a.playing {
		a.startClockLocked()
	}
	a.mu.Unlock()
}

// NoteOff removes a note from the held set. Releasing the last note
// stops the clock and flushes the sounding note.
func (a *Arpeggiator) NoteOff(note uint8) {
	a.mu.Lock()
	idx := sort.Search(len(a.held), func(i int) bool { return a.held[i].note >= note })
	if idx >= len(a.held) || a.held[idx].note != note {
		a.mu.Unlock()
		return
	}
	a.held = append(a.held[:idx], a.held[idx+1:]...)
	a.seqDirty = true

	var flush []midi.OutputNote
	if len(a.held) == 0 {
		a.stopClockLocked()
		flush = a.takeSoundingLocked()
	}
	a.mu.Unlock()
	a.emitOffs(flush)
}

// HeldNotes returns the held note numbers in ascending order
func (a *Arpeggiator) HeldNotes() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	notes := make([]uint8, len(a.held))
	for i, h := range a.held {
		notes[i] = h.note
	}
	return notes
}

// Playing reports whether the step clock is running
func (a *Arpeggiator) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

// Panic clears held notes, cancels scheduling and silences the
// sounding note unconditionally.
func (a *Arpeggiator) Panic() {
	a.mu.Lock()
	a.held = nil
	a.seqDirty = true
	a.stopClockLocked()
	flush := a.takeSoundingLocked()
	a.mu.Unlock()
	a.emitOffs(flush)
}

// startClockLocked begins stepping from a fresh grid anchor
func (a *Arpeggiator) startClockLocked() {
	a.playing = true
	a.step = 0
	a.octaveCursor = 0
	a.tickIndex = 0
	a.clockStart = a.sched.Now()
	a.log.Debug("arp clock start",
		zap.Float64("tempo", a.cfg.Tempo),
		zap.String("timeBase", a.cfg.TimeBase.String()))
	a.scheduleNextLocked()
}

// stopClockLocked cancels the pending step and note-off timers
func (a *Arpeggiator) stopClockLocked() {
	if a.playing {
		a.log.Debug("arp clock stop")
	}
	a.playing = false
	if a.cancelTick != nil {
		a.cancelTick()
		a.cancelTick = nil
	}
	if a.cancelNoteOff != nil {
		a.cancelNoteOff()
		a.cancelNoteOff = nil
	}
}

// scheduleNextLocked computes the delay to the next grid line from
// elapsed time, so scheduling error does not accumulate. Odd steps are
// pushed off the grid by the swing amount.
func (a *Arpeggiator) scheduleNextLocked() {
	stepDur := a.cfg.TimeBase.StepDuration(a.cfg.Tempo)
	target := time.Duration(a.tickIndex) * stepDur
	if a.tickIndex%2 == 1 {
		target += time.Duration(a.cfg.Swing * float64(stepDur) / 2)
	}
	delay := target - a.sched.Now().Sub(a.clockStart)
	if delay < 0 {
		delay = 0
	}
	a.cancelTick = a.sched.Schedule(delay, a.tick)
}

func (a *Arpeggiator) tick() {
	a.mu.Lock()
	if !a.playing {
		a.mu.Unlock()
		return
	}

	seq := a.sequenceLocked()
	if len(seq) == 0 {
		a.stopClockLocked()
		flush := a.takeSoundingLocked()
		a.mu.Unlock()
		a.emitOffs(flush)
		return
	}

	cell := a.cfg.Pattern[a.step%len(a.cfg.Pattern)]
	stepDur := a.cfg.TimeBase.StepDuration(a.cfg.Tempo)

	var offs, ons []midi.OutputNote
	if cell.Enabled {
		offs = a.takeSoundingLocked()
		dur := time.Duration(float64(stepDur) * cell.GateLength * a.cfg.GateLength)
		velocity := clampVelocity(int(math.Round(arpBaseVelocity * cell.VelocityScale)))

		if a.cfg.Mode == ModeChord {
			for _, h := range a.held {
				ons = append(ons, a.buildNoteLocked(h, cell, velocity, dur))
			}
		} else {
			h := seq[a.step%len(seq)]
			ons = append(ons, a.buildNoteLocked(h, cell, velocity, dur))
		}
		a.sounding = append(a.sounding[:0], ons...)
		a.scheduleNoteOffLocked(dur)
	}

	seqLen := len(seq)
	if a.cfg.Mode == ModeChord {
		seqLen = 1 // the whole chord is a single sequence entry
	}
	a.advanceStepLocked(seqLen)
	a.tickIndex++
	a.scheduleNextLocked()
	a.mu.Unlock()

	a.emitOffs(offs)
	for _, n := range ons {
		a.output(n, true)
	}
}

func (a *Arpeggiator) buildNoteLocked(h heldNote, cell ArpStep, velocity uint8, dur time.Duration) midi.OutputNote {
	num := clampNote(int(h.note) + cell.OctaveOffset*12 + a.octaveCursor*12)
	return midi.OutputNote{
		Number:   num,
		Velocity: velocity,
		Channel:  h.channel,
		Duration: dur,
	}
}

// advanceStepLocked walks the step and octave cursors. A full pass is
// seqLen*octaveRange steps; the octave cursor bumps (wrapping) each
// time the step crosses a multiple of the sequence length, so every
// mode plays its complete sequence once per octave.
func (a *Arpeggiator) advanceStepLocked(seqLen int) {
	a.step++
	if seqLen == 0 {
		return
	}
	if a.step >= seqLen*a.cfg.OctaveRange {
		a.step = 0
		a.octaveCursor = 0
	} else if a.step%seqLen == 0 {
		a.octaveCursor = (a.octaveCursor + 1) % a.cfg.OctaveRange
	}
}

func (a *Arpeggiator) scheduleNoteOffLocked(dur time.Duration) {
	if a.cancelNoteOff != nil {
		a.cancelNoteOff()
	}
	a.cancelNoteOff = a.sched.Schedule(dur, func() {
		a.mu.Lock()
		flush := a.takeSoundingLocked()
		a.cancelNoteOff = nil
		a.mu.Unlock()
		a.emitOffs(flush)
	})
}

// takeSoundingLocked detaches the currently sounding notes so the
// caller can emit their note-offs outside the lock
func (a *Arpeggiator) takeSoundingLocked() []midi.OutputNote {
	if len(a.sounding) == 0 {
		return nil
	}
	out := a.sounding
	a.sounding = nil
	if a.cancelNoteOff != nil {
		a.cancelNoteOff()
		a.cancelNoteOff = nil
	}
	return out
}

func (a *Arpeggiator) emitOffs(notes []midi.OutputNote) {
	for _, n := range notes {
		a.output(n, false)
	}
}

// sequenceLocked returns the mode-ordered note sequence, rebuilding the
// cache when the held set, mode or pattern changed
func (a *Arpeggiator) sequenceLocked() []heldNote {
	if !a.seqDirty {
		return a.seq
	}
	a.seqDirty = false
	a.seq = a.seq[:0]

	switch a.cfg.Mode {
	case ModeUp, ModeChord:
		a.seq = append(a.seq, a.held...)
	case ModeDown:
		for i := len(a.held) - 1; i >= 0; i-- {
			a.seq = append(a.seq, a.held[i])
		}
	case ModeUpDown:
		a.seq = append(a.seq, a.held...)
		for i := len(a.held) - 2; i >= 1; i-- {
			a.seq = append(a.seq, a.held[i])
		}
	case ModeDownUp:
		for i := len(a.held) - 1; i >= 0; i-- {
			a.seq = append(a.seq, a.held[i])
		}
		for i := 1; i < len(a.held)-1; i++ {
			a.seq = append(a.seq, a.held[i])
		}
	case ModeRandom:
		a.seq = append(a.seq, a.held...)
		a.rng.Shuffle(len(a.seq), func(i, j int) {
			a.seq[i], a.seq[j] = a.seq[j], a.seq[i]
		})
	case ModePlayed:
		a.seq = append(a.seq, a.held...)
		sort.SliceStable(a.seq, func(i, j int) bool { return a.seq[i].order < a.seq[j].order })
	}
	return a.seq
}
