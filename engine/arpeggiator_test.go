package engine

import (
	"testing"
	"time"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/midi"
)

type noteCapture struct {
	notes []midi.OutputNote
	ons   []bool
}

func (c *noteCapture) collect(n midi.OutputNote, on bool) {
	c.notes = append(c.notes, n)
	c.ons = append(c.ons, on)
}

func (c *noteCapture) onNumbers() []uint8 {
	var out []uint8
	for i, on := range c.ons {
		if on {
			out = append(out, c.notes[i].Number)
		}
	}
	return out
}

func (c *noteCapture) reset() {
	c.notes = nil
	c.ons = nil
}

func TestStepDuration(t *testing.T) {
	tests := []struct {
		base  TimeBase
		tempo float64
		want  time.Duration
	}{
		{Sixteenth, 120, 125 * time.Millisecond},
		{Eighth, 120, 250 * time.Millisecond},
		{EighthTriplet, 120, 500 * time.Millisecond / 3},
		{Quarter, 120, 500 * time.Millisecond},
		{QuarterTriplet, 120, 1000 * time.Millisecond / 3},
		{Half, 120, 1000 * time.Millisecond},
		{Quarter, 60, 1000 * time.Millisecond},
		{Quarter, 300, 200 * time.Millisecond},
		{Sixteenth, 20, 750 * time.Millisecond},
	}
	for _, tt := range tests {
		got := tt.base.StepDuration(tt.tempo)
		diff := got - tt.want
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Microsecond {
			t.Errorf("StepDuration(%v, %v) = %v, want %v", tt.base, tt.tempo, got, tt.want)
		}
	}
}

func newTestArp(mode ArpMode, cap *noteCapture, fs *fakeScheduler) *Arpeggiator {
	cfg := DefaultArpConfig()
	cfg.Mode = mode
	return NewArpeggiator(cfg, fs, cap.collect, nil)
}

func playSteps(a *Arpeggiator, fs *fakeScheduler, steps int) {
	step := a.Config().TimeBase.StepDuration(a.Config().Tempo)
	fs.advance(time.Duration(steps) * step)
}

func TestArpModeSequences(t *testing.T) {
	tests := []struct {
		mode ArpMode
		want []uint8
	}{
		{ModeUp, []uint8{60, 64, 67, 60, 64, 67}},
		{ModeDown, []uint8{67, 64, 60, 67, 64, 60}},
		{ModeUpDown, []uint8{60, 64, 67, 64, 60, 64}},
		{ModeDownUp, []uint8{67, 64, 60, 64, 67, 64}},
		{ModePlayed, []uint8{64, 60, 67, 64, 60, 67}},
	}
	for _, tt := range tests {
		fs := newFakeScheduler()
		cap := &noteCapture{}
		a := newTestArp(tt.mode, cap, fs)

		// insertion order 64, 60, 67 for ModePlayed
		a.NoteOn(64, 100, 0)
		a.NoteOn(60, 100, 0)
		a.NoteOn(67, 100, 0)
		a.SetEnabled(true)

		playSteps(a, fs, 6)
		got := cap.onNumbers()
		if len(got) < len(tt.want) {
			t.Fatalf("mode %v: got %d note-ons, want at least %d", tt.mode, len(got), len(tt.want))
		}
		for i, want := range tt.want {
			if got[i] != want {
				t.Errorf("mode %v: step %d = %d, want %d (full: %v)", tt.mode, i, got[i], want, got)
			}
		}
		a.Panic()
	}
}

func TestArpChordModeSoundsAllNotes(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	a := newTestArp(ModeChord, cap, fs)

	a.NoteOn(60, 100, 0)
	a.NoteOn(64, 100, 0)
	a.NoteOn(67, 100, 0)
	a.SetEnabled(true)

	fs.advance(time.Millisecond)
	got := cap.onNumbers()
	if len(got) != 3 {
		t.Fatalf("chord tick emitted %d notes, want 3: %v", len(got), got)
	}
	for i, want := range []uint8{60, 64, 67} {
		if got[i] != want {
			t.Errorf("chord note %d = %d, want %d", i, got[i], want)
		}
	}
}

func TestArpReleaseLastNoteFlushesAndStops(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	a := newTestArp(ModeUp, cap, fs)

	a.NoteOn(60, 100, 0)
	a.SetEnabled(true)
	fs.advance(time.Millisecond)

	if !a.Playing() {
		t.Fatal("arp should be playing with a held note")
	}
	cap.reset()

	a.NoteOff(60)
	if a.Playing() {
		t.Error("arp should stop when the last note is released")
	}
	if len(cap.notes) != 1 || cap.ons[0] {
		t.Fatalf("expected exactly one note-off, got %v ons=%v", cap.notes, cap.ons)
	}

	// nothing further may sound
	cap.reset()
	fs.advance(5 * time.Second)
	if len(cap.notes) != 0 {
		t.Errorf("arp emitted %d events after stopping", len(cap.notes))
	}
}

func TestArpDisableFlushesSoundingNote(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	a := newTestArp(ModeUp, cap, fs)

	a.NoteOn(60, 100, 0)
	a.SetEnabled(true)
	fs.advance(time.Millisecond)
	cap.reset()

	a.SetEnabled(false)
	if len(cap.notes) != 1 || cap.ons[0] {
		t.Fatalf("disable should emit one note-off, got %v ons=%v", cap.notes, cap.ons)
	}
}

func TestArpVelocityFromStepScale(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	cfg := DefaultArpConfig()
	cfg.Pattern = []ArpStep{
		{Enabled: true, VelocityScale: 1.0, GateLength: 0.5},
		{Enabled: true, VelocityScale: 0.5, GateLength: 0.5},
		{Enabled: true, VelocityScale: 2.0, GateLength: 0.5},
		{Enabled: true, VelocityScale: 0.0, GateLength: 0.5},
	}
	a := NewArpeggiator(cfg, fs, cap.collect, nil)

	a.NoteOn(60, 100, 0)
	a.NoteOn(62, 100, 0)
	a.NoteOn(64, 100, 0)
	a.NoteOn(65, 100, 0)
	a.SetEnabled(true)
	playSteps(a, fs, 4)

	var vels []uint8
	for i, on := range cap.ons {
		if on {
			vels = append(vels, cap.notes[i].Velocity)
		}
	}
	want := []uint8{100, 50, 127, 1} // round(100*scale), clamped to [1,127]
	if len(vels) < len(want) {
		t.Fatalf("got %d note-ons, want %d", len(vels), len(want))
	}
	for i := range want {
		if vels[i] != want[i] {
			t.Errorf("step %d velocity = %d, want %d", i, vels[i], want[i])
		}
	}
}

func TestArpDisabledStepAdvancesSilently(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	cfg := DefaultArpConfig()
	cfg.Pattern = []ArpStep{
		{Enabled: true, VelocityScale: 1, GateLength: 0.5},
		{Enabled: false, VelocityScale: 1, GateLength: 0.5},
	}
	a := NewArpeggiator(cfg, fs, cap.collect, nil)

	a.NoteOn(60, 100, 0)
	a.NoteOn(64, 100, 0)
	a.NoteOn(67, 100, 0)
	a.NoteOn(70, 100, 0)
	a.SetEnabled(true)
	playSteps(a, fs, 4)

	// pattern alternates on/off; held has 4 notes so steps 0..3 hit
	// indices 0..3 of the sequence with cells on,off,on,off
	got := cap.onNumbers()
	want := []uint8{60, 67}
	if len(got) != len(want) {
		t.Fatalf("got note-ons %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("note-on %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestArpOctaveRangeWalksOctaves(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	cfg := DefaultArpConfig()
	cfg.OctaveRange = 2
	a := NewArpeggiator(cfg, fs, cap.collect, nil)

	a.NoteOn(60, 100, 0)
	a.NoteOn(64, 100, 0)
	a.SetEnabled(true)
	playSteps(a, fs, 4)

	got := cap.onNumbers()
	want := []uint8{60, 64, 72, 76} // second pass shifted up an octave
	if len(got) < len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("note-on %d = %d, want %d (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestArpGateLengthControlsNoteOff(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	cfg := DefaultArpConfig()
	cfg.TimeBase = Quarter // 500ms at 120
	cfg.GateLength = 0.5
	cfg.Pattern = []ArpStep{{Enabled: true, VelocityScale: 1, GateLength: 0.5}}
	a := NewArpeggiator(cfg, fs, cap.collect, nil)

	a.NoteOn(60, 100, 0)
	a.SetEnabled(true)
	fs.advance(time.Millisecond) // first tick
	cap.reset()

	// gate = 500ms * 0.5 * 0.5 = 125ms from the tick at t=0
	fs.advance(110 * time.Millisecond)
	if len(cap.notes) != 0 {
		t.Fatalf("note-off fired early: %v", cap.notes)
	}
	fs.advance(20 * time.Millisecond)
	if len(cap.notes) != 1 || cap.ons[0] {
		t.Fatalf("expected note-off at gate end, got %v ons=%v", cap.notes, cap.ons)
	}
}

func TestArpSwingDelaysOddSteps(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	cfg := DefaultArpConfig()
	cfg.TimeBase = Quarter // 500ms at 120
	cfg.Swing = 0.5
	a := NewArpeggiator(cfg, fs, cap.collect, nil)

	a.NoteOn(60, 100, 0)
	a.NoteOn(64, 100, 0)
	a.SetEnabled(true)

	fs.advance(time.Millisecond) // step 0 on the grid
	cap.reset()

	// step 1 is displaced by swing*step/2 = 125ms past the 500ms line
	fs.advance(615 * time.Millisecond)
	if len(cap.onNumbers()) != 0 {
		t.Fatalf("swung step fired before its displaced slot: %v", cap.notes)
	}
	fs.advance(20 * time.Millisecond)
	if got := cap.onNumbers(); len(got) != 1 {
		t.Fatalf("swung step did not fire in its displaced slot: %v", cap.notes)
	}
}

func TestArpTickGridResistsDrift(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	cfg := DefaultArpConfig()
	cfg.TimeBase = Quarter
	a := NewArpeggiator(cfg, fs, cap.collect, nil)

	a.NoteOn(60, 100, 0)
	a.SetEnabled(true)

	// advance in odd chunks; note-ons must still land on 500ms lines
	for i := 0; i < 10; i++ {
		fs.advance(333 * time.Millisecond)
	}
	count := len(cap.onNumbers())
	// 3330ms of transport covers ticks at 0,500,...,3000 = 7 note-ons
	if count != 7 {
		t.Errorf("expected 7 grid-aligned ticks in 3330ms, got %d", count)
	}
}

func TestArpPanicClearsEverything(t *testing.T) {
	fs := newFakeScheduler()
	cap := &noteCapture{}
	a := newTestArp(ModeUp, cap, fs)

	a.NoteOn(60, 100, 0)
	a.NoteOn(64, 100, 0)
	a.SetEnabled(true)
	fs.advance(time.Millisecond)
	cap.reset()

	a.Panic()
	if len(a.HeldNotes()) != 0 {
		t.Error("panic must clear held notes")
	}
	if a.Playing() {
		t.Error("panic must stop the clock")
	}
	offs := 0
	for _, on := range cap.ons {
		if !on {
			offs++
		}
	}
	if offs != 1 {
		t.Errorf("panic should flush the sounding note, got %d offs", offs)
	}

	cap.reset()
	fs.advance(5 * time.Second)
	if len(cap.notes) != 0 {
		t.Errorf("events after panic: %v", cap.notes)
	}
}

func TestArpConfigClamping(t *testing.T) {
	cfg := ArpConfig{
		Mode:        ModeUp,
		TimeBase:    Sixteenth,
		OctaveRange: 9,
		Swing:       2,
		GateLength:  -1,
		Tempo:       1000,
	}
	cfg.normalize()
	if cfg.OctaveRange != 4 {
		t.Errorf("octave range clamped to %d, want 4", cfg.OctaveRange)
	}
	if cfg.Swing != 1 {
		t.Errorf("swing clamped to %v, want 1", cfg.Swing)
	}
	if cfg.GateLength != 0 {
		t.Errorf("gate length clamped to %v, want 0", cfg.GateLength)
	}
	if cfg.Tempo != 300 {
		t.Errorf("tempo clamped to %v, want 300", cfg.Tempo)
	}
	if len(cfg.Pattern) == 0 {
		t.Error("empty pattern should fall back to the default")
	}
}
