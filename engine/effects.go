package engine

import (
	"math"
	"math/rand"
	"time"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/midi"
)

// NoteEffectsConfig controls the per-note transform pipeline. Every
// note leaving the engine passes through it, whether it came from the
// arpeggiator, the MPE zone, or direct input.
type NoteEffectsConfig struct {
	Transpose        int     `json:"transpose"`        // semitones, -24..24
	QuantizeGrid     float64 `json:"quantizeGrid"`     // ms, 0 disables
	QuantizeStrength float64 `json:"quantizeStrength"` // 0-1
	Swing            float64 `json:"swing"`            // 0-1, displaces odd grid lines
	HumanizeTiming   float64 `json:"humanizeTiming"`   // ms of random offset
	HumanizeVelocity float64 `json:"humanizeVelocity"` // velocity units of random spread
	VelocityScale    float64 `json:"velocityScale"`    // 0-2
}

// DefaultNoteEffectsConfig returns the neutral pipeline: no transform
func DefaultNoteEffectsConfig() NoteEffectsConfig {
	return NoteEffectsConfig{VelocityScale: 1.0}
}

func (c *NoteEffectsConfig) normalize() {
	c.Transpose = clampInt(c.Transpose, -24, 24)
	if c.QuantizeGrid < 0 {
		c.QuantizeGrid = 0
	}
	c.QuantizeStrength = clampFloat(c.QuantizeStrength, 0, 1)
	c.Swing = clampFloat(c.Swing, 0, 1)
	if c.HumanizeTiming < 0 {
		c.HumanizeTiming = 0
	}
	if c.HumanizeVelocity < 0 {
		c.HumanizeVelocity = 0
	}
	c.VelocityScale = clampFloat(c.VelocityScale, 0, 2)
}

// NoteEffectsProcessor applies transpose, quantize, humanize and
// velocity scaling to outgoing notes. Deterministic apart from the
// injected random source, which tests seed.
type NoteEffectsProcessor struct {
	cfg NoteEffectsConfig
	rng *rand.Rand
}

// NewNoteEffectsProcessor creates a processor. A nil rng falls back to
// a time-seeded source.
func NewNoteEffectsProcessor(cfg NoteEffectsConfig, rng *rand.Rand) *NoteEffectsProcessor {
	cfg.normalize()
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &NoteEffectsProcessor{cfg: cfg, rng: rng}
}

// Configure replaces the pipeline settings, clamping out-of-range values
func (p *NoteEffectsProcessor) Configure(cfg NoteEffectsConfig) {
	cfg.normalize()
	p.cfg = cfg
}

// Config returns the active settings
func (p *NoteEffectsProcessor) Config() NoteEffectsConfig {
	return p.cfg
}

// Process transforms one note. offset is the note's position relative
// to its timing reference (the arpeggiator step grid, or zero for live
// input); the returned offset carries the quantize/swing/humanize
// displacement the caller should apply before emitting.
func (p *NoteEffectsProcessor) Process(note midi.OutputNote, offset time.Duration) (midi.OutputNote, time.Duration) {
	out := note

	out.Number = clampNote(int(note.Number) + p.cfg.Transpose)

	offset = p.quantize(offset)

	if p.cfg.HumanizeTiming > 0 {
		jitter := (p.rng.Float64()*2 - 1) * p.cfg.HumanizeTiming
		offset += time.Duration(jitter * float64(time.Millisecond))
		if offset < 0 {
			offset = 0
		}
	}

	vel := float64(out.Velocity)
	if p.cfg.HumanizeVelocity > 0 {
		vel += (p.rng.Float64()*2 - 1) * p.cfg.HumanizeVelocity
	}
	vel *= p.cfg.VelocityScale
	out.Velocity = clampVelocity(int(math.Round(vel)))

	return out, offset
}

// quantize pulls the offset toward the nearest grid line by strength.
// Swing displaces every odd grid line forward by swing/2 of a grid.
func (p *NoteEffectsProcessor) quantize(offset time.Duration) time.Duration {
	if p.cfg.QuantizeGrid <= 0 || p.cfg.QuantizeStrength <= 0 {
		return offset
	}
	grid := p.cfg.QuantizeGrid * float64(time.Millisecond)
	pos := float64(offset)

	line := math.Round(pos / grid)
	target := line * grid
	if int64(line)%2 != 0 {
		target += p.cfg.Swing * grid / 2
	}

	quantized := pos + (target-pos)*p.cfg.QuantizeStrength
	if quantized < 0 {
		quantized = 0
	}
	return time.Duration(quantized)
}
