package theme

type RGB [3]uint8

// Palette is an ordered color ramp sampled by normalized position
type Palette struct {
	Name   string
	Colors []RGB
}

// DefaultPalette is a dark-to-bright ramp: background tones at the low
// end, signal colors at the top
func DefaultPalette() *Palette {
	return &Palette{
		Name: "signal",
		Colors: []RGB{
			{0x16, 0x10, 0x2a},
			{0x2a, 0x1e, 0x45},
			{0x4a, 0x2e, 0x63},
			{0x7a, 0x4a, 0x8c},
			{0xb0, 0x6a, 0xb8},
			{0xe0, 0x52, 0x9a},
			{0xf0, 0x6a, 0x6a},
			{0xf5, 0x9a, 0x4a},
			{0xf8, 0xc8, 0x3a},
			{0xfa, 0xf0, 0x50},
		},
	}
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	if norm <= 0 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	frac := pos - float64(i)

	c0 := p.Colors[i]
	c1 := p.Colors[i+1]

	return RGB{
		lerp(c0[0], c1[0], frac),
		lerp(c0[1], c1[1], frac),
		lerp(c0[2], c1[2], frac),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}
