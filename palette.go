package fractal

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is an 8-bit colour. It marshals to and from "#rrggbb".
type RGB struct {
	R, G, B uint8
}

// Black is the colour of points inside the set.
var Black = RGB{}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *RGB) UnmarshalText(text []byte) error {
	parsed, err := ParseRGB(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseRGB parses "#rrggbb", "rrggbb" or the short "#rgb" form.
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	col, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("parse colour %q: %w", s, err)
	}
	r, g, b := col.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// Palette is a cyclic sequence of anchor colours. Escape indices are mapped
// onto it by linear interpolation between neighbouring anchors.
type Palette []RGB

// DefaultPalette is a blue/white/orange cycle.
var DefaultPalette = Palette{
	{0, 7, 100},
	{32, 107, 203},
	{237, 255, 255},
	{255, 170, 0},
	{0, 2, 0},
}

// DefaultColourScale sets how many escape iterations one palette anchor spans (1/scale).
const DefaultColourScale = 0.1

// ParsePalette parses a comma separated list of hex colours.
func ParsePalette(s string) (Palette, error) {
	var p Palette
	for _, field := range strings.Split(s, ",") {
		if strings.TrimSpace(field) == "" {
			continue
		}
		c, err := ParseRGB(field)
		if err != nil {
			return nil, err
		}
		p = append(p, c)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p Palette) Validate() error {
	if len(p) == 0 {
		return ErrPalette
	}
	return nil
}

func (p Palette) String() string {
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// At maps escape index v onto the palette. scale controls how fast the
// palette cycles. The palette must not be empty.
func (p Palette) At(v, scale float64) RGB {
	n := len(p)
	l := float64(n)

	t := math.Mod(v*scale, l)
	if t < 0 {
		t += l
	}
	// v*scale overflowing to Inf leaves t NaN
	if !(t >= 0 && t < l) {
		t = 0
	}
	lo := math.Floor(t)
	frac := t - lo

	a := p[int(lo)%n]
	b := p[int(math.Ceil(t))%n]

	return RGB{
		R: lerp(a.R, b.R, frac),
		G: lerp(a.G, b.G, frac),
		B: lerp(a.B, b.B, frac),
	}
}

// lerp truncates toward zero after weighting, it does not round.
func lerp(a, b uint8, f float64) uint8 {
	v := float64(a) + (float64(b)-float64(a))*f
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
