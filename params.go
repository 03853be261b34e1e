package fractal

import (
	"errors"
	"fmt"
	"math"
)

// Configuration errors. Params.Validate and Job.Validate wrap them with detail.
var (
	ErrResolution  = errors.New("resolution must be positive")
	ErrSupersample = errors.New("supersample factor must be at least 1")
	ErrIterations  = errors.New("max iterations must be positive")
	ErrZoom        = errors.New("zoom must be a positive finite number")
	ErrTarget      = errors.New("target must be finite")
	ErrPalette     = errors.New("palette must not be empty")
)

// Defaults applied by argument parsing when a value is absent or unparseable.
const (
	DefaultMaxIterations = 100
	DefaultSupersample   = 1
)

// Point is a point in the complex plane.
type Point struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.Re, p.Im)
}

func (p Point) finite() bool {
	return !math.IsNaN(p.Re) && !math.IsInf(p.Re, 0) && !math.IsNaN(p.Im) && !math.IsInf(p.Im, 0)
}

// Family selects which set is rendered.
type Family int

const (
	Mandelbrot Family = iota
	Julia
)

func (f Family) String() string {
	switch f {
	case Mandelbrot:
		return "mandelbrot"
	case Julia:
		return "julia"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// Params describes one render. Once validated it is shared read-only by all
// render workers.
type Params struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Supersample   int     `json:"supersample"`
	MaxIterations uint64  `json:"max_iterations"`
	Target        Point   `json:"target"`
	Zoom          float64 `json:"zoom"`
	// JuliaSeed selects the Julia family when set; nil renders the Mandelbrot set.
	JuliaSeed *Point `json:"julia_seed,omitempty"`
}

// Family reports the family selected by JuliaSeed.
func (p Params) Family() Family {
	if p.JuliaSeed != nil {
		return Julia
	}
	return Mandelbrot
}

// GridSize returns the dimensions of the oversampled grid.
func (p Params) GridSize() (w, h int) {
	return p.Width * p.Supersample, p.Height * p.Supersample
}

// Validate rejects configurations that cannot be rendered.
func (p Params) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrResolution, p.Width, p.Height)
	}
	if p.Supersample < 1 {
		return fmt.Errorf("%w: got %d", ErrSupersample, p.Supersample)
	}
	if p.Width > math.MaxInt/p.Supersample || p.Height > math.MaxInt/p.Supersample {
		return fmt.Errorf("%w: %dx%d at supersample %d overflows", ErrResolution, p.Width, p.Height, p.Supersample)
	}
	// the oversampled buffer and the final RGBA image must both be addressable
	if w, h := p.GridSize(); w > math.MaxInt/4/h {
		return fmt.Errorf("%w: %dx%d oversampled grid is too large", ErrResolution, w, h)
	}
	if p.MaxIterations == 0 {
		return ErrIterations
	}
	if !(p.Zoom > 0) || math.IsInf(p.Zoom, 0) {
		return fmt.Errorf("%w: got %g", ErrZoom, p.Zoom)
	}
	if !p.Target.finite() {
		return fmt.Errorf("%w: target %s", ErrTarget, p.Target)
	}
	if p.JuliaSeed != nil && !p.JuliaSeed.finite() {
		return fmt.Errorf("%w: julia seed %s", ErrTarget, *p.JuliaSeed)
	}
	return nil
}
