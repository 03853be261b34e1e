package render

import (
	"math"

	fractal "github.com/marben/dist_fractal"
)

// Degree of the iterated map z² + c.
const Degree = 2

// DefaultBailout radius. The smoothed index is accurate only when |z| at
// escape is far outside the radius-2 circle.
const DefaultBailout = 1000

var logDegree = math.Log(Degree)

// Result is the outcome of iterating one point: either inside (the budget ran
// out) or escaped with a non-negative escape index.
type Result struct {
	escaped bool
	index   float64
}

// Inside is the result of a point that never escaped.
var Inside = Result{}

// Outside returns an escaped result. Negative and NaN indices are clamped to 0.
func Outside(index float64) Result {
	if !(index > 0) {
		index = 0
	}
	return Result{escaped: true, index: index}
}

// Escaped returns the escape index and true, or false for points inside.
func (r Result) Escaped() (float64, bool) {
	return r.index, r.escaped
}

func (r Result) IsInside() bool {
	return !r.escaped
}

// Evaluator iterates z ↦ z² + c.
type Evaluator struct {
	maxIter    uint64
	smooth     bool
	bailout2   float64
	logBailout float64
}

// NewEvaluator returns an evaluator testing |z| > bailout. bailout must be at least 2.
func NewEvaluator(maxIterations uint64, bailout float64, smooth bool) Evaluator {
	return Evaluator{
		maxIter:    maxIterations,
		smooth:     smooth,
		bailout2:   bailout * bailout,
		logBailout: math.Log(bailout),
	}
}

// Escape iterates from z0 with constant c. The Mandelbrot set uses z0 = 0 and
// c = the pixel, a Julia set uses z0 = the pixel and c = the seed.
func (e Evaluator) Escape(z0, c fractal.Point) Result {
	zr, zi := z0.Re, z0.Im
	for n := uint64(0); n < e.maxIter; n++ {
		zr, zi = zr*zr-zi*zi+c.Re, 2*zr*zi+c.Im
		mag2 := zr*zr + zi*zi
		if mag2 > e.bailout2 {
			m := float64(n + 1)
			if !e.smooth {
				return Outside(m)
			}
			logZ := math.Log(mag2) / 2
			return Outside(m - math.Log(logZ/e.logBailout)/logDegree)
		}
	}
	return Inside
}
