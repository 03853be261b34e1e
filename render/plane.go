package render

import fractal "github.com/marben/dist_fractal"

// Map converts pixel (x, y) of a w×h grid into the complex plane. The shorter
// side of the grid spans 4/zoom units centred on target.
func Map(x, y, w, h int, target fractal.Point, zoom float64) fractal.Point {
	scale := 4 / float64(min(w, h)) / zoom
	return fractal.Point{
		Re: float64(x-w/2)*scale + target.Re,
		Im: float64(y-h/2)*scale + target.Im,
	}
}

// SeedAt returns the point the render of p samples first for output pixel
// (x, y). Used as a Julia seed it selects the Julia set associated with that
// pixel.
func SeedAt(p fractal.Params, x, y int) fractal.Point {
	n := max(p.Supersample, 1)
	return Map(x*n, y*n, p.Width*n, p.Height*n, p.Target, p.Zoom)
}
