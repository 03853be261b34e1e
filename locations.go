package fractal

import (
	"fmt"
	"math"
	"strings"
)

// Region is a rectangular window onto the complex plane.
type Region struct {
	Xmin, Xmax float64
	Ymin, Ymax float64
}

// Centre returns the middle of the region.
func (r Region) Centre() Point {
	return Point{Re: (r.Xmin + r.Xmax) / 2, Im: (r.Ymin + r.Ymax) / 2}
}

// Zoom returns the zoom at which the region's longer side spans the
// 4 units of the unzoomed view.
func (r Region) Zoom() float64 {
	return 4 / math.Max(r.Xmax-r.Xmin, r.Ymax-r.Ymin)
}

// Location is a named render target.
type Location struct {
	Name   string
	Target Point
	Zoom   float64
}

func regionLocation(name string, r Region) Location {
	return Location{Name: name, Target: r.Centre(), Zoom: r.Zoom()}
}

// Classic landmarks in the Mandelbrot set
var (
	// Full set, centred slightly left of the origin
	FullSet = Location{Name: "full", Target: Point{Re: -0.5}, Zoom: 1}

	// Seahorse Valley – dense filaments and repeating “seahorse” curls
	SeahorseValley = regionLocation("seahorse-valley", Region{
		Xmin: -0.8,
		Xmax: -0.7,
		Ymin: 0.05,
		Ymax: 0.15,
	})

	// Elephant Valley – large bulb with trunk-like tendrils
	ElephantValley = regionLocation("elephant-valley", Region{
		Xmin: -1.85,
		Xmax: -1.75,
		Ymin: -0.10,
		Ymax: -0.02,
	})

	// Spiral Minibrot – small Mandelbrot copy with tight spiral arms
	SpiralMinibrot = regionLocation("spiral-minibrot", Region{
		Xmin: -0.7435,
		Xmax: -0.7420,
		Ymin: 0.1310,
		Ymax: 0.1325,
	})

	// Triple Spiral – threefold symmetric spiral structure
	TripleSpiral = regionLocation("triple-spiral", Region{
		Xmin: -0.7480,
		Xmax: -0.7450,
		Ymin: 0.0950,
		Ymax: 0.0980,
	})

	// Valley of the Dragon – deep, highly detailed spiral filaments
	ValleyOfTheDragon = regionLocation("valley-of-the-dragon", Region{
		Xmin: -0.7400,
		Xmax: -0.7350,
		Ymin: 0.1800,
		Ymax: 0.1850,
	})

	// Minibrot in a Mini-Spiral – self-similar Mandelbrot copy inside a spiral arm
	MinibrotInMiniSpiral = regionLocation("minibrot-in-mini-spiral", Region{
		Xmin: -1.7390,
		Xmax: -1.7375,
		Ymin: -0.0235,
		Ymax: -0.0220,
	})
)

// Locations lists the named landmarks.
var Locations = []Location{
	FullSet,
	SeahorseValley,
	ElephantValley,
	SpiralMinibrot,
	TripleSpiral,
	ValleyOfTheDragon,
	MinibrotInMiniSpiral,
}

// LocationByName looks a landmark up case-insensitively.
func LocationByName(name string) (Location, error) {
	for _, l := range Locations {
		if strings.EqualFold(l.Name, name) {
			return l, nil
		}
	}
	names := make([]string, len(Locations))
	for i, l := range Locations {
		names[i] = l.Name
	}
	return Location{}, fmt.Errorf("unknown location %q (known: %s)", name, strings.Join(names, ", "))
}
