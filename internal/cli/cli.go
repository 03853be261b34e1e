// Package cli parses the render arguments shared by the commands:
//
//	[flags] width height [max_iterations] [supersample]
package cli

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	fractal "github.com/marben/dist_fractal"
	"github.com/marben/dist_fractal/render"
)

// JobFlags holds the flags describing a job.
type JobFlags struct {
	fs *flag.FlagSet

	location    string
	target      string
	zoom        float64
	julia       string
	juliaAt     string
	palette     string
	bailout     float64
	colourScale float64
	noSmooth    bool
	preview     int
}

// Register defines the job flags on fs.
func Register(fs *flag.FlagSet) *JobFlags {
	f := &JobFlags{fs: fs}
	fs.StringVar(&f.location, "location", fractal.FullSet.Name, "named location to centre on")
	fs.StringVar(&f.target, "target", "", "centre of the view as re,im (overrides -location)")
	fs.Float64Var(&f.zoom, "zoom", 0, "zoom factor (overrides -location)")
	fs.StringVar(&f.julia, "julia", "", "render the Julia set of seed re,im")
	fs.StringVar(&f.juliaAt, "julia-at", "", "render the Julia set of the point under output pixel x,y")
	fs.StringVar(&f.palette, "palette", fractal.DefaultPalette.String(), "comma separated palette anchors")
	fs.Float64Var(&f.bailout, "bailout", render.DefaultBailout, "bailout radius, at least 2")
	fs.Float64Var(&f.colourScale, "colour-scale", fractal.DefaultColourScale, "palette anchors per escape iteration")
	fs.BoolVar(&f.noSmooth, "no-smooth", false, "colour by integer escape count")
	fs.IntVar(&f.preview, "preview", 0, "also produce a preview whose longer side has this many pixels (server only)")
	return f
}

func (f *JobFlags) set(name string) bool {
	found := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Job builds a validated job from the parsed flags and the positional
// arguments. A missing or unparseable iteration count or supersample factor
// falls back to its default.
func (f *JobFlags) Job(args []string) (fractal.Job, error) {
	if len(args) < 2 {
		return fractal.Job{}, errors.New("usage: [flags] width height [max_iterations] [supersample]")
	}
	width, err := strconv.Atoi(args[0])
	if err != nil {
		return fractal.Job{}, fmt.Errorf("width: %w", err)
	}
	height, err := strconv.Atoi(args[1])
	if err != nil {
		return fractal.Job{}, fmt.Errorf("height: %w", err)
	}

	p := fractal.Params{
		Width:         width,
		Height:        height,
		MaxIterations: fractal.DefaultMaxIterations,
		Supersample:   fractal.DefaultSupersample,
	}
	if len(args) > 2 {
		if v, err := strconv.ParseUint(args[2], 10, 64); err == nil {
			p.MaxIterations = v
		}
	}
	if len(args) > 3 {
		if v, err := strconv.Atoi(args[3]); err == nil {
			p.Supersample = v
		}
	}

	loc, err := fractal.LocationByName(f.location)
	if err != nil {
		return fractal.Job{}, err
	}
	p.Target, p.Zoom = loc.Target, loc.Zoom
	if f.set("target") {
		if p.Target, err = ParsePoint(f.target); err != nil {
			return fractal.Job{}, fmt.Errorf("-target: %w", err)
		}
	}
	if f.set("zoom") {
		p.Zoom = f.zoom
	}

	switch {
	case f.julia != "" && f.juliaAt != "":
		return fractal.Job{}, errors.New("-julia and -julia-at are mutually exclusive")
	case f.julia != "":
		seed, err := ParsePoint(f.julia)
		if err != nil {
			return fractal.Job{}, fmt.Errorf("-julia: %w", err)
		}
		p.JuliaSeed = &seed
	case f.juliaAt != "":
		x, y, err := parsePixel(f.juliaAt)
		if err != nil {
			return fractal.Job{}, fmt.Errorf("-julia-at: %w", err)
		}
		if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
			return fractal.Job{}, fmt.Errorf("-julia-at: pixel %d,%d outside %dx%d", x, y, p.Width, p.Height)
		}
		seed := render.SeedAt(p, x, y)
		p.JuliaSeed = &seed
	}

	palette, err := fractal.ParsePalette(f.palette)
	if err != nil {
		return fractal.Job{}, fmt.Errorf("-palette: %w", err)
	}

	job := fractal.Job{
		Params:      p,
		Palette:     palette,
		Bailout:     f.bailout,
		ColourScale: f.colourScale,
		NoSmooth:    f.noSmooth,
		Preview:     f.preview,
	}
	if err := job.Validate(); err != nil {
		return fractal.Job{}, err
	}
	return job, nil
}

// ParsePoint parses "re,im".
func ParsePoint(s string) (fractal.Point, error) {
	reStr, imStr, ok := strings.Cut(s, ",")
	if !ok {
		return fractal.Point{}, fmt.Errorf("%q is not re,im", s)
	}
	re, err := strconv.ParseFloat(strings.TrimSpace(reStr), 64)
	if err != nil {
		return fractal.Point{}, err
	}
	im, err := strconv.ParseFloat(strings.TrimSpace(imStr), 64)
	if err != nil {
		return fractal.Point{}, err
	}
	return fractal.Point{Re: re, Im: im}, nil
}

func parsePixel(s string) (x, y int, err error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not x,y", s)
	}
	if x, err = strconv.Atoi(strings.TrimSpace(xs)); err != nil {
		return 0, 0, err
	}
	if y, err = strconv.Atoi(strings.TrimSpace(ys)); err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
