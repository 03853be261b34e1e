package render

import (
	"context"
	"fmt"
	"math"
	"runtime"

	fractal "github.com/marben/dist_fractal"
	"golang.org/x/sync/errgroup"
)

// Options holds the colouring and scheduling configuration of a render.
type Options struct {
	Palette     fractal.Palette
	Bailout     float64
	Smooth      bool
	ColourScale float64
	// Workers bounds the number of columns evaluated at once. Zero uses GOMAXPROCS.
	Workers int
}

func DefaultOptions() Options {
	return Options{
		Palette:     fractal.DefaultPalette,
		Bailout:     DefaultBailout,
		Smooth:      true,
		ColourScale: fractal.DefaultColourScale,
	}
}

// OptionsForJob fills the job's unset values with defaults.
func OptionsForJob(j fractal.Job) Options {
	o := DefaultOptions()
	if len(j.Palette) > 0 {
		o.Palette = j.Palette
	}
	if j.Bailout != 0 {
		o.Bailout = j.Bailout
	}
	if j.ColourScale != 0 {
		o.ColourScale = j.ColourScale
	}
	o.Smooth = !j.NoSmooth
	return o
}

func (o Options) validate() error {
	if err := o.Palette.Validate(); err != nil {
		return err
	}
	if !fractal.ValidBailout(o.Bailout) {
		return fmt.Errorf("%w: got %g", fractal.ErrBailout, o.Bailout)
	}
	if !(o.ColourScale >= 0) || math.IsInf(o.ColourScale, 0) {
		return fmt.Errorf("colour scale must be a non-negative finite number: got %g", o.ColourScale)
	}
	return nil
}

func (o Options) colour(r Result) fractal.RGB {
	if v, ok := r.Escaped(); ok {
		return o.Palette.At(v, o.ColourScale)
	}
	return fractal.Black
}

// Field evaluates every pixel of p's oversampled grid. Each column is an
// independent task writing only its own cells, so the buffer needs no lock.
// onColumn, if set, is called from the worker goroutines after a column is
// finished. The buffer is returned only once all columns are done.
func Field(ctx context.Context, p fractal.Params, opts Options, onColumn func(x int)) (*Buffer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	w, h := p.GridSize()
	buf := NewBuffer(w, h)
	ev := NewEvaluator(p.MaxIterations, opts.Bailout, opts.Smooth)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for x := range w {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			column(buf, x, p, ev, opts)
			if onColumn != nil {
				onColumn(x)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render field: %w", err)
	}
	return buf, nil
}

func column(buf *Buffer, x int, p fractal.Params, ev Evaluator, opts Options) {
	for y := range buf.Height {
		pt := Map(x, y, buf.Width, buf.Height, p.Target, p.Zoom)

		var r Result
		if seed := p.JuliaSeed; seed != nil {
			r = ev.Escape(pt, *seed)
		} else {
			r = ev.Escape(fractal.Point{}, pt)
		}
		buf.Set(x, y, opts.colour(r))
	}
}
