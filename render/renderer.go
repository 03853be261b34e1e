package render

import (
	"context"
	"image"
	"sync/atomic"

	fractal "github.com/marben/dist_fractal"
)

// RendererImpl renders jobs on the local CPU.
type RendererImpl struct {
	Workers int
	// OnColumn is called after each oversampled column is finished, possibly
	// from several goroutines at once.
	OnColumn func(x int)
}

var _ fractal.Renderer = RendererImpl{}

// Render implements fractal.Renderer.
func (r RendererImpl) Render(ctx context.Context, job fractal.Job, progress func(done, total int)) (*image.RGBA, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	opts := OptionsForJob(job)
	opts.Workers = r.Workers

	total, _ := job.Params.GridSize()
	var done atomic.Int64
	buf, err := Field(ctx, job.Params, opts, func(x int) {
		if r.OnColumn != nil {
			r.OnColumn(x)
		}
		n := done.Add(1)
		if progress != nil {
			progress(int(n), total)
		}
	})
	if err != nil {
		return nil, err
	}

	return Downsample(buf, job.Params.Supersample).RGBA(), nil
}
