package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"

	"github.com/zeromicro/go-zero/core/syncx"
	"golang.org/x/image/draw"
	"golang.org/x/sync/semaphore"

	fractal "github.com/marben/dist_fractal"
	"github.com/marben/dist_fractal/internal/output"
)

var ErrTooLarge = errors.New("job exceeds the pixel limit")

// result is shared by every request for the same job.
type result struct {
	img *image.RGBA
	png []byte
}

// progress of one job, shared by all its waiters.
type progress struct {
	refs  int
	done  atomic.Int64
	total atomic.Int64
}

func (p *progress) update(done, total int) {
	p.total.Store(int64(total))
	for {
		cur := p.done.Load()
		if int64(done) <= cur || p.done.CompareAndSwap(cur, int64(done)) {
			return
		}
	}
}

func (p *progress) load() (done, total int) {
	return int(p.done.Load()), int(p.total.Load())
}

// renderScheduler admits jobs, runs at most MaxRenders of them at once and
// lets identical concurrent jobs share a single render.
type renderScheduler struct {
	ctx       context.Context
	renderer  fractal.Renderer
	maxPixels int

	sem    *semaphore.Weighted
	flight syncx.SingleFlight

	m       sync.Mutex
	active  int
	pending map[string]*progress
}

// newRenderScheduler renders on ctx, cancelling it aborts running renders.
func newRenderScheduler(ctx context.Context, c Config, renderer fractal.Renderer) *renderScheduler {
	return &renderScheduler{
		ctx:       ctx,
		renderer:  renderer,
		maxPixels: c.MaxPixels,
		sem:       semaphore.NewWeighted(max(c.MaxRenders, 1)),
		flight:    syncx.NewSingleFlight(),
		pending:   make(map[string]*progress),
	}
}

// admit validates job and returns its key.
func (s *renderScheduler) admit(job fractal.Job) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}
	w, h := job.Params.GridSize()
	if s.maxPixels > 0 && w > s.maxPixels/h {
		return "", fmt.Errorf("%w: %dx%d oversampled grid, limit %d pixels", ErrTooLarge, w, h, s.maxPixels)
	}
	return job.Key()
}

// track registers interest in key's progress. The returned func releases it.
func (s *renderScheduler) track(key string) (*progress, func()) {
	s.m.Lock()
	defer s.m.Unlock()

	p, found := s.pending[key]
	if !found {
		p = &progress{}
		s.pending[key] = p
	}
	p.refs++

	return p, func() {
		s.m.Lock()
		defer s.m.Unlock()
		p.refs--
		if p.refs == 0 {
			delete(s.pending, key)
		}
	}
}

func (s *renderScheduler) waiters(key string) int {
	s.m.Lock()
	defer s.m.Unlock()
	if p, found := s.pending[key]; found {
		return p.refs
	}
	return 0
}

func (s *renderScheduler) incActive() {
	s.m.Lock()
	s.active++
	a := s.active
	s.m.Unlock()

	log.Printf("active renders: %d", a)
}

func (s *renderScheduler) decActive() {
	s.m.Lock()
	s.active--
	a := s.active
	s.m.Unlock()

	log.Printf("active renders: %d", a)
}

// render renders job, or joins an identical render already in flight.
func (s *renderScheduler) render(key string, job fractal.Job, p *progress) (result, error) {
	v, err := s.flight.Do(key, func() (any, error) {
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			return nil, err
		}
		defer s.sem.Release(1)

		s.incActive()
		defer s.decActive()

		img, err := s.renderer.Render(s.ctx, job, p.update)
		if err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		if err := output.EncodePNG(&buf, img, output.Metadata(job)); err != nil {
			return nil, err
		}
		return result{img: img, png: buf.Bytes()}, nil
	})
	if err != nil {
		return result{}, err
	}
	return v.(result), nil
}

// preview scales img so that its longer side is at most size pixels.
func preview(img *image.RGBA, size int) *image.RGBA {
	b := img.Bounds()
	longer := max(b.Dx(), b.Dy())
	if size >= longer {
		return img
	}
	w := max(b.Dx()*size/longer, 1)
	h := max(b.Dy()*size/longer, 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
