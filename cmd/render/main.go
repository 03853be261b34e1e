// render is the local renderer: it computes an escape-time image on this
// machine's CPUs and saves it as the next free PNG in the output directory.
//
//	render [flags] width height [max_iterations] [supersample]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/marben/dist_fractal/internal/cli"
	"github.com/marben/dist_fractal/internal/output"
	"github.com/marben/dist_fractal/render"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("run: %+v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	outDir := fs.String("out", "images", "output directory")
	workers := fs.Int("workers", 0, "parallel column workers (0 = GOMAXPROCS)")
	jobFlags := cli.Register(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: render [flags] width height [max_iterations] [supersample]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	job, err := jobFlags.Job(fs.Args())
	if err != nil {
		return err
	}
	log.Printf("rendering %s %dx%d: %s", job.Params.Family(), job.Params.Width, job.Params.Height, output.Description(job))

	// log roughly every tenth of the columns
	total, _ := job.Params.GridSize()
	step := max(total/10, 1)
	var finished atomic.Int64
	renderer := render.RendererImpl{
		Workers: *workers,
		OnColumn: func(int) {
			if n := finished.Add(1); n%int64(step) == 0 {
				log.Printf("finished: %.0f%%", 100*float64(n)/float64(total))
			}
		},
	}

	start := time.Now()
	img, err := renderer.Render(context.Background(), job, nil)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	log.Printf("rendered in %s", time.Since(start))

	name, err := save(*outDir, func(w io.Writer) error {
		return output.EncodePNG(w, img, output.Metadata(job))
	})
	if err != nil {
		return err
	}

	log.Printf("image saved to %q", name)
	return nil
}

// save writes the output of encode to the next free file in dir. A file that
// could not be written completely is removed.
func save(dir string, encode func(w io.Writer) error) (name string, err error) {
	f, err := output.Create(dir, "")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	w := bufio.NewWriter(f)
	if err := encode(w); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("write %q: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %q: %w", f.Name(), err)
	}
	return f.Name(), nil
}
