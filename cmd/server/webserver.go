package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	fractal "github.com/marben/dist_fractal"
	"github.com/marben/dist_fractal/internal/output"
)

// webServer serves the websocket render endpoint at /ws and, when configured,
// static files at /.
func webServer(c Config, s *renderScheduler) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", websocketHandler(c, s))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	if c.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(c.StaticDir)))
	}

	return &http.Server{
		Addr:              c.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// websocketHandler serves one job per connection: it reads the job, reports
// progress until the render is done and sends the images.
func websocketHandler(c Config, s *renderScheduler) http.HandlerFunc {
	interval := c.ProgressInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: c.OriginPatterns,
		})
		if err != nil {
			log.Println(err)
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		if err := serveJob(ctx, conn, s, interval); err != nil {
			log.Printf("job from %s: %v", r.RemoteAddr, err)
			if err := sendError(ctx, conn, err); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

func serveJob(ctx context.Context, conn *websocket.Conn, s *renderScheduler, interval time.Duration) error {
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("read job: %w", err)
	}
	if typ != websocket.MessageText {
		return errors.New("job must be sent as a text message")
	}
	job, err := fractal.DecodeJob(data)
	if err != nil {
		return err
	}
	key, err := s.admit(job)
	if err != nil {
		return err
	}
	log.Printf("job: %s", output.Description(job))

	p, release := s.track(key)
	defer release()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reportProgress(ctx, conn, p, interval, stop)
	}()

	res, err := s.render(key, job, p)
	close(stop)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	done, total := p.load()
	if err := send(ctx, conn, fractal.Message{Kind: fractal.KindProgress, Done: done, Total: total}); err != nil {
		return err
	}

	if job.Preview > 0 {
		var buf bytes.Buffer
		if err := output.EncodePNG(&buf, preview(res.img, job.Preview), output.Metadata(job)); err != nil {
			return err
		}
		if err := sendImage(ctx, conn, fractal.RolePreview, buf.Bytes()); err != nil {
			return err
		}
	}
	return sendImage(ctx, conn, fractal.RoleFinal, res.png)
}

// reportProgress sends p every interval until stop is closed.
func reportProgress(ctx context.Context, conn *websocket.Conn, p *progress, interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			done, total := p.load()
			if err := send(ctx, conn, fractal.Message{Kind: fractal.KindProgress, Done: done, Total: total}); err != nil {
				return
			}
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, m fractal.Message) error {
	b, err := fractal.EncodeMessage(m)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

func sendError(ctx context.Context, conn *websocket.Conn, err error) error {
	return send(ctx, conn, fractal.Message{Kind: fractal.KindError, Error: err.Error()})
}

func sendImage(ctx context.Context, conn *websocket.Conn, role string, png []byte) error {
	if err := send(ctx, conn, fractal.Message{Kind: fractal.KindImage, Role: role, Size: len(png)}); err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageBinary, png)
}
