package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/mock/gomock"

	fractal "github.com/marben/dist_fractal"
	"github.com/marben/dist_fractal/internal/mocks"
	"github.com/marben/dist_fractal/render"
)

func testConfig() Config {
	return Config{
		MaxRenders:       2,
		MaxPixels:        1 << 20,
		ProgressInterval: 10 * time.Millisecond,
	}
}

func testJob() fractal.Job {
	return fractal.Job{
		Params: fractal.Params{
			Width:         16,
			Height:        8,
			Supersample:   2,
			MaxIterations: 50,
			Target:        fractal.Point{Re: -0.5},
			Zoom:          1,
		},
		Palette: fractal.DefaultPalette,
	}
}

func startServer(t *testing.T, c Config, r fractal.Renderer) (*httptest.Server, *renderScheduler) {
	t.Helper()
	s := newRenderScheduler(context.Background(), c, r)
	srv := httptest.NewServer(webServer(c, s).Handler)
	t.Cleanup(srv.Close)
	return srv, s
}

type reply struct {
	progress []fractal.Message
	images   map[string][]byte
	err      string
}

// submit sends job and reads every reply until the server closes the connection.
func submit(t *testing.T, srv *httptest.Server, job fractal.Job) reply {
	t.Helper()
	rep, err := exchange(srv, job)
	if err != nil {
		t.Fatal(err)
	}
	return rep
}

func exchange(srv *httptest.Server, job fractal.Job) (reply, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		return reply{}, fmt.Errorf("websocket.Dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 22)

	b, err := fractal.EncodeJob(job)
	if err != nil {
		return reply{}, err
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		return reply{}, fmt.Errorf("write job: %w", err)
	}

	rep := reply{images: make(map[string][]byte)}
	for {
		typ, data, err := conn.Read(ctx)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return rep, nil
		}
		if err != nil {
			return reply{}, fmt.Errorf("read: %w", err)
		}
		if typ != websocket.MessageText {
			return reply{}, fmt.Errorf("unexpected binary message of %d bytes", len(data))
		}
		m, err := fractal.DecodeMessage(data)
		if err != nil {
			return reply{}, err
		}
		switch m.Kind {
		case fractal.KindProgress:
			rep.progress = append(rep.progress, m)
		case fractal.KindError:
			rep.err = m.Error
		case fractal.KindImage:
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return reply{}, fmt.Errorf("read %s image: %w", m.Role, err)
			}
			if typ != websocket.MessageBinary || len(data) != m.Size {
				return reply{}, fmt.Errorf("%s image: type %v, %d bytes, want binary %d bytes", m.Role, typ, len(data), m.Size)
			}
			rep.images[m.Role] = data
		default:
			return reply{}, fmt.Errorf("unknown message kind %q", m.Kind)
		}
	}
}

func decodeSize(t *testing.T, data []byte) image.Point {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	return img.Bounds().Size()
}

func TestServeJobEndToEnd(t *testing.T) {
	srv, _ := startServer(t, testConfig(), render.RendererImpl{Workers: 2})

	job := testJob()
	job.Preview = 4
	rep := submit(t, srv, job)
	if rep.err != "" {
		t.Fatalf("server error: %s", rep.err)
	}
	if got := decodeSize(t, rep.images[fractal.RoleFinal]); got != image.Pt(16, 8) {
		t.Errorf("final size = %v, want 16x8", got)
	}
	if got := decodeSize(t, rep.images[fractal.RolePreview]); got != image.Pt(4, 2) {
		t.Errorf("preview size = %v, want 4x2", got)
	}
	last := rep.progress[len(rep.progress)-1]
	if last.Done != 32 || last.Total != 32 {
		t.Errorf("last progress = %d/%d, want 32/32", last.Done, last.Total)
	}
	if !bytes.Contains(rep.images[fractal.RoleFinal], []byte("tEXtDescription")) {
		t.Error("final image has no description metadata")
	}
}

func TestServeJobProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	renderer.EXPECT().
		Render(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, job fractal.Job, progress func(int, int)) (*image.RGBA, error) {
			progress(4, 8)
			time.Sleep(50 * time.Millisecond)
			progress(8, 8)
			return image.NewRGBA(image.Rect(0, 0, 16, 8)), nil
		})

	srv, _ := startServer(t, testConfig(), renderer)
	rep := submit(t, srv, testJob())
	if rep.err != "" {
		t.Fatalf("server error: %s", rep.err)
	}
	if len(rep.progress) < 2 {
		t.Fatalf("got %d progress messages, want at least 2", len(rep.progress))
	}
	for i := 1; i < len(rep.progress); i++ {
		if rep.progress[i].Done < rep.progress[i-1].Done {
			t.Errorf("progress went backwards: %+v", rep.progress)
		}
	}
	if last := rep.progress[len(rep.progress)-1]; last.Done != 8 || last.Total != 8 {
		t.Errorf("last progress = %+v, want 8/8", last)
	}
	if _, ok := rep.images[fractal.RolePreview]; ok {
		t.Error("preview sent without being requested")
	}
}

func TestServeJobRejected(t *testing.T) {
	// No expectations: any render fails the test.
	renderer := mocks.NewMockRenderer(gomock.NewController(t))
	c := testConfig()
	c.MaxPixels = 100
	srv, _ := startServer(t, c, renderer)

	bad := testJob()
	bad.Params.Zoom = 0
	if rep := submit(t, srv, bad); !strings.Contains(rep.err, "zoom") {
		t.Errorf("error = %q, want zoom error", rep.err)
	}

	if rep := submit(t, srv, testJob()); !strings.Contains(rep.err, ErrTooLarge.Error()) {
		t.Errorf("error = %q, want %q", rep.err, ErrTooLarge)
	}
}

func TestAdmitPixelLimit(t *testing.T) {
	c := testConfig()
	c.MaxPixels = 512 // exactly the 32x16 grid of testJob
	s := newRenderScheduler(context.Background(), c, render.RendererImpl{})

	if _, err := s.admit(testJob()); err != nil {
		t.Errorf("admit(grid at limit) = %v", err)
	}

	c.MaxPixels = 511
	s = newRenderScheduler(context.Background(), c, render.RendererImpl{})
	if _, err := s.admit(testJob()); !errors.Is(err, ErrTooLarge) {
		t.Errorf("admit(grid over limit) = %v, want %v", err, ErrTooLarge)
	}

	// 2^32 x 2^32 samples: w*h wraps to 0 in int.
	huge := testJob()
	huge.Params.Width, huge.Params.Height, huge.Params.Supersample = 65536, 65536, 65536
	if _, err := s.admit(huge); !errors.Is(err, fractal.ErrResolution) {
		t.Errorf("admit(overflowing grid) = %v, want %v", err, fractal.ErrResolution)
	}
}

func TestServeJobRenderError(t *testing.T) {
	renderer := mocks.NewMockRenderer(gomock.NewController(t))
	renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

	srv, _ := startServer(t, testConfig(), renderer)
	rep := submit(t, srv, testJob())
	if !strings.Contains(rep.err, "boom") {
		t.Errorf("error = %q, want boom", rep.err)
	}
	if len(rep.images) != 0 {
		t.Errorf("got %d images after a failed render", len(rep.images))
	}
}

func TestServeJobSharedRender(t *testing.T) {
	release := make(chan struct{})
	renderer := mocks.NewMockRenderer(gomock.NewController(t))
	renderer.EXPECT().
		Render(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, job fractal.Job, progress func(int, int)) (*image.RGBA, error) {
			<-release
			progress(32, 32)
			return image.NewRGBA(image.Rect(0, 0, 16, 8)), nil
		}).
		Times(1)

	srv, s := startServer(t, testConfig(), renderer)
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	job := testJob()
	key, err := job.Key()
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	replies := make([]reply, 2)
	errs := make([]error, 2)
	for i := range replies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replies[i], errs[i] = exchange(srv, job)
		}()
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.waiters(key) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("second job never joined")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// let the second handler reach the shared render
	time.Sleep(100 * time.Millisecond)
	unblock()
	wg.Wait()

	for i, rep := range replies {
		if errs[i] != nil {
			t.Fatalf("reply %d: %v", i, errs[i])
		}
		if rep.err != "" {
			t.Fatalf("reply %d: %s", i, rep.err)
		}
	}
	if !bytes.Equal(replies[0].images[fractal.RoleFinal], replies[1].images[fractal.RoleFinal]) {
		t.Error("shared render produced different images")
	}
	if s.waiters(key) != 0 {
		t.Errorf("waiters = %d after completion, want 0", s.waiters(key))
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := startServer(t, testConfig(), render.RendererImpl{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestPreview(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	if got := preview(img, 10).Bounds().Size(); got != image.Pt(10, 5) {
		t.Errorf("preview(10) = %v, want 10x5", got)
	}
	if got := preview(img, 100); got != img {
		t.Error("preview at full size should return the image itself")
	}
}

func TestProgressUpdateMonotonic(t *testing.T) {
	var p progress
	p.update(5, 10)
	p.update(3, 10)
	if done, total := p.load(); done != 5 || total != 10 {
		t.Errorf("load() = %d/%d, want 5/10", done, total)
	}
}
