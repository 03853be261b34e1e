package fractal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/bytedance/sonic"
)

//go:generate mockgen -destination=internal/mocks/renderer.go -package=mocks . Renderer

// Renderer turns a job into a final image. progress is called with the number
// of finished oversampled columns and may be nil.
type Renderer interface {
	Render(ctx context.Context, job Job, progress func(done, total int)) (*image.RGBA, error)
}

// Job is a render request as it travels between client and server.
type Job struct {
	Params  Params  `json:"params"`
	Palette Palette `json:"palette"`
	// Zero values select the renderer defaults.
	Bailout     float64 `json:"bailout,omitempty"`
	ColourScale float64 `json:"colour_scale,omitempty"`
	NoSmooth    bool    `json:"no_smooth,omitempty"`
	// Preview asks the server for a thumbnail whose longer side is Preview pixels.
	Preview int `json:"preview,omitempty"`
}

var ErrBailout = errors.New("bailout radius must be between 2 and 1e150")

// MaxBailout keeps the squared bailout radius finite.
const MaxBailout = 1e150

// ValidBailout reports whether b can be used as a bailout radius.
func ValidBailout(b float64) bool {
	return b >= 2 && b <= MaxBailout
}

func (j Job) Validate() error {
	if err := j.Params.Validate(); err != nil {
		return err
	}
	if err := j.Palette.Validate(); err != nil {
		return err
	}
	if j.Bailout != 0 && !ValidBailout(j.Bailout) {
		return fmt.Errorf("%w: got %g", ErrBailout, j.Bailout)
	}
	if j.ColourScale < 0 || math.IsNaN(j.ColourScale) || math.IsInf(j.ColourScale, 0) {
		return fmt.Errorf("colour scale must be a non-negative finite number: got %g", j.ColourScale)
	}
	if j.Preview < 0 {
		return fmt.Errorf("preview size must not be negative: got %d", j.Preview)
	}
	return nil
}

// Key identifies jobs producing the same image.
func (j Job) Key() (string, error) {
	j.Preview = 0
	b, err := sonic.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("sonic.Marshal: %w", err)
	}
	return string(b), nil
}

func EncodeJob(j Job) ([]byte, error) {
	return sonic.Marshal(j)
}

func DecodeJob(b []byte) (Job, error) {
	var j Job
	if err := sonic.Unmarshal(b, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return j, nil
}

type MessageKind string

const (
	KindProgress MessageKind = "progress"
	KindImage    MessageKind = "image"
	KindError    MessageKind = "error"
)

// Image roles carried by KindImage messages.
const (
	RolePreview = "preview"
	RoleFinal   = "final"
)

// Message is a server to client status message. A KindImage message is
// followed by one binary message holding Size bytes of PNG.
type Message struct {
	Kind  MessageKind `json:"kind"`
	Done  int         `json:"done,omitempty"`
	Total int         `json:"total,omitempty"`
	Role  string      `json:"role,omitempty"`
	Size  int         `json:"size,omitempty"`
	Error string      `json:"error,omitempty"`
}

func EncodeMessage(m Message) ([]byte, error) {
	return sonic.Marshal(m)
}

func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := sonic.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}
