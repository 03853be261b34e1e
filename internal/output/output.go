// Package output writes rendered images: it picks free file names, encodes
// PNG and embeds the render description as PNG text metadata.
package output

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	fractal "github.com/marben/dist_fractal"
)

const Software = "dist_fractal"

// TextField is a PNG tEXt entry.
type TextField struct {
	Keyword string
	Text    string
}

// Description summarises the parameters of a render in one line.
func Description(j fractal.Job) string {
	p := j.Params
	seed := "n/a"
	if p.JuliaSeed != nil {
		seed = p.JuliaSeed.String()
	}
	palette := j.Palette
	if len(palette) == 0 {
		palette = fractal.DefaultPalette
	}
	return fmt.Sprintf("target: %s; zoom: %g; julia seed: %s; palette: %s; max iterations: %d; supersampling: %d",
		p.Target, p.Zoom, seed, palette, p.MaxIterations, p.Supersample)
}

// Metadata returns the text fields stored with a rendered job.
func Metadata(j fractal.Job) []TextField {
	return []TextField{
		{Keyword: "Description", Text: Description(j)},
		{Keyword: "Software", Text: Software},
	}
}

// EncodePNG writes img as PNG with text inserted right after the IHDR chunk.
func EncodePNG(w io.Writer, img image.Image, text []TextField) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("png.Encode: %w", err)
	}
	data := buf.Bytes()

	// 8 byte signature, then IHDR: length, type, 13 bytes of data, crc.
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if len(data) < ihdrEnd || string(data[12:16]) != "IHDR" {
		return errors.New("png.Encode produced no IHDR chunk")
	}

	if _, err := w.Write(data[:ihdrEnd]); err != nil {
		return err
	}
	for _, f := range text {
		if err := writeTextChunk(w, f); err != nil {
			return err
		}
	}
	_, err := w.Write(data[ihdrEnd:])
	return err
}

func writeTextChunk(w io.Writer, f TextField) error {
	if len(f.Keyword) == 0 || len(f.Keyword) > 79 || strings.ContainsRune(f.Keyword, 0) {
		return fmt.Errorf("invalid png text keyword %q", f.Keyword)
	}

	body := make([]byte, 0, 4+len(f.Keyword)+1+len(f.Text))
	body = append(body, "tEXt"...)
	body = append(body, f.Keyword...)
	body = append(body, 0)
	body = append(body, f.Text...)

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)-4))
	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(body))

	for _, b := range [][]byte{hdr[:], body, crc[:]} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// Create opens the first free "<n><suffix>.png" in dir, creating dir when
// needed.
func Create(dir, suffix string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	for n := 0; ; n++ {
		name := filepath.Join(dir, fmt.Sprintf("%d%s.png", n, suffix))
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create %q: %w", name, err)
		}
		return f, nil
	}
}

// WriteFile writes data to the first free file name in dir and returns its path.
func WriteFile(dir, suffix string, data []byte) (string, error) {
	f, err := Create(dir, suffix)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write %q: %w", f.Name(), err)
	}
	return f.Name(), f.Close()
}
