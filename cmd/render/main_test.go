package main

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestRunWritesImage(t *testing.T) {
	dir := t.TempDir()
	for range 2 {
		if err := run([]string{"-out", dir, "-workers", "2", "12", "8", "50", "2"}); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	for _, name := range []string{"0.png", "1.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if got := img.Bounds().Size(); got != image.Pt(12, 8) {
			t.Errorf("%s size = %v, want 12x8", name, got)
		}
		if !bytes.Contains(data, []byte("supersampling: 2")) {
			t.Errorf("%s lacks the render description", name)
		}
	}
}

func TestSaveRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	_, err := save(dir, func(w io.Writer) error {
		w.Write(make([]byte, 10000))
		return errors.New("disk full")
	})
	if err == nil {
		t.Fatal("save succeeded, want error")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("left %d files behind, want none", len(entries))
	}

	name, err := save(dir, func(w io.Writer) error {
		_, err := w.Write([]byte("ok"))
		return err
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(name) != "0.png" {
		t.Errorf("name = %q, want 0.png", name)
	}
}

func TestRunRejectsConfig(t *testing.T) {
	if err := run([]string{"-out", t.TempDir(), "-zoom", "0", "12", "8"}); err == nil {
		t.Error("run with zoom 0 succeeded")
	}
}
