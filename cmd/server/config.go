package main

import "time"

// Config is loaded from etc/server.yaml.
type Config struct {
	Addr string `json:",default=:8080"`
	// StaticDir, when set, is served at /.
	StaticDir      string   `json:",optional"`
	OriginPatterns []string `json:",optional"`

	// MaxRenders bounds the renders running at once.
	MaxRenders int64 `json:",default=2"`
	// MaxPixels bounds the oversampled grid of a single job.
	MaxPixels int `json:",default=67108864"`
	// Workers per render, 0 uses GOMAXPROCS.
	Workers          int           `json:",optional"`
	ProgressInterval time.Duration `json:",default=250ms"`

	// Gops starts the gops diagnostics agent.
	Gops bool `json:",optional"`
}
