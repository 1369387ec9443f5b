package render

import (
	"fmt"
	"runtime"
	"time"

	"github.com/dshills/filmstrip-go/render/emit"
	"github.com/dshills/filmstrip-go/render/store"
)

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine, err := render.NewEngine(renderer, profile, progress,
//	    render.WithWorkers(8),
//	    render.WithTransitionDuration(1.5),
//	    render.WithTargetLength(180),
//	)
type Option func(*engineConfig) error

// engineConfig collects options before they are applied to an Engine.
type engineConfig struct {
	workers        int
	queueDepth     int
	transitionSecs float64
	transitionKind TransitionKind
	targetSecs     float64
	audioFiles     []string
	taskTimeout    time.Duration
	emitter        emit.Emitter
	metrics        *PrometheusMetrics
	store          store.Store
	subtitler      Subtitler
}

func defaultConfig() engineConfig {
	return engineConfig{
		workers:        runtime.NumCPU(),
		queueDepth:     256,
		transitionSecs: 1.0,
		transitionKind: TransitionFade,
		emitter:        emit.NewNullEmitter(),
	}
}

func invalidOption(format string, args ...any) error {
	return &RenderError{Message: fmt.Sprintf(format, args...), Code: "INVALID_OPTION"}
}

// WithWorkers sets the number of worker goroutines.
//
// Default: runtime.NumCPU(). Crop and resize dominate the cost of a frame
// and are CPU bound, so more workers than cores rarely helps.
func WithWorkers(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 1 {
			return invalidOption("workers must be at least 1, got %d", n)
		}
		cfg.workers = n
		return nil
	}
}

// WithQueueDepth sets the capacity of the work frontier. The producer blocks
// while the frontier is full.
//
// Default: 256.
func WithQueueDepth(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 1 {
			return invalidOption("queue depth must be at least 1, got %d", n)
		}
		cfg.queueDepth = n
		return nil
	}
}

// WithTransitionDuration sets the length of each transition window in
// seconds. Zero disables transitions: pictures cut hard.
//
// Default: 1.0.
func WithTransitionDuration(secs float64) Option {
	return func(cfg *engineConfig) error {
		if secs < 0 {
			return invalidOption("transition duration must not be negative, got %v", secs)
		}
		cfg.transitionSecs = secs
		return nil
	}
}

// WithTransitionKind selects the blend used inside transition windows.
//
// Default: TransitionFade.
func WithTransitionKind(kind TransitionKind) Option {
	return func(cfg *engineConfig) error {
		switch kind {
		case TransitionFade, TransitionRoll:
			cfg.transitionKind = kind
			return nil
		}
		return invalidOption("unknown transition kind %d", int(kind))
	}
}

// WithTargetLength stretches or shrinks every picture so the whole slideshow
// lasts about secs seconds. Applies to Engine.Start only.
//
// Default: 0 (use the pictures' own durations).
func WithTargetLength(secs float64) Option {
	return func(cfg *engineConfig) error {
		if secs < 0 {
			return invalidOption("target length must not be negative, got %v", secs)
		}
		cfg.targetSecs = secs
		return nil
	}
}

// WithAudioFiles attaches audio files, processed after the last frame of a
// job that completed normally.
func WithAudioFiles(paths ...string) Option {
	return func(cfg *engineConfig) error {
		for _, p := range paths {
			if p == "" {
				return invalidOption("audio file path must not be empty")
			}
		}
		cfg.audioFiles = append(cfg.audioFiles, paths...)
		return nil
	}
}

// WithTaskTimeout bounds the run time of a single task. A task that fails
// after its deadline yields an empty frame instead of stopping the job.
//
// Default: 0 (no timeout).
func WithTaskTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return invalidOption("task timeout must not be negative, got %v", d)
		}
		cfg.taskTimeout = d
		return nil
	}
}

// WithEmitter sets the observability event sink.
//
// Default: emit.NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		if e == nil {
			return invalidOption("emitter must not be nil")
		}
		cfg.emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus metrics.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	engine, _ := render.NewEngine(r, p, pr, render.WithMetrics(render.NewPrometheusMetrics(registry)))
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithStore records every job's lifecycle in st.
func WithStore(st store.Store) Option {
	return func(cfg *engineConfig) error {
		cfg.store = st
		return nil
	}
}

// WithSubtitler enables the subtitle step of Engine.Start for pictures that
// carry a comment.
func WithSubtitler(s Subtitler) Option {
	return func(cfg *engineConfig) error {
		cfg.subtitler = s
		return nil
	}
}
