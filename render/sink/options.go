package sink

import "fmt"

// Option configures a renderer.
type Option func(*config) error

type config struct {
	quality   int
	draft     bool
	smoothing float64
}

func defaultConfig() config {
	return config{quality: 90}
}

func applyOptions(opts []Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}
	return cfg, nil
}

// WithQuality sets the JPEG quality (1-100) of MJPEG output. Default: 90.
func WithQuality(q int) Option {
	return func(cfg *config) error {
		if q < 1 || q > 100 {
			return fmt.Errorf("jpeg quality must be in 1..100, got %d", q)
		}
		cfg.quality = q
		return nil
	}
}

// WithDraft selects fast, lower quality scaling for previews.
func WithDraft(draft bool) Option {
	return func(cfg *config) error {
		cfg.draft = draft
		return nil
	}
}

// WithSmoothing mixes each frame with weight of its predecessor (see
// TemporalSmoother). Only image sequences support it.
func WithSmoothing(weight float64) Option {
	return func(cfg *config) error {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("smoothing weight must be in 0..1, got %v", weight)
		}
		cfg.smoothing = weight
		return nil
	}
}
