package analyzer

import "fmt"

// Options configures the heuristic predictor
type Options struct {
	// Laplacian variance at or below this marks the image blurry
	BlurThreshold float64
	// Average luminance (0..1) below this marks the image too dark
	DarkThreshold float64
	// Average luminance (0..1) above this marks the image overexposed
	OverexposureThreshold float64

	// Concurrent analyses; 0 uses the CPU count
	MaxWorkers int
}

// DefaultOptions returns default predictor options
func DefaultOptions() Options {
	return Options{
		BlurThreshold:         100.0,
		DarkThreshold:         0.15,
		OverexposureThreshold: 0.95,
		MaxWorkers:            0,
	}
}

// WithCustomThresholds allows setting custom quality thresholds
func (opts Options) WithCustomThresholds(blur, dark, overexposure float64) Options {
	opts.BlurThreshold = blur
	opts.DarkThreshold = dark
	opts.OverexposureThreshold = overexposure
	return opts
}

// WithMaxWorkers bounds concurrent analyses
func (opts Options) WithMaxWorkers(n int) Options {
	opts.MaxWorkers = n
	return opts
}

// Validate checks threshold ranges
func (opts Options) Validate() error {
	if opts.BlurThreshold <= 0 {
		return fmt.Errorf("blur threshold must be > 0, got %f", opts.BlurThreshold)
	}
	if opts.DarkThreshold < 0 || opts.DarkThreshold >= 1 {
		return fmt.Errorf("dark threshold must be in [0,1), got %f", opts.DarkThreshold)
	}
	if opts.OverexposureThreshold <= opts.DarkThreshold || opts.OverexposureThreshold > 1 {
		return fmt.Errorf("overexposure threshold must be in (dark,1], got %f", opts.OverexposureThreshold)
	}
	if opts.MaxWorkers < 0 {
		return fmt.Errorf("max workers must be >= 0, got %d", opts.MaxWorkers)
	}
	return nil
}
