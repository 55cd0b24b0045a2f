package analyzer

import (
	"context"
	"image"
)

// Predictor turns one decoded upload into predictor text of the form
// "Result: <label>, Confidence: <n>".
type Predictor interface {
	Predict(ctx context.Context, img image.Image) (string, error)

	// Lifecycle management
	Close() error
}

// MetricsCalculator handles image metrics computation
type MetricsCalculator interface {
	CalculateBasicMetrics(img image.Image) metrics
	CalculateLaplacianVariance(gray *image.Gray) float64
}
