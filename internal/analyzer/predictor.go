package analyzer

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

// ResultFormat is the predictor text the service parses.
const ResultFormat = "Result: %s, Confidence: %.2f"

var resultPattern = regexp.MustCompile(`Result: (\w+), Confidence: ([\d.]+)`)

// ParseResult extracts label and confidence from predictor text. ok is
// false when the text does not match ResultFormat.
func ParseResult(text string) (label string, confidence float64, ok bool) {
	m := resultPattern.FindStringSubmatch(text)
	if m == nil {
		return "", 0, false
	}
	c, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return "", 0, false
	}
	return m[1], c, true
}

// HeuristicPredictor is a development stand-in for the weld model. It
// accepts images that are sharp and reasonably exposed.
type HeuristicPredictor struct {
	opts     Options
	calc     MetricsCalculator
	pool     *WorkerPool
	grayPool sync.Pool
}

// NewHeuristicPredictor creates a predictor and starts its worker pool.
func NewHeuristicPredictor(opts Options) (*HeuristicPredictor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	pool := NewWorkerPool(opts.MaxWorkers)
	pool.Start()

	return &HeuristicPredictor{
		opts: opts,
		calc: NewMetricsCalculator(),
		pool: pool,
		grayPool: sync.Pool{
			New: func() interface{} {
				return &image.Gray{}
			},
		},
	}, nil
}

// Predict runs Analyze on the worker pool and formats the verdict.
func (p *HeuristicPredictor) Predict(ctx context.Context, img image.Image) (string, error) {
	done := make(chan AnalysisResult, 1)
	if err := p.pool.Submit(ctx, func() { done <- p.Analyze(img) }); err != nil {
		return "", err
	}

	select {
	case result := <-done:
		label, confidence := Verdict(result, p.opts)
		return fmt.Sprintf(ResultFormat, label, confidence), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Analyze measures img synchronously.
func (p *HeuristicPredictor) Analyze(img image.Image) AnalysisResult {
	start := time.Now()
	bounds := img.Bounds()

	gray := p.grayPool.Get().(*image.Gray)
	defer p.grayPool.Put(gray)
	if cap(gray.Pix) < bounds.Dx()*bounds.Dy() {
		*gray = *image.NewGray(bounds)
	} else {
		gray.Pix = gray.Pix[:bounds.Dx()*bounds.Dy()]
		gray.Stride = bounds.Dx()
		gray.Rect = bounds
	}
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)

	m := p.calc.CalculateBasicMetrics(img)

	var result AnalysisResult
	result.Timestamp = start
	result.Metrics = models.ImageMetrics{
		LaplacianVar:   p.calc.CalculateLaplacianVariance(gray),
		AvgLuminance:   m.avgLuminance,
		AvgSaturation:  m.avgSaturation,
		ChannelBalance: [3]float64{m.avgR, m.avgG, m.avgB},
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
	}
	result.Quality.Blurry = result.Metrics.LaplacianVar <= p.opts.BlurThreshold
	result.Quality.IsTooDark = m.avgLuminance < p.opts.DarkThreshold
	result.Quality.Overexposed = m.avgLuminance > p.opts.OverexposureThreshold
	result.Quality.IsValid = !result.Quality.Blurry && !result.Quality.IsTooDark && !result.Quality.Overexposed
	result.ProcessingTimeSec = time.Since(start).Seconds()

	return result
}

// Verdict maps analysis to a label and a confidence in [0,1].
// Sharpness is lap/(lap+threshold), which is 0.5 exactly at the threshold.
func Verdict(result AnalysisResult, opts Options) (string, float64) {
	lap := math.Max(result.Metrics.LaplacianVar, 0)
	sharpness := lap / (lap + opts.BlurThreshold)

	if result.Quality.IsValid {
		return models.LabelAccepted, round2(sharpness)
	}
	if result.Quality.Blurry {
		return models.LabelRejected, round2(1 - sharpness)
	}
	// sharp but badly exposed
	return models.LabelRejected, round2(math.Max(1-sharpness, 0.6))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Close stops the worker pool
func (p *HeuristicPredictor) Close() error {
	p.pool.Close()
	return nil
}
