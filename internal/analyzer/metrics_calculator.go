package analyzer

import (
	"image"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Rec. 601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// metricsCalculator computes exposure and sharpness metrics for one frame.
type metricsCalculator struct {
	responses sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		responses: sync.Pool{
			New: func() interface{} {
				s := make([]float64, 0, 64*1024)
				return &s
			},
		},
	}
}

// channelSums accumulates normalized channel values over a region
type channelSums struct {
	luma, sat, r, g, b float64
	n                  int
}

func (c *channelSums) add(o channelSums) {
	c.luma += o.luma
	c.sat += o.sat
	c.r += o.r
	c.g += o.g
	c.b += o.b
	c.n += o.n
}

// CalculateBasicMetrics averages luma, saturation and the RGB channels.
// Rows are summed in parallel strips.
func (mc *metricsCalculator) CalculateBasicMetrics(img image.Image) metrics {
	bounds := img.Bounds()
	if bounds.Empty() {
		return metrics{}
	}

	strips := splitRows(bounds, runtime.NumCPU())
	sums := make([]channelSums, len(strips))

	var wg sync.WaitGroup
	for i, strip := range strips {
		wg.Add(1)
		go func(i int, strip image.Rectangle) {
			defer wg.Done()
			sums[i] = sumRegion(img, strip)
		}(i, strip)
	}
	wg.Wait()

	var total channelSums
	for _, s := range sums {
		total.add(s)
	}
	if total.n == 0 {
		return metrics{}
	}

	n := float64(total.n)
	return metrics{
		avgLuminance:  total.luma / n,
		avgSaturation: total.sat / n,
		avgR:          total.r / n,
		avgG:          total.g / n,
		avgB:          total.b / n,
	}
}

// splitRows cuts r into at most parts horizontal strips of similar height
func splitRows(r image.Rectangle, parts int) []image.Rectangle {
	h := r.Dy()
	if parts > h {
		parts = h
	}
	if parts < 1 {
		parts = 1
	}

	step := (h + parts - 1) / parts
	strips := make([]image.Rectangle, 0, parts)
	for y := r.Min.Y; y < r.Max.Y; y += step {
		end := y + step
		if end > r.Max.Y {
			end = r.Max.Y
		}
		strips = append(strips, image.Rect(r.Min.X, y, r.Max.X, end))
	}
	return strips
}

func sumRegion(img image.Image, region image.Rectangle) channelSums {
	var s channelSums
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r := float64(r16) / 0xffff
			g := float64(g16) / 0xffff
			b := float64(b16) / 0xffff

			s.luma += lumaR*r + lumaG*g + lumaB*b
			s.sat += saturation(r, g, b)
			s.r += r
			s.g += g
			s.b += b
			s.n++
		}
	}
	return s
}

// saturation is the HSV saturation of a normalized RGB triple
func saturation(r, g, b float64) float64 {
	hi := math.Max(r, math.Max(g, b))
	if hi == 0 {
		return 0
	}
	lo := math.Min(r, math.Min(g, b))
	return (hi - lo) / hi
}

// CalculateLaplacianVariance is the population variance of the
// 4-neighbour Laplacian over interior pixels. Blurry frames score low.
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	if bounds.Dx() < 3 || bounds.Dy() < 3 {
		return 0
	}

	buf := mc.responses.Get().(*[]float64)
	resp := (*buf)[:0]
	defer func() {
		*buf = resp[:0]
		mc.responses.Put(buf)
	}()

	pix, stride := gray.Pix, gray.Stride
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		start := gray.PixOffset(bounds.Min.X+1, y)
		end := start + bounds.Dx() - 2
		for i := start; i < end; i++ {
			v := int(pix[i-stride]) + int(pix[i+stride]) + int(pix[i-1]) + int(pix[i+1]) - 4*int(pix[i])
			resp = append(resp, float64(v))
		}
	}

	_, variance := stat.PopMeanVariance(resp, nil)
	return variance
}
