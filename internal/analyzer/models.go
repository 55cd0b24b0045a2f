package analyzer

import (
	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

// AnalysisResult is the shared models.AnalysisResult.
type AnalysisResult = models.AnalysisResult

// metrics holds internal calculation results, normalized to [0,1]
type metrics struct {
	avgLuminance, avgSaturation float64
	avgR, avgG, avgB            float64
}
