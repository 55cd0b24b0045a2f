package models

import "time"

// AnalysisResult is what the development predictor measured on one upload.
type AnalysisResult struct {
	Timestamp         time.Time    `json:"timestamp"`
	ProcessingTimeSec float64      `json:"processing_time_sec"`
	Quality           Quality      `json:"quality"`
	Metrics           ImageMetrics `json:"metrics"`
}

// Quality represents image quality assessment
type Quality struct {
	Blurry      bool `json:"blurry"`
	IsTooDark   bool `json:"is_too_dark"`
	Overexposed bool `json:"overexposed"`
	IsValid     bool `json:"is_valid"`
}

// ImageMetrics contains detailed image metrics
type ImageMetrics struct {
	LaplacianVar   float64    `json:"laplacian_variance"`
	AvgLuminance   float64    `json:"average_luminance"`
	AvgSaturation  float64    `json:"average_saturation"`
	ChannelBalance [3]float64 `json:"channel_balance"`
	Width          int        `json:"width"`
	Height         int        `json:"height"`
}
