package models

import "encoding/json"

// Labels the classification service is expected to return.
const (
	LabelAccepted = "Accepted"
	LabelRejected = "Rejected"
)

// Prediction is the success payload of POST /upload/image.
// Raw keeps the exact response body, extra fields included.
type Prediction struct {
	Status  string          `json:"status"`
	Details string          `json:"details"`
	Raw     json.RawMessage `json:"-"`
}

// IsAccepted reports whether the label is exactly "Accepted".
// Any other label renders as a rejection.
func (p Prediction) IsAccepted() bool {
	return p.Status == LabelAccepted
}
