package models

// ErrorResponse is the error body of the development classification service.
// Error carries a short fixed string such as "No file part".
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PredictionResponse is the body of a successful POST /upload/image.
type PredictionResponse struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// TrainResponse is the body of a successful POST /train.
type TrainResponse struct {
	Message string `json:"message"`
}
