package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/weld-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/weld-inspector-go/internal/errors"
	"github.com/anime-shed/weld-inspector-go/internal/logger"
	"github.com/anime-shed/weld-inspector-go/internal/repository"
	"github.com/anime-shed/weld-inspector-go/internal/storage"
	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

// TrainingStoredMessage is the body message of a successful training upload.
const TrainingStoredMessage = "Training data uploaded successfully"

// Upload is one multipart file as received by the development service.
type Upload struct {
	Name        string
	Data        []byte
	ContentType string
}

// PredictionService defines the operations behind the development endpoints
type PredictionService interface {
	// PredictUpload archives the upload and classifies it.
	PredictUpload(ctx context.Context, upload Upload) (*models.PredictionResponse, error)

	// StoreTrainingSample archives a labelled sample for later training.
	StoreTrainingSample(ctx context.Context, upload Upload) (*models.TrainResponse, error)

	// OpenProcessedFrame streams a processed frame by file name.
	OpenProcessedFrame(ctx context.Context, name string) (io.ReadCloser, *storage.ObjectInfo, error)
}

type predictionService struct {
	uploads   repository.UploadRepository
	predictor analyzer.Predictor
}

// NewPredictionService creates a new prediction service
func NewPredictionService(uploads repository.UploadRepository, predictor analyzer.Predictor) PredictionService {
	return &predictionService{
		uploads:   uploads,
		predictor: predictor,
	}
}

func (s *predictionService) PredictUpload(ctx context.Context, upload Upload) (*models.PredictionResponse, error) {
	if err := s.archive(ctx, upload, s.uploads.ArchiveUpload); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(upload.Data))
	if err != nil {
		return nil, apperrors.NewValidationError("uploaded file is not a supported image", err)
	}

	text, err := s.predictor.Predict(ctx, img)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, apperrors.NewTimeoutError("prediction did not finish", err)
		}
		return nil, apperrors.NewInternalError("prediction failed", err)
	}

	label, confidence, ok := analyzer.ParseResult(text)
	if !ok {
		return nil, apperrors.NewDecodeError("unexpected predictor output", fmt.Errorf("predictor returned %q", text))
	}

	logger.WithFields(logrus.Fields{
		"file":       upload.Name,
		"format":     format,
		"status":     label,
		"confidence": confidence,
	}).Info("Prediction completed")

	return &models.PredictionResponse{
		Status:  label,
		Details: fmt.Sprintf("%.2f", confidence),
	}, nil
}

func (s *predictionService) StoreTrainingSample(ctx context.Context, upload Upload) (*models.TrainResponse, error) {
	if err := s.archive(ctx, upload, s.uploads.StoreTraining); err != nil {
		return nil, err
	}
	return &models.TrainResponse{Message: TrainingStoredMessage}, nil
}

func (s *predictionService) OpenProcessedFrame(ctx context.Context, name string) (io.ReadCloser, *storage.ObjectInfo, error) {
	body, info, err := s.uploads.OpenProcessedFrame(ctx, name)
	if errors.Is(err, repository.ErrFrameNotFound) {
		return nil, nil, apperrors.NewNotFoundError("File not found", err)
	}
	if err != nil {
		return nil, nil, apperrors.NewInternalError("failed to read processed frame", err)
	}
	return body, info, nil
}

type archiveFunc func(ctx context.Context, name string, data []byte, contentType string) (bool, error)

func (s *predictionService) archive(ctx context.Context, upload Upload, put archiveFunc) error {
	contentType := upload.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(upload.Data).String()
	}

	_, err := put(ctx, upload.Name, upload.Data, contentType)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrInvalidFileName):
		return apperrors.NewValidationError("invalid file name", err)
	default:
		return apperrors.NewInternalError("failed to store upload", err)
	}
}
