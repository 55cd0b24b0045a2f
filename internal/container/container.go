package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anime-shed/weld-inspector-go/internal/analyzer"
	"github.com/anime-shed/weld-inspector-go/internal/config"
	"github.com/anime-shed/weld-inspector-go/internal/factory"
	"github.com/anime-shed/weld-inspector-go/internal/repository"
	"github.com/anime-shed/weld-inspector-go/internal/service"
	"github.com/anime-shed/weld-inspector-go/internal/storage"
	"github.com/anime-shed/weld-inspector-go/internal/transport"
)

// Container holds the dependencies of the development classification service
type Container struct {
	config            *config.Config
	uploadStore       storage.UploadStore
	predictor         analyzer.Predictor
	uploadRepository  repository.UploadRepository
	predictionService service.PredictionService
	handler           http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory()

	// Build dependency graph
	uploadStore, err := components.StorageFactory.CreateStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	predictor, err := components.PredictorFactory.CreatePredictor(factory.HeuristicPredictor, analyzer.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create predictor: %w", err)
	}

	uploadRepository := repository.NewStoreUploadRepository(uploadStore)
	predictionService := service.NewPredictionService(uploadRepository, predictor)
	handler := transport.NewHandler(predictionService, cfg.Server)

	return &Container{
		config:            cfg,
		uploadStore:       uploadStore,
		predictor:         predictor,
		uploadRepository:  uploadRepository,
		predictionService: predictionService,
		handler:           handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases the predictor's workers
func (c *Container) Close() error {
	return c.predictor.Close()
}
