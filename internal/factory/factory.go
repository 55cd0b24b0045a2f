package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/anime-shed/weld-inspector-go/internal/analyzer"
	"github.com/anime-shed/weld-inspector-go/internal/config"
	"github.com/anime-shed/weld-inspector-go/internal/storage"
)

// PredictorType represents different predictor implementations
type PredictorType string

const (
	// HeuristicPredictor grades sharpness and exposure without a model
	HeuristicPredictor PredictorType = "heuristic"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// PredictorFactory creates predictors
type PredictorFactory interface {
	CreatePredictor(predictorType PredictorType, opts analyzer.Options) (analyzer.Predictor, error)
}

// StorageFactory creates upload stores
type StorageFactory interface {
	CreateStorage(ctx context.Context, cfg config.StorageConfig) (storage.UploadStore, error)
}

// predictorFactory implements PredictorFactory
type predictorFactory struct{}

// NewPredictorFactory creates a new predictor factory
func NewPredictorFactory() PredictorFactory {
	return &predictorFactory{}
}

// CreatePredictor creates a predictor based on the specified type
func (f *predictorFactory) CreatePredictor(predictorType PredictorType, opts analyzer.Options) (analyzer.Predictor, error) {
	switch predictorType {
	case HeuristicPredictor, "":
		return analyzer.NewHeuristicPredictor(opts)
	default:
		return nil, fmt.Errorf("unsupported predictor type: %s", predictorType)
	}
}

// containerEnsurer is implemented by stores that need their bucket created.
type containerEnsurer interface {
	EnsureContainer(ctx context.Context) error
}

// storageFactory implements StorageFactory
type storageFactory struct{}

// NewStorageFactory creates a new storage factory
func NewStorageFactory() StorageFactory {
	return &storageFactory{}
}

// CreateStorage creates a store based on cfg.Type
func (f *storageFactory) CreateStorage(ctx context.Context, cfg config.StorageConfig) (storage.UploadStore, error) {
	switch StorageType(strings.ToLower(cfg.Type)) {
	case LocalStorage:
		return storage.NewLocalStore(cfg.LocalDir)
	case AzureStorage:
		store, err := storage.NewAzureStore(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
		if err != nil {
			return nil, err
		}
		if e, ok := store.(containerEnsurer); ok {
			if err := e.EnsureContainer(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	PredictorFactory PredictorFactory
	StorageFactory   StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory() *ComponentFactory {
	return &ComponentFactory{
		PredictorFactory: NewPredictorFactory(),
		StorageFactory:   NewStorageFactory(),
	}
}
