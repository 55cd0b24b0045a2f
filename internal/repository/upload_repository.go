package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/weld-inspector-go/internal/logger"
	"github.com/anime-shed/weld-inspector-go/internal/storage"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFileName reduces a client supplied name to a flat, ASCII-only file
// name. Path components are dropped and whitespace becomes "_".
func SecureFileName(name string) (string, error) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "", ErrInvalidFileName
	}
	return name, nil
}

// StoreUploadRepository implements UploadRepository over an UploadStore
type StoreUploadRepository struct {
	store storage.UploadStore
}

// NewStoreUploadRepository creates a repository backed by store
func NewStoreUploadRepository(store storage.UploadStore) *StoreUploadRepository {
	return &StoreUploadRepository{store: store}
}

func (r *StoreUploadRepository) ArchiveUpload(ctx context.Context, name string, data []byte, contentType string) (bool, error) {
	return r.putOnce(ctx, UploadsPrefix, name, data, contentType)
}

func (r *StoreUploadRepository) StoreTraining(ctx context.Context, name string, data []byte, contentType string) (bool, error) {
	return r.putOnce(ctx, TrainingPrefix, name, data, contentType)
}

func (r *StoreUploadRepository) putOnce(ctx context.Context, prefix, name string, data []byte, contentType string) (bool, error) {
	safe, err := SecureFileName(name)
	if err != nil {
		return false, err
	}
	key := prefix + safe

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	if exists {
		logger.WithField("key", key).Debug("Object already stored, skipping upload")
		return false, nil
	}

	if err := r.store.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return false, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	logger.WithFields(logrus.Fields{
		"key":  key,
		"size": len(data),
	}).Info("Stored upload")
	return true, nil
}

func (r *StoreUploadRepository) OpenProcessedFrame(ctx context.Context, name string) (io.ReadCloser, *storage.ObjectInfo, error) {
	safe, err := SecureFileName(name)
	if err != nil {
		return nil, nil, ErrFrameNotFound
	}

	body, info, err := r.store.Get(ctx, ProcessedFramesPrefix+safe)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrFrameNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	return body, info, nil
}
