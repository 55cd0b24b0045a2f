package repository

import (
	"context"
	"io"

	"github.com/anime-shed/weld-inspector-go/internal/storage"
)

// Key prefixes inside the upload store.
const (
	UploadsPrefix         = "uploads/"
	TrainingPrefix        = "training/"
	ProcessedFramesPrefix = "processed_frames/"
)

// UploadRepository defines the data access operations of the development service
type UploadRepository interface {
	// ArchiveUpload keeps an inspected upload. An existing object with the
	// same name is left untouched and stored is false.
	ArchiveUpload(ctx context.Context, name string, data []byte, contentType string) (stored bool, err error)

	// StoreTraining keeps a training sample, with the same skip rule.
	StoreTraining(ctx context.Context, name string, data []byte, contentType string) (stored bool, err error)

	// OpenProcessedFrame streams a previously processed frame.
	OpenProcessedFrame(ctx context.Context, name string) (io.ReadCloser, *storage.ObjectInfo, error)
}
