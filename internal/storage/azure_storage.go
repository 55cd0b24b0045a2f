package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type azureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore keeps objects as block blobs in one container of the
// given storage account.
func NewAzureStore(accountName, accountKey, container string) (UploadStore, error) {
	if accountName == "" || container == "" {
		return nil, errors.New("azure store: account and container are required")
	}
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure store: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure store: %w", err)
	}

	return &azureStore{client: client, container: container}, nil
}

// EnsureContainer creates the container if it does not exist yet.
func (s *azureStore) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", s.container, err)
	}
	return nil
}

func (s *azureStore) blobClient(key string) (*blob.Client, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	return s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(cleaned), nil
}

func (s *azureStore) Exists(ctx context.Context, key string) (bool, error) {
	bc, err := s.blobClient(key)
	if err != nil {
		return false, err
	}
	_, err = bc.GetProperties(ctx, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get properties %s: %w", key, err)
	}
	return true, nil
}

func (s *azureStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	opts := &azblob.UploadStreamOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := s.client.UploadStream(ctx, s.container, cleaned, r, opts); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *azureStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return nil, nil, err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, cleaned, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("download %s: %w", key, err)
	}

	info := &ObjectInfo{ContentType: "application/octet-stream"}
	if resp.ContentType != nil && *resp.ContentType != "" {
		info.ContentType = *resp.ContentType
	}
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	return resp.Body, info, nil
}
