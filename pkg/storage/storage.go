package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const (
	FolderServices = "services"
	FolderReviews  = "reviews"
)

var ErrStorageDisabled = errors.New("image storage is not configured")

// Image is an uploaded asset.
type Image struct {
	URL      string
	PublicID string
}

type ImageStore interface {
	Upload(ctx context.Context, file io.Reader, folder string) (*Image, error)
	Delete(ctx context.Context, publicID string) error
}

type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

// NewImageStore falls back to a store that rejects uploads when cld is nil.
func NewImageStore(cld *cloudinary.Cloudinary) ImageStore {
	if cld == nil {
		return disabledStore{}
	}
	return &CloudinaryStore{cld: cld}
}

func (s *CloudinaryStore) Upload(ctx context.Context, file io.Reader, folder string) (*Image, error) {
	result, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "image",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}
	if result.PublicID == "" {
		return nil, fmt.Errorf("failed to upload image: %s", result.Error.Message)
	}
	return &Image{URL: result.SecureURL, PublicID: result.PublicID}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	if _, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("failed to delete image %s: %w", publicID, err)
	}
	return nil
}

type disabledStore struct{}

func (disabledStore) Upload(context.Context, io.Reader, string) (*Image, error) {
	return nil, ErrStorageDisabled
}

func (disabledStore) Delete(context.Context, string) error {
	return nil
}
