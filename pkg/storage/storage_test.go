package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewImageStoreWithoutClient(t *testing.T) {
	store := NewImageStore(nil)

	if _, err := store.Upload(context.Background(), strings.NewReader("img"), FolderServices); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("Upload() error = %v, want ErrStorageDisabled", err)
	}
	if err := store.Delete(context.Background(), "services/abc"); err != nil {
		t.Errorf("Delete() error = %v, want nil", err)
	}
}
