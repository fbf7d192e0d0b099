package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Upload is a file received from the browser.
type Upload struct {
	Name string
	Body io.Reader
}

// Stager writes uploads to a temp file, hands the path to an Uploader and
// removes the file afterwards on every path.
type Stager struct {
	Dir      string
	Uploader Uploader
}

func NewStager(uploader Uploader) *Stager {
	return &Stager{Uploader: uploader}
}

// Stage returns the remote reference for the upload.
func (s *Stager) Stage(ctx context.Context, up Upload) (string, error) {
	ext := filepath.Ext(up.Name)
	if ext == "" {
		ext = ".bin"
	}

	tmp, err := os.CreateTemp(s.Dir, "ctscan-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := io.Copy(tmp, up.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to stage %s: %w", up.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", up.Name, err)
	}

	ref, err := s.Uploader.UploadFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", up.Name, err)
	}
	return ref, nil
}
