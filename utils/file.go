package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxScreenshotBytes bounds a single upload.
const MaxScreenshotBytes = 10 << 20

var ErrInvalidScreenshot = errors.New("invalid screenshot")

// LocalStore writes screenshots under a directory served at /uploads.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStore{Dir: dir, BaseURL: "/uploads"}, nil
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	destPath := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", err
	}
	return s.BaseURL + "/" + key, nil
}

// ScreenshotKey builds the object key for a spotter's upload.
func ScreenshotKey(userID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("screenshots/%s/%s%s", userID, uuid.NewString(), ext)
}

// SaveScreenshot reads an uploaded file and hands it to the store.
func SaveScreenshot(ctx context.Context, store ScreenshotStore, userID string, fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader.Size > MaxScreenshotBytes {
		return "", fmt.Errorf("%w: too large (%d bytes)", ErrInvalidScreenshot, fileHeader.Size)
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: must be an image, got %q", ErrInvalidScreenshot, contentType)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxScreenshotBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return store.Put(ctx, ScreenshotKey(userID, fileHeader.Filename), contentType, data)
}
