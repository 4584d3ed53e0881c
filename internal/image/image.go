// Package image resolves generation results to bytes and writes them to
// disk.
package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

type Saver struct {
	httpClient *http.Client
}

func NewSaver() *Saver {
	return &Saver{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Resolve turns an image locator (remote URL or data URI) into raw bytes
// and a MIME type.
func (s *Saver) Resolve(ctx context.Context, locator string) ([]byte, string, error) {
	if models.IsDataURI(locator) {
		return models.DecodeDataURI(locator)
	}
	return s.downloadFromURL(ctx, locator)
}

// ResolveDataURI returns the locator as a data URI, downloading it first
// when it is remote.
func (s *Saver) ResolveDataURI(ctx context.Context, locator string) (string, error) {
	if models.IsDataURI(locator) {
		return locator, nil
	}
	data, mimeType, err := s.downloadFromURL(ctx, locator)
	if err != nil {
		return "", err
	}
	return models.EncodeDataURI(data, mimeType), nil
}

// Save writes the image behind locator to path.
func (s *Saver) Save(ctx context.Context, locator, path string) error {
	data, _, err := s.Resolve(ctx, locator)
	if err != nil {
		return fmt.Errorf("failed to resolve image: %w", err)
	}

	if err := s.ensureDir(path); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *Saver) downloadFromURL(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/png"
	}
	return data, mimeType, nil
}

func (s *Saver) ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// GenerateFilename builds a timestamped default output filename.
func GenerateFilename(format models.OutputFormat, t time.Time) string {
	return fmt.Sprintf("nano-thumbnail-%s.%s", t.Format("20060102-150405"), format)
}
