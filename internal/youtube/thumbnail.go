// Package youtube fetches video still images from the public thumbnail
// host, trying progressively lower qualities until one exists.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

const defaultBaseURL = "https://img.youtube.com"

var (
	ErrInvalidVideoID    = errors.New("missing or invalid videoId")
	ErrThumbnailNotFound = errors.New("thumbnail not found")
)

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// qualities is the ladder tried in order, highest first.
var qualities = []string{"maxresdefault", "hqdefault"}

// ValidVideoID reports whether id is a well-formed 11-character video id.
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

type Fetcher struct {
	baseURL    string
	httpClient *http.Client
}

func NewFetcher() *Fetcher {
	return NewFetcherWithBaseURL(defaultBaseURL)
}

func NewFetcherWithBaseURL(baseURL string) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch returns a video's thumbnail as a base64 jpeg data URI.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	if !ValidVideoID(videoID) {
		return "", ErrInvalidVideoID
	}

	for _, quality := range qualities {
		url := fmt.Sprintf("%s/vi/%s/%s.jpg", f.baseURL, videoID, quality)
		data, err := f.fetchOne(ctx, url)
		if err != nil {
			continue
		}
		return models.EncodeDataURI(data, "image/jpeg"), nil
	}
	return "", ErrThumbnailNotFound
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thumbnail fetch returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
