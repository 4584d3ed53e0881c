// Package history keeps the capacity-bounded generation history and the
// in-session reference image set.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yoanbernabeu/nanothumbnail/internal/store"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

// MaxItems is the history cap: the list is truncated to this size on
// every insertion.
const MaxItems = 10

var ErrNoSuchItem = errors.New("no such history item")

// Evict returns the list truncated to MaxItems and the evicted item, if
// any. Among entries without a locally-stored copy the oldest goes first;
// only when every entry is local does the chronological tail go. Pure:
// the input slice is not mutated.
func Evict(items []models.HistoryItem) ([]models.HistoryItem, *models.HistoryItem) {
	if len(items) <= MaxItems {
		return items, nil
	}

	// Entries are ordered newest first, so scan from the tail for the
	// oldest entry that only references a (possibly expiring) remote URL.
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].LocalID == "" {
			evicted := items[i]
			kept := make([]models.HistoryItem, 0, len(items)-1)
			kept = append(kept, items[:i]...)
			kept = append(kept, items[i+1:]...)
			return kept, &evicted
		}
	}

	evicted := items[len(items)-1]
	kept := make([]models.HistoryItem, len(items)-1)
	copy(kept, items[:len(items)-1])
	return kept, &evicted
}

// Manager owns the ordered history list and its JSON persistence.
type Manager struct {
	mu         sync.Mutex
	path       string
	store      *store.Store
	items      []models.HistoryItem
	httpClient *http.Client
}

// NewManager loads the history file. Entries whose image was never
// persisted locally are dropped at load: their remote URLs have likely
// expired between runs.
func NewManager(path string, imageStore *store.Store) (*Manager, error) {
	m := &Manager{
		path:       path,
		store:      imageStore,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var stored []models.HistoryItem
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	for _, item := range stored {
		if item.LocalID != "" {
			m.items = append(m.items, item)
		}
	}
	return m, nil
}

// Items returns a snapshot of the history, newest first.
func (m *Manager) Items() []models.HistoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.HistoryItem, len(m.items))
	copy(out, m.items)
	return out
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Add inserts an item at the head and applies the eviction policy. The
// evicted entry's cached image, if any, is deleted best-effort.
func (m *Manager) Add(ctx context.Context, item models.HistoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.Date.IsZero() {
		item.Date = time.Now()
	}

	items := append([]models.HistoryItem{item}, m.items...)
	items, evicted := Evict(items)
	m.items = items

	if err := m.save(); err != nil {
		return err
	}

	if evicted != nil && evicted.LocalID != "" && m.store != nil {
		if err := m.store.Delete(ctx, store.NamespaceHistory.Key(evicted.LocalID)); err != nil {
			// Cache cleanup only; the history list is already consistent.
			fmt.Fprintf(os.Stderr, "Warning: failed to delete evicted image: %v\n", err)
		}
	}
	return nil
}

// Get returns the history item at index (0 = most recent).
func (m *Manager) Get(index int) (models.HistoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.items) {
		return models.HistoryItem{}, fmt.Errorf("%w: %d", ErrNoSuchItem, index)
	}
	return m.items[index], nil
}

// Reuse copies a past entry's prompt and parameters into a fresh request.
// History and the reference set are left untouched.
func (m *Manager) Reuse(index int) (*models.Request, error) {
	item, err := m.Get(index)
	if err != nil {
		return nil, err
	}

	req := models.NewRequest(item.Prompt)
	if p := item.Parameters; p != nil {
		if p.AspectRatio != "" {
			req.AspectRatio = p.AspectRatio
		}
		if p.Resolution != "" {
			req.Resolution = p.Resolution
		}
		if p.Format != "" {
			req.Format = p.Format
		}
		if p.Safety != "" {
			req.Safety = p.Safety
		}
	}
	return req, nil
}

// Clear drops the whole history and its cached images.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range m.items {
		if item.LocalID != "" && m.store != nil {
			if err := m.store.Delete(ctx, store.NamespaceHistory.Key(item.LocalID)); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to delete cached image: %v\n", err)
			}
		}
	}
	m.items = nil
	return m.save()
}

// ResolveImage returns an item's image as a data URI: the local store is
// tried first, then the remote URL.
func (m *Manager) ResolveImage(ctx context.Context, item models.HistoryItem) (string, error) {
	if item.LocalID != "" && m.store != nil {
		base64, err := m.store.Get(ctx, store.NamespaceHistory.Key(item.LocalID))
		if err == nil {
			return base64, nil
		}
		var storageErr *store.StorageError
		if !errors.As(err, &storageErr) {
			return "", err
		}
		// Cache miss or engine failure: fall through to the remote URL.
	}

	if models.IsDataURI(item.URL) {
		return item.URL, nil
	}
	return m.fetchRemote(ctx, item.URL)
}

func (m *Manager) fetchRemote(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/png"
	}
	return models.EncodeDataURI(data, mimeType), nil
}

func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	items := m.items
	if items == nil {
		items = []models.HistoryItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// DefaultPath returns the history file location next to the settings.
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, "history.json")
}
