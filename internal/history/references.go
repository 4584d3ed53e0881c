package history

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

var ErrMaxReferenceImages = errors.New("maximum reference images reached")

// ReferenceSet is the ordered, in-session list of conditioning images.
// Order is preserved and sent to the provider verbatim. Not persisted
// across runs unless an image is explicitly saved to the library.
type ReferenceSet struct {
	mu     sync.Mutex
	images []string
}

func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{}
}

// Add appends a data URI to the set. The add that would exceed the cap is
// rejected and the set is left unchanged.
func (r *ReferenceSet) Add(dataURI string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.images) >= models.MaxReferenceImages {
		return fmt.Errorf("%w (%d)", ErrMaxReferenceImages, models.MaxReferenceImages)
	}
	r.images = append(r.images, dataURI)
	return nil
}

// AddFile reads an image file and appends it as a data URI.
func (r *ReferenceSet) AddFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read reference image: %w", err)
	}
	return r.Add(models.EncodeDataURI(data, models.MIMETypeFromPath(path)))
}

// Remove drops the image at index, preserving the order of the rest.
func (r *ReferenceSet) Remove(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.images) {
		return fmt.Errorf("no reference image at index %d", index)
	}
	r.images = append(r.images[:index], r.images[index+1:]...)
	return nil
}

func (r *ReferenceSet) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = nil
}

func (r *ReferenceSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

// Images returns the ordered snapshot sent to providers.
func (r *ReferenceSet) Images() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.images))
	copy(out, r.images)
	return out
}
