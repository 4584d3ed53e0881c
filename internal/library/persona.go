package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yoanbernabeu/nanothumbnail/internal/store"
)

var (
	ErrPersonaNotFound   = errors.New("persona not found")
	ErrPersonaIncomplete = errors.New("persona is missing photos")
	ErrMissingPhoto      = errors.New("persona requires left, front and right photos")
)

// Persona is the metadata record of a three-photo reference bundle. The
// photos themselves live in the object store, one entry per position.
type Persona struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Personas manages the persona index and the associated photo entries.
type Personas struct {
	mu        sync.Mutex
	indexPath string
	store     *store.Store
}

func NewPersonas(configDir string, imageStore *store.Store) *Personas {
	return &Personas{
		indexPath: filepath.Join(configDir, "personas.json"),
		store:     imageStore,
	}
}

func (p *Personas) loadIndex() ([]Persona, error) {
	data, err := os.ReadFile(p.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read persona index: %w", err)
	}
	var personas []Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, fmt.Errorf("failed to parse persona index: %w", err)
	}
	return personas, nil
}

func (p *Personas) saveIndex(personas []Persona) error {
	if err := os.MkdirAll(filepath.Dir(p.indexPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if personas == nil {
		personas = []Persona{}
	}
	data, err := json.MarshalIndent(personas, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.indexPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write persona index: %w", err)
	}
	return nil
}

// Create stores a new persona. All three positions must be supplied as
// data URIs; the photos are written before the index record, so a crash
// mid-way never indexes a partial bundle.
func (p *Personas) Create(ctx context.Context, name string, photos map[store.PersonaPosition]string) (*Persona, error) {
	for _, pos := range store.PersonaPositions() {
		if photos[pos] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrMissingPhoto, pos)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	persona := &Persona{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
	}

	for _, pos := range store.PersonaPositions() {
		if err := p.store.Put(ctx, store.PersonaPhotoKey(persona.ID, pos), photos[pos]); err != nil {
			return nil, err
		}
	}

	personas, err := p.loadIndex()
	if err != nil {
		return nil, err
	}
	personas = append(personas, *persona)
	if err := p.saveIndex(personas); err != nil {
		return nil, err
	}
	return persona, nil
}

// List returns every indexed persona together with its completeness. Only
// complete personas may be offered for reuse.
type ListedPersona struct {
	Persona
	Complete bool
}

func (p *Personas) List(ctx context.Context) ([]ListedPersona, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	personas, err := p.loadIndex()
	if err != nil {
		return nil, err
	}

	listed := make([]ListedPersona, 0, len(personas))
	for _, persona := range personas {
		complete, err := p.complete(ctx, persona.ID)
		if err != nil {
			return nil, err
		}
		listed = append(listed, ListedPersona{Persona: persona, Complete: complete})
	}
	return listed, nil
}

func (p *Personas) complete(ctx context.Context, id string) (bool, error) {
	for _, pos := range store.PersonaPositions() {
		ok, err := p.store.Has(ctx, store.PersonaPhotoKey(id, pos))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Photos returns the three photos of a complete persona, ordered
// left, front, right. An incomplete persona is never offered.
func (p *Personas) Photos(ctx context.Context, id string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	personas, err := p.loadIndex()
	if err != nil {
		return nil, err
	}
	found := false
	for _, persona := range personas {
		if persona.ID == id {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrPersonaNotFound, id)
	}

	photos := make([]string, 0, 3)
	for _, pos := range store.PersonaPositions() {
		dataURI, err := p.store.Get(ctx, store.PersonaPhotoKey(id, pos))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s has no %s photo", ErrPersonaIncomplete, id, pos)
			}
			return nil, err
		}
		photos = append(photos, dataURI)
	}
	return photos, nil
}

// Delete removes the index record and all three photo entries as one
// logical, best-effort sequential operation.
func (p *Personas) Delete(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	personas, err := p.loadIndex()
	if err != nil {
		return err
	}

	kept := personas[:0]
	found := false
	for _, persona := range personas {
		if persona.ID == id {
			found = true
			continue
		}
		kept = append(kept, persona)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrPersonaNotFound, id)
	}

	if err := p.saveIndex(kept); err != nil {
		return err
	}

	var firstErr error
	for _, pos := range store.PersonaPositions() {
		if err := p.store.Delete(ctx, store.PersonaPhotoKey(id, pos)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
