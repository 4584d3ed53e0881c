// Package library manages the user-curated reference image library and
// the multi-angle persona bundles. Both live in the object store under
// their own namespaces, independent of history.
package library

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yoanbernabeu/nanothumbnail/internal/store"
)

// Library is the persistent, user-curated image collection. Entries are
// created and deleted explicitly; history eviction never touches them.
type Library struct {
	store *store.Store
}

func New(imageStore *store.Store) *Library {
	return &Library{store: imageStore}
}

// Add saves a data URI to the library and returns its id.
func (l *Library) Add(ctx context.Context, dataURI string) (string, error) {
	id := uuid.New().String()
	if err := l.store.Put(ctx, store.NamespaceLibrary.Key(id), dataURI); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the library image with the given id.
func (l *Library) Get(ctx context.Context, id string) (string, error) {
	return l.store.Get(ctx, store.NamespaceLibrary.Key(id))
}

// Entry is one library image.
type Entry struct {
	ID      string
	DataURI string
	Saved   store.Entry
}

// List returns library entries newest first.
func (l *Library) List(ctx context.Context) ([]Entry, error) {
	stored, err := l.store.ListAll(ctx, string(store.NamespaceLibrary))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(stored))
	for _, e := range stored {
		entries = append(entries, Entry{
			ID:      store.NamespaceLibrary.ID(e.ID),
			DataURI: e.Base64,
			Saved:   e,
		})
	}
	return entries, nil
}

// Remove deletes a library entry.
func (l *Library) Remove(ctx context.Context, id string) error {
	key := store.NamespaceLibrary.Key(id)
	ok, err := l.store.Has(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no library entry %s", id)
	}
	return l.store.Delete(ctx, key)
}
