// Package generator drives one generation request end to end: validate,
// submit through the selected provider adapter, normalize, persist.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/yoanbernabeu/nanothumbnail/internal/history"
	"github.com/yoanbernabeu/nanothumbnail/internal/image"
	"github.com/yoanbernabeu/nanothumbnail/internal/provider"
	"github.com/yoanbernabeu/nanothumbnail/internal/store"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

var ErrGenerationInFlight = errors.New("a generation is already in flight")

// promptPrefix and promptSuffix wrap every user prompt to bias the
// providers toward thumbnail aesthetics.
const (
	promptPrefix = "YouTube thumbnail, catchy, high contrast, vibrant colors, 4k, highly detailed, "
	promptSuffix = ", cinematic lighting, expressive, viral style"
)

// AugmentPrompt applies the fixed thumbnail style framing to a user
// prompt.
func AugmentPrompt(prompt string) string {
	return promptPrefix + prompt + promptSuffix
}

// Result pairs the normalized artifact with the history entry recorded
// for it.
type Result struct {
	models.GenerationResult
	History models.HistoryItem
}

// Generator orchestrates generations. Only one may be in flight at a
// time; a second call while busy fails with ErrGenerationInFlight rather
// than queueing.
type Generator struct {
	factory     *provider.Factory
	history     *history.Manager
	store       *store.Store
	saver       *image.Saver
	saveLocally bool
	busy        atomic.Bool
}

type Config struct {
	Factory     *provider.Factory
	History     *history.Manager
	Store       *store.Store
	SaveLocally bool
}

func New(cfg *Config) *Generator {
	return &Generator{
		factory:     cfg.Factory,
		history:     cfg.History,
		store:       cfg.Store,
		saver:       image.NewSaver(),
		saveLocally: cfg.SaveLocally,
	}
}

// Generate runs the full workflow for one prompt. req.Prompt is the raw
// user prompt; the style augmentation is applied to the wire request only,
// history records the prompt as typed.
func (g *Generator) Generate(ctx context.Context, providerType models.ProviderType, req *models.Request) (*Result, error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrGenerationInFlight
	}
	defer g.busy.Store(false)

	// Validation failures surface before anything is submitted.
	if err := req.Validate(); err != nil {
		return nil, err
	}

	adapter, err := g.factory.Get(providerType)
	if err != nil {
		return nil, err
	}

	wireReq := *req
	wireReq.Prompt = AugmentPrompt(req.Prompt)

	generated, err := adapter.Generate(ctx, &wireReq)
	if err != nil {
		return nil, err
	}

	item := models.HistoryItem{
		Prompt:     req.Prompt,
		URL:        generated.ImageURL,
		Parameters: req.Parameters(providerType),
	}

	if g.saveLocally {
		// The store is a cache here: on failure we keep the remote URL
		// and move on.
		if localID, err := g.persist(ctx, generated.ImageURL); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save image locally: %v\n", err)
		} else {
			item.LocalID = localID
		}
	}

	if g.history != nil {
		if err := g.history.Add(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to record history: %w", err)
		}
	}

	return &Result{GenerationResult: *generated, History: item}, nil
}

func (g *Generator) persist(ctx context.Context, locator string) (string, error) {
	if g.store == nil {
		return "", fmt.Errorf("no object store configured")
	}
	dataURI, err := g.saver.ResolveDataURI(ctx, locator)
	if err != nil {
		return "", err
	}
	localID := uuid.New().String()
	if err := g.store.Put(ctx, store.NamespaceHistory.Key(localID), dataURI); err != nil {
		return "", err
	}
	return localID, nil
}
