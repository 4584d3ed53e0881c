package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrAPIKeyRequired   = errors.New("API key is required")
	ErrGenerationFailed = errors.New("image generation failed")
	ErrNoImage          = errors.New("no image in provider response")
)

// Provider turns one generation request into one normalized image artifact,
// or fails with a classified error (TransportError, LogicalError, or a
// wrapped ErrNoImage).
type Provider interface {
	Name() models.ProviderType
	Generate(ctx context.Context, req *models.Request) (*models.GenerationResult, error)
}

// Progress is called by adapters as a generation advances. For the
// job-based adapter it fires once per poll tick with the job status and
// the elapsed time since submission.
type Progress func(status string, elapsed time.Duration)

type Config struct {
	APIKey     string
	BaseURL    string
	ProxyURL   string
	TimeoutSec int
	Verbose    bool
	Progress   Progress
}

func (c *Config) Report(status string, elapsed time.Duration) {
	if c.Progress != nil {
		c.Progress(status, elapsed)
	}
}

type Factory struct {
	providers map[models.ProviderType]Provider
}

func NewFactory() *Factory {
	return &Factory{
		providers: make(map[models.ProviderType]Provider),
	}
}

func (f *Factory) Register(provider Provider) {
	f.providers[provider.Name()] = provider
}

func (f *Factory) Get(providerType models.ProviderType) (Provider, error) {
	provider, ok := f.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerType)
	}
	return provider, nil
}

func (f *Factory) List() []models.ProviderType {
	types := make([]models.ProviderType, 0, len(f.providers))
	for t := range f.providers {
		types = append(types, t)
	}
	return types
}
