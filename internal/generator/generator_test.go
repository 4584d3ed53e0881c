package generator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yoanbernabeu/nanothumbnail/internal/history"
	"github.com/yoanbernabeu/nanothumbnail/internal/provider"
	"github.com/yoanbernabeu/nanothumbnail/internal/store"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []*models.Request
	result   *models.GenerationResult
	err      error
	block    chan struct{}
}

func (f *fakeProvider) Name() models.ProviderType { return models.ProviderReplicate }

func (f *fakeProvider) Generate(ctx context.Context, req *models.Request) (*models.GenerationResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestGenerator(t *testing.T, fake *fakeProvider, saveLocally bool) (*Generator, *history.Manager, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	imageStore := store.New(filepath.Join(dir, "images.db"))
	t.Cleanup(func() { imageStore.Close() })

	hist, err := history.NewManager(filepath.Join(dir, "history.json"), imageStore)
	if err != nil {
		t.Fatal(err)
	}

	factory := provider.NewFactory()
	factory.Register(fake)

	gen := New(&Config{
		Factory:     factory,
		History:     hist,
		Store:       imageStore,
		SaveLocally: saveLocally,
	})
	return gen, hist, imageStore
}

func TestGenerateRecordsHistory(t *testing.T) {
	fake := &fakeProvider{result: &models.GenerationResult{ImageURL: "https://x/img.png"}}
	gen, hist, _ := newTestGenerator(t, fake, false)

	result, err := gen.Generate(context.Background(), models.ProviderReplicate, models.NewRequest("a red fox"))
	if err != nil {
		t.Fatalf("Generate() err = %v", err)
	}
	if result.ImageURL != "https://x/img.png" {
		t.Errorf("ImageURL = %q", result.ImageURL)
	}

	if hist.Len() != 1 {
		t.Fatalf("history Len() = %d, want 1", hist.Len())
	}
	entry, _ := hist.Get(0)
	// History keeps the prompt as typed, not the augmented one.
	if entry.Prompt != "a red fox" {
		t.Errorf("history prompt = %q", entry.Prompt)
	}
	if entry.Parameters == nil || entry.Parameters.Provider != models.ProviderReplicate {
		t.Errorf("history parameters = %+v", entry.Parameters)
	}
	if entry.LocalID != "" {
		t.Errorf("LocalID = %q, want empty without save-locally", entry.LocalID)
	}
}

func TestGenerateAugmentsWirePrompt(t *testing.T) {
	fake := &fakeProvider{result: &models.GenerationResult{ImageURL: "https://x/img.png"}}
	gen, _, _ := newTestGenerator(t, fake, false)

	if _, err := gen.Generate(context.Background(), models.ProviderReplicate, models.NewRequest("a red fox")); err != nil {
		t.Fatalf("Generate() err = %v", err)
	}

	sent := fake.requests[0].Prompt
	if !strings.HasPrefix(sent, promptPrefix) || !strings.HasSuffix(sent, promptSuffix) {
		t.Errorf("wire prompt = %q, want the style framing applied", sent)
	}
	if !strings.Contains(sent, "a red fox") {
		t.Errorf("wire prompt = %q, want the user prompt embedded", sent)
	}
}

func TestGenerateSavesLocally(t *testing.T) {
	fake := &fakeProvider{result: &models.GenerationResult{ImageURL: "data:image/png;base64,aW1n"}}
	gen, hist, imageStore := newTestGenerator(t, fake, true)

	result, err := gen.Generate(context.Background(), models.ProviderReplicate, models.NewRequest("a red fox"))
	if err != nil {
		t.Fatalf("Generate() err = %v", err)
	}
	if result.History.LocalID == "" {
		t.Fatal("LocalID should be set when saving locally")
	}

	stored, err := imageStore.Get(context.Background(), store.NamespaceHistory.Key(result.History.LocalID))
	if err != nil {
		t.Fatalf("stored image missing: %v", err)
	}
	if stored != "data:image/png;base64,aW1n" {
		t.Errorf("stored = %q", stored)
	}

	entry, _ := hist.Get(0)
	if entry.LocalID != result.History.LocalID {
		t.Errorf("history LocalID = %q, want %q", entry.LocalID, result.History.LocalID)
	}
}

func TestGenerateProviderFailureLeavesHistoryUntouched(t *testing.T) {
	fake := &fakeProvider{err: &provider.TransportError{StatusCode: 500, Body: "boom"}}
	gen, hist, _ := newTestGenerator(t, fake, false)

	_, err := gen.Generate(context.Background(), models.ProviderReplicate, models.NewRequest("a red fox"))
	var transport *provider.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("Generate() err = %v, want the provider error surfaced", err)
	}
	if hist.Len() != 0 {
		t.Errorf("history Len() = %d after failure, want 0", hist.Len())
	}
}

func TestGenerateValidatesBeforeSubmit(t *testing.T) {
	fake := &fakeProvider{result: &models.GenerationResult{ImageURL: "https://x/img.png"}}
	gen, _, _ := newTestGenerator(t, fake, false)

	_, err := gen.Generate(context.Background(), models.ProviderReplicate, models.NewRequest(""))
	if !errors.Is(err, models.ErrEmptyPrompt) {
		t.Fatalf("Generate() err = %v, want ErrEmptyPrompt", err)
	}
	if len(fake.requests) != 0 {
		t.Error("nothing should reach the provider on validation failure")
	}
}

func TestGenerateUnknownProvider(t *testing.T) {
	fake := &fakeProvider{result: &models.GenerationResult{ImageURL: "https://x/img.png"}}
	gen, _, _ := newTestGenerator(t, fake, false)

	_, err := gen.Generate(context.Background(), models.ProviderGemini, models.NewRequest("a red fox"))
	if !errors.Is(err, provider.ErrProviderNotFound) {
		t.Fatalf("Generate() err = %v, want ErrProviderNotFound", err)
	}
}

func TestGenerateRejectsConcurrentRun(t *testing.T) {
	fake := &fakeProvider{
		result: &models.GenerationResult{ImageURL: "https://x/img.png"},
		block:  make(chan struct{}),
	}
	gen, _, _ := newTestGenerator(t, fake, false)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := gen.Generate(context.Background(), models.ProviderReplicate, models.NewRequest("first"))
		done <- err
	}()

	<-started
	// Wait for the first call to reach the adapter, which means the busy
	// slot is claimed.
	for {
		fake.mu.Lock()
		reached := len(fake.requests) > 0
		fake.mu.Unlock()
		if reached {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err := gen.Generate(context.Background(), models.ProviderReplicate, models.NewRequest("second"))
	if !errors.Is(err, ErrGenerationInFlight) {
		t.Fatalf("Generate() err = %v, want ErrGenerationInFlight", err)
	}

	close(fake.block)
	if err := <-done; err != nil {
		t.Fatalf("first Generate() err = %v", err)
	}

	// The slot frees once the first run finishes.
	if _, err := gen.Generate(context.Background(), models.ProviderReplicate, models.NewRequest("third")); err != nil {
		t.Fatalf("Generate() after release err = %v", err)
	}
}

func TestAugmentPrompt(t *testing.T) {
	got := AugmentPrompt("a red fox")
	want := promptPrefix + "a red fox" + promptSuffix
	if got != want {
		t.Errorf("AugmentPrompt() = %q, want %q", got, want)
	}
}
