package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yoanbernabeu/nanothumbnail/internal/image"
	"github.com/yoanbernabeu/nanothumbnail/internal/provider"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

type stubProvider struct {
	result  *models.GenerationResult
	lastReq *models.Request
}

func (s *stubProvider) Name() models.ProviderType { return models.ProviderReplicate }
func (s *stubProvider) Generate(ctx context.Context, req *models.Request) (*models.GenerationResult, error) {
	s.lastReq = req
	return s.result, nil
}

func testApp(t *testing.T, stub *stubProvider) (*App, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NANOTHUMB_CONFIG_DIR", t.TempDir())
	t.Setenv("NANOTHUMB_DATA_DIR", t.TempDir())

	out := &bytes.Buffer{}
	app := &App{
		Out:    out,
		Err:    &bytes.Buffer{},
		GetEnv: func(string) string { return "" },
		NewProvider: func(providerType models.ProviderType, cfg *provider.Config) (provider.Provider, error) {
			return stub, nil
		},
		NewSaver: image.NewSaver,
	}
	return app, out
}

func resetFlags() {
	flagProvider = ""
	flagAspectRatio = ""
	flagResolution = ""
	flagFormat = ""
	flagSafety = ""
	flagReferences = nil
	flagFromHistory = nil
	flagFromLibrary = nil
	flagPersona = ""
	flagAPIKey = ""
	flagOutput = ""
	flagSave = false
	flagProxy = ""
	flagVerbose = false
}

func TestRunGenerateWritesOutput(t *testing.T) {
	resetFlags()
	stub := &stubProvider{result: &models.GenerationResult{
		ImageURL: models.EncodeDataURI([]byte("thumb"), "image/png"),
	}}
	app, out := testApp(t, stub)

	output := filepath.Join(t.TempDir(), "thumb.png")
	cmd := newRootCmd(app)
	cmd.SetArgs([]string{
		"--api-key", "r8_test",
		"-a", "1:1",
		"-o", output,
		"a red fox",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() err = %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if string(data) != "thumb" {
		t.Errorf("output = %q", data)
	}
	if !strings.Contains(out.String(), "Saved: "+output) {
		t.Errorf("stdout = %q", out.String())
	}

	if stub.lastReq.AspectRatio != models.Ratio1x1 {
		t.Errorf("AspectRatio = %q, want the flag applied", stub.lastReq.AspectRatio)
	}
	// The wire prompt carries the style framing.
	if !strings.Contains(stub.lastReq.Prompt, "a red fox") || stub.lastReq.Prompt == "a red fox" {
		t.Errorf("wire prompt = %q, want it augmented", stub.lastReq.Prompt)
	}
}

func TestRunGenerateUnknownProviderFlag(t *testing.T) {
	resetFlags()
	stub := &stubProvider{result: &models.GenerationResult{ImageURL: "data:image/png;base64,QQ=="}}
	app, _ := testApp(t, stub)

	cmd := newRootCmd(app)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"-p", "dalle", "--api-key", "k", "a red fox"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("Execute() should fail on an unknown provider")
	}
}

func TestKeysCommandRoundTrip(t *testing.T) {
	resetFlags()
	app, out := testApp(t, &stubProvider{})

	cmd := newRootCmd(app)
	cmd.SetArgs([]string{"keys", "set", "gemini", "gm_0123456789"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("keys set err = %v", err)
	}
	if strings.Contains(out.String(), "gm_0123456789") {
		t.Error("the full key must never be echoed")
	}

	out.Reset()
	cmd = newRootCmd(app)
	cmd.SetArgs([]string{"keys", "get", "gemini"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("keys get err = %v", err)
	}
	if !strings.Contains(out.String(), "gm_0*****6789") {
		t.Errorf("keys get output = %q, want the masked key", out.String())
	}
}

func TestResolveKeyFallsBackToEnv(t *testing.T) {
	resetFlags()
	t.Setenv("NANOTHUMB_CONFIG_DIR", t.TempDir())
	t.Setenv("REPLICATE_API_TOKEN", "")

	app := &App{GetEnv: func(name string) string {
		if name == "REPLICATE_API_TOKEN" {
			return "r8_env"
		}
		return ""
	}}

	key, source, err := resolveKey(app, models.ProviderReplicate)
	if err != nil {
		t.Fatalf("resolveKey() err = %v", err)
	}
	if key != "r8_env" {
		t.Errorf("key = %q", key)
	}
	if !strings.Contains(source, "REPLICATE_API_TOKEN") {
		t.Errorf("source = %q", source)
	}
}

func TestNewProviderSwitch(t *testing.T) {
	cfg := &provider.Config{APIKey: "k"}
	for _, pt := range models.ValidProviders() {
		p, err := newProvider(pt, cfg)
		if err != nil {
			t.Fatalf("newProvider(%s) err = %v", pt, err)
		}
		if p.Name() != pt {
			t.Errorf("Name() = %q, want %q", p.Name(), pt)
		}
	}
	if _, err := newProvider("dalle", cfg); err == nil {
		t.Error("newProvider should reject unknown types")
	}
}
