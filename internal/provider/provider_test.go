package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

type stubProvider struct {
	name models.ProviderType
}

func (s *stubProvider) Name() models.ProviderType { return s.name }
func (s *stubProvider) Generate(ctx context.Context, req *models.Request) (*models.GenerationResult, error) {
	return &models.GenerationResult{ImageURL: "https://x/img.png"}, nil
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	f.Register(&stubProvider{name: models.ProviderGemini})

	p, err := f.Get(models.ProviderGemini)
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	if p.Name() != models.ProviderGemini {
		t.Errorf("Name() = %q", p.Name())
	}

	if _, err := f.Get(models.ProviderReplicate); !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("Get() err = %v, want ErrProviderNotFound", err)
	}
}

func TestNewLogicalErrorDefaultsStatus(t *testing.T) {
	err := NewLogicalError(0, "prediction failed", []byte(`{}`))
	if err.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", err.StatusCode)
	}
	err = NewLogicalError(429, "rate limited", nil)
	if err.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", err.StatusCode)
	}
}

func TestDiagnostic(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "transport error pretty-prints the body",
			err:  &TransportError{StatusCode: 401, Body: `{"detail":"Invalid token"}`},
			want: []string{"HTTP 401", `"detail": "Invalid token"`},
		},
		{
			name: "logical error carries its payload",
			err:  NewLogicalError(0, "boom", []byte(`{"status":"failed"}`)),
			want: []string{"HTTP 500", `"status": "failed"`},
		},
		{
			name: "wrapped errors are still classified",
			err:  fmt.Errorf("generation failed: %w", &TransportError{StatusCode: 503, Body: "busy"}),
			want: []string{"HTTP 503", "busy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diagnostic(tt.err)
			for _, fragment := range tt.want {
				if !strings.Contains(got, fragment) {
					t.Errorf("Diagnostic() = %q, want it to contain %q", got, fragment)
				}
			}
		})
	}
}

func TestDiagnosticPlainError(t *testing.T) {
	if got := Diagnostic(errors.New("plain")); got != "" {
		t.Errorf("Diagnostic() = %q, want empty", got)
	}
}

func TestProxyTarget(t *testing.T) {
	tests := []struct {
		name   string
		proxy  string
		target string
		want   string
	}{
		{
			name:   "no proxy goes direct",
			proxy:  "",
			target: "https://api.replicate.com/v1/predictions",
			want:   "https://api.replicate.com/v1/predictions",
		},
		{
			name:   "proxy wraps and escapes the target",
			proxy:  "http://localhost:8787/proxy",
			target: "https://api.replicate.com/v1/predictions?t=1",
			want:   "http://localhost:8787/proxy?url=https%3A%2F%2Fapi.replicate.com%2Fv1%2Fpredictions%3Ft%3D1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProxyTarget(tt.proxy, tt.target); got != tt.want {
				t.Errorf("ProxyTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedactURL(t *testing.T) {
	got := RedactURL("https://generativelanguage.googleapis.com/v1beta/models/x:generateContent?key=secret123")
	if strings.Contains(got, "secret123") {
		t.Fatalf("RedactURL() leaked the key: %q", got)
	}
	if !strings.Contains(got, "key=%5BREDACTED%5D") && !strings.Contains(got, "key=[REDACTED]") {
		t.Errorf("RedactURL() = %q, want redaction marker", got)
	}
}

func TestTruncateImagePayloads(t *testing.T) {
	long := strings.Repeat("A", 2000)
	body := []byte(`{"output":"` + long + `","status":"succeeded"}`)

	got := string(truncateImagePayloads(body))
	if strings.Contains(got, long) {
		t.Error("long base64 payload should be truncated")
	}
	if !strings.Contains(got, "[truncated]") {
		t.Errorf("truncated payload should be marked: %s", got)
	}
	if !strings.Contains(got, `"status":"succeeded"`) {
		t.Errorf("short fields must survive: %s", got)
	}
}
