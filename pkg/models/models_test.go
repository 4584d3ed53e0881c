package models

import (
	"errors"
	"testing"
)

func TestRequestValidate(t *testing.T) {
	manyRefs := make([]string, MaxReferenceImages+1)
	for i := range manyRefs {
		manyRefs[i] = "data:image/png;base64,AAAA"
	}

	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr error
	}{
		{
			name:   "defaults are valid",
			mutate: func(r *Request) {},
		},
		{
			name:    "empty prompt",
			mutate:  func(r *Request) { r.Prompt = "" },
			wantErr: ErrEmptyPrompt,
		},
		{
			name:    "bad format",
			mutate:  func(r *Request) { r.Format = "bmp" },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "bad aspect ratio",
			mutate:  func(r *Request) { r.AspectRatio = "21:9" },
			wantErr: ErrInvalidAspectRatio,
		},
		{
			name:   "match_input_image is a valid ratio",
			mutate: func(r *Request) { r.AspectRatio = RatioMatchInput },
		},
		{
			name:    "too many references",
			mutate:  func(r *Request) { r.ReferenceImages = manyRefs },
			wantErr: ErrTooManyReferences,
		},
		{
			name:   "exactly the reference cap",
			mutate: func(r *Request) { r.ReferenceImages = manyRefs[:MaxReferenceImages] },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("a cat in space")
			tt.mutate(req)
			err := req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest("prompt")
	if req.AspectRatio != Ratio16x9 {
		t.Errorf("AspectRatio = %q, want %q", req.AspectRatio, Ratio16x9)
	}
	if req.Resolution != Resolution2K {
		t.Errorf("Resolution = %q, want %q", req.Resolution, Resolution2K)
	}
	if req.Format != FormatPNG {
		t.Errorf("Format = %q, want %q", req.Format, FormatPNG)
	}
	if req.Safety != SafetyBlockOnlyHigh {
		t.Errorf("Safety = %q, want %q", req.Safety, SafetyBlockOnlyHigh)
	}
}

func TestProviderTypeIsValid(t *testing.T) {
	for _, p := range ValidProviders() {
		if !p.IsValid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if ProviderType("dalle").IsValid() {
		t.Error("unknown provider should not be valid")
	}
}

func TestRequestParameters(t *testing.T) {
	req := NewRequest("prompt")
	req.AspectRatio = Ratio1x1
	req.Resolution = Resolution4K

	params := req.Parameters(ProviderGemini)
	if params.AspectRatio != Ratio1x1 {
		t.Errorf("AspectRatio = %q, want %q", params.AspectRatio, Ratio1x1)
	}
	if params.Resolution != Resolution4K {
		t.Errorf("Resolution = %q, want %q", params.Resolution, Resolution4K)
	}
	if params.Provider != ProviderGemini {
		t.Errorf("Provider = %q, want %q", params.Provider, ProviderGemini)
	}
}
