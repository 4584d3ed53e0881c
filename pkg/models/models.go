package models

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrEmptyPrompt        = errors.New("prompt cannot be empty")
	ErrInvalidFormat      = errors.New("invalid output format")
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
	ErrTooManyReferences  = errors.New("too many reference images")
)

// MaxReferenceImages caps the number of conditioning images sent with a
// single generation request.
const MaxReferenceImages = 14

type ProviderType string

const (
	ProviderReplicate  ProviderType = "replicate"
	ProviderGemini     ProviderType = "gemini"
	ProviderOpenRouter ProviderType = "openrouter"
)

func ValidProviders() []ProviderType {
	return []ProviderType{ProviderReplicate, ProviderGemini, ProviderOpenRouter}
}

func (p ProviderType) IsValid() bool {
	return slices.Contains(ValidProviders(), p)
}

func (p ProviderType) String() string {
	return string(p)
}

type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatWebP OutputFormat = "webp"
)

func ValidFormats() []OutputFormat {
	return []OutputFormat{FormatPNG, FormatJPEG, FormatWebP}
}

func (f OutputFormat) IsValid() bool {
	return slices.Contains(ValidFormats(), f)
}

func (f OutputFormat) String() string {
	return string(f)
}

// AspectRatio is the UI-level ratio. Providers that do not support a value
// map it through their own lookup table with a 16:9 fallback.
type AspectRatio string

const (
	Ratio16x9 AspectRatio = "16:9"
	Ratio9x16 AspectRatio = "9:16"
	Ratio1x1  AspectRatio = "1:1"
	Ratio4x3  AspectRatio = "4:3"

	// RatioMatchInput asks the provider to match the first reference image.
	// Only the job-based provider understands it.
	RatioMatchInput AspectRatio = "match_input_image"
)

func ValidAspectRatios() []AspectRatio {
	return []AspectRatio{Ratio16x9, Ratio9x16, Ratio1x1, Ratio4x3, RatioMatchInput}
}

func (a AspectRatio) IsValid() bool {
	return slices.Contains(ValidAspectRatios(), a)
}

func (a AspectRatio) String() string {
	return string(a)
}

// Resolution accepts both the size buckets used on the wire (1K/2K/4K) and
// the video-quality ladder the UI exposes (144p..2160p).
type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"
)

func (r Resolution) String() string {
	return string(r)
}

type SafetyLevel string

const (
	SafetyBlockOnlyHigh    SafetyLevel = "block_only_high"
	SafetyBlockMediumAbove SafetyLevel = "block_medium_and_above"
	SafetyBlockLowAbove    SafetyLevel = "block_low_and_above"
)

func (s SafetyLevel) String() string {
	return string(s)
}

// Request carries one generation request to a provider adapter. The prompt
// is the already-augmented prompt; reference images are data URIs sent to
// the provider in order.
type Request struct {
	Prompt          string
	AspectRatio     AspectRatio
	Resolution      Resolution
	Format          OutputFormat
	Safety          SafetyLevel
	ReferenceImages []string
}

func NewRequest(prompt string) *Request {
	return &Request{
		Prompt:      prompt,
		AspectRatio: Ratio16x9,
		Resolution:  Resolution2K,
		Format:      FormatPNG,
		Safety:      SafetyBlockOnlyHigh,
	}
}

func (r *Request) Validate() error {
	if r.Prompt == "" {
		return ErrEmptyPrompt
	}
	if r.Format != "" && !r.Format.IsValid() {
		return ErrInvalidFormat
	}
	if r.AspectRatio != "" && !r.AspectRatio.IsValid() {
		return ErrInvalidAspectRatio
	}
	if len(r.ReferenceImages) > MaxReferenceImages {
		return ErrTooManyReferences
	}
	return nil
}

// Parameters returns the immutable record stored alongside the artifact
// this request produced.
func (r *Request) Parameters(provider ProviderType) *GenerationParameters {
	return &GenerationParameters{
		Resolution:  r.Resolution,
		AspectRatio: r.AspectRatio,
		Format:      r.Format,
		Safety:      r.Safety,
		Provider:    provider,
	}
}

// GenerationParameters records how an artifact was produced. Immutable once
// written; used only to pre-fill a new request on reuse.
type GenerationParameters struct {
	Resolution  Resolution   `json:"resolution"`
	AspectRatio AspectRatio  `json:"aspect_ratio"`
	Format      OutputFormat `json:"output_format"`
	Safety      SafetyLevel  `json:"safety_filter_level"`
	Provider    ProviderType `json:"provider,omitempty"`
}

// HistoryItem is one generation result in the capped history list.
// LocalID is set iff the image bytes were persisted to the object store.
type HistoryItem struct {
	Prompt     string                `json:"prompt"`
	URL        string                `json:"url"`
	Date       time.Time             `json:"date"`
	LocalID    string                `json:"localId,omitempty"`
	Parameters *GenerationParameters `json:"parameters,omitempty"`
}

// GenerationResult is the single normalized artifact every adapter
// produces: either a remote URL or a data URI.
type GenerationResult struct {
	ImageURL string
}

// IsDataURI reports whether the result carries inline image bytes rather
// than a remote locator.
func (r *GenerationResult) IsDataURI() bool {
	return IsDataURI(r.ImageURL)
}
