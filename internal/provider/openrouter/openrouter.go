package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/yoanbernabeu/nanothumbnail/internal/provider"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	model          = "google/gemini-3-pro-image-preview"
	defaultTimeout = 300 * time.Second

	refererHeader = "https://nanothumbnail.com"
	titleHeader   = "NanoThumbnail"
)

var aspectRatioMap = map[models.AspectRatio]string{
	models.Ratio16x9:       "16:9",
	models.Ratio9x16:       "9:16",
	models.Ratio1x1:        "1:1",
	models.Ratio4x3:        "4:3",
	models.RatioMatchInput: "16:9",
}

// resolutionMap folds the UI's video-quality ladder into the size buckets
// OpenRouter accepts.
var resolutionMap = map[models.Resolution]string{
	"144p":  "1K",
	"240p":  "1K",
	"360p":  "1K",
	"480p":  "1K",
	"720p":  "1K",
	"1080p": "2K",
	"1440p": "2K",
	"2160p": "4K",

	models.Resolution1K: "1K",
	models.Resolution2K: "2K",
	models.Resolution4K: "4K",
}

var markdownImagePattern = regexp.MustCompile(`!\[.*?\]\((data:image/[^)]+)\)`)
var rawBase64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type imageConfig struct {
	AspectRatio string `json:"aspect_ratio"`
	ImageSize   string `json:"image_size"`
}

type apiRequest struct {
	Model       string      `json:"model"`
	Messages    []message   `json:"messages"`
	Modalities  []string    `json:"modalities"`
	ImageConfig imageConfig `json:"image_config"`
}

type responseImage struct {
	Index    int      `json:"index"`
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string          `json:"content"`
			Images  []responseImage `json:"images"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Provider is the chat-completion-shaped adapter. The response may carry
// the image in an images array, or hide it inside the content string as a
// data URI, a markdown-embedded data URI, or raw base64; extraction tries
// each strategy in that order.
type Provider struct {
	cfg        provider.Config
	baseURL    string
	httpClient *http.Client
}

func New(cfg *provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	return &Provider{
		cfg:        *cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *Provider) Name() models.ProviderType {
	return models.ProviderOpenRouter
}

func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	apiReq := p.buildAPIRequest(req)
	jsonData, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("HTTP-Referer", refererHeader)
	httpReq.Header.Set("X-Title", titleHeader)

	p.cfg.LogRequest(http.MethodPost, endpoint, httpReq.Header, jsonData)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	p.cfg.LogResponse(resp.StatusCode, body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if apiResp.Error != nil {
		return nil, provider.NewLogicalError(0, apiResp.Error.Message, body)
	}

	return extractImage(&apiResp, body)
}

func (p *Provider) buildAPIRequest(req *models.Request) *apiRequest {
	userContent := []contentPart{{Type: "text", Text: req.Prompt}}
	for _, img := range req.ReferenceImages {
		userContent = append(userContent, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: img},
		})
	}

	messages := []message{
		{
			Role:    "system",
			Content: "You are an image generation assistant. Generate high-quality YouTube thumbnails based on the user's prompt.",
		},
		{
			Role:    "user",
			Content: userContent,
		},
	}

	ratio, ok := aspectRatioMap[req.AspectRatio]
	if !ok {
		ratio = "16:9"
	}
	size, ok := resolutionMap[req.Resolution]
	if !ok {
		size = "1K"
	}

	return &apiRequest{
		Model:      model,
		Messages:   messages,
		Modalities: []string{"image"},
		ImageConfig: imageConfig{
			AspectRatio: ratio,
			ImageSize:   size,
		},
	}
}

func extractImage(apiResp *apiResponse, raw []byte) (*models.GenerationResult, error) {
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s", provider.ErrNoImage, raw)
	}
	msg := apiResp.Choices[0].Message

	if len(msg.Images) > 0 && msg.Images[0].ImageURL.URL != "" {
		return &models.GenerationResult{ImageURL: msg.Images[0].ImageURL.URL}, nil
	}

	if content := msg.Content; content != "" {
		if models.IsDataURI(content) {
			return &models.GenerationResult{ImageURL: content}, nil
		}
		if m := markdownImagePattern.FindStringSubmatch(content); m != nil {
			return &models.GenerationResult{ImageURL: m[1]}, nil
		}
		if rawBase64Pattern.MatchString(content) {
			return &models.GenerationResult{ImageURL: "data:image/png;base64," + content}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", provider.ErrNoImage, raw)
}
