package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/yoanbernabeu/nanothumbnail/internal/provider"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	model          = "gemini-3-pro-image-preview"
	defaultTimeout = 300 * time.Second
)

// aspectRatioMap translates UI ratios into the values Gemini accepts.
// match_input_image is not supported and falls back to 16:9.
var aspectRatioMap = map[models.AspectRatio]string{
	models.Ratio16x9:       "16:9",
	models.Ratio9x16:       "9:16",
	models.Ratio1x1:        "1:1",
	models.Ratio4x3:        "4:3",
	models.RatioMatchInput: "16:9",
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type apiRequest struct {
	Contents []struct {
		Parts []contentPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		ImageConfig        struct {
			AspectRatio string `json:"aspectRatio"`
		} `json:"imageConfig"`
	} `json:"generationConfig"`
}

type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []contentPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Provider is the synchronous content-generation adapter: one POST, the
// image comes back inline in the response parts.
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
	return models.ProviderGemini
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

	// The key travels as a query parameter; LogRequest redacts it.
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, url.QueryEscape(p.cfg.APIKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		return nil, provider.NewLogicalError(apiResp.Error.Code, apiResp.Error.Message, body)
	}

	return extractImage(&apiResp, body)
}

func (p *Provider) buildAPIRequest(req *models.Request) *apiRequest {
	parts := []contentPart{{Text: req.Prompt}}
	for _, img := range req.ReferenceImages {
		mimeType, b64, err := models.ParseDataURI(img)
		if err != nil {
			continue
		}
		parts = append(parts, contentPart{InlineData: &inlineData{MIMEType: mimeType, Data: b64}})
	}

	apiReq := &apiRequest{}
	apiReq.Contents = append(apiReq.Contents, struct {
		Parts []contentPart `json:"parts"`
	}{Parts: parts})
	apiReq.GenerationConfig.ResponseModalities = []string{"IMAGE", "TEXT"}

	ratio, ok := aspectRatioMap[req.AspectRatio]
	if !ok {
		ratio = "16:9"
	}
	apiReq.GenerationConfig.ImageConfig.AspectRatio = ratio

	return apiReq
}

// extractImage locates the first inline image part of the first candidate.
// A response with no image part (text only) is a distinct failure from a
// transport error.
func extractImage(apiResp *apiResponse, raw []byte) (*models.GenerationResult, error) {
	if len(apiResp.Candidates) > 0 {
		for _, part := range apiResp.Candidates[0].Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				uri := "data:" + part.InlineData.MIMEType + ";base64," + part.InlineData.Data
				return &models.GenerationResult{ImageURL: uri}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", provider.ErrNoImage, raw)
}
