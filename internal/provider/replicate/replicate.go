package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yoanbernabeu/nanothumbnail/internal/provider"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

const (
	defaultBaseURL = "https://api.replicate.com/v1"
	modelPath      = "/models/google/nano-banana-pro/predictions"

	pollInterval = 1 * time.Second

	// maxPollFailures bounds how many consecutive transient poll failures
	// are tolerated before the generation surfaces a TransportError. A
	// clean non-terminal poll resets the counter.
	maxPollFailures = 30
)

const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
	statusCanceled  = "canceled"
)

type predictionInput struct {
	Prompt      string   `json:"prompt"`
	Resolution  string   `json:"resolution"`
	AspectRatio string   `json:"aspect_ratio"`
	Format      string   `json:"output_format"`
	Safety      string   `json:"safety_filter_level"`
	ImageInput  []string `json:"image_input"`
}

type createRequest struct {
	Input predictionInput `json:"input"`
}

type prediction struct {
	Status string `json:"status"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
	Output json.RawMessage `json:"output,omitempty"`
	Logs   string          `json:"logs,omitempty"`
	Error  interface{}     `json:"error,omitempty"`
}

func (p *prediction) terminal() bool {
	switch p.Status {
	case statusSucceeded, statusFailed, statusCanceled:
		return true
	}
	return false
}

// outputURL extracts the result locator: the output field may be a single
// URL or an array, in which case the first element is taken.
func (p *prediction) outputURL() string {
	if len(p.Output) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// Provider is the asynchronous job adapter: it submits a prediction and
// polls the job descriptor until a terminal status.
type Provider struct {
	cfg        provider.Config
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func New(cfg *provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	// No overall client timeout: the prediction runs as long as the
	// provider needs, and cancellation comes from the context.
	return &Provider{
		cfg:        *cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{},
		now:        time.Now,
	}, nil
}

func (p *Provider) Name() models.ProviderType {
	return models.ProviderReplicate
}

func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pred, err := p.create(ctx, req)
	if err != nil {
		return nil, err
	}

	pred, err = p.poll(ctx, pred)
	if err != nil {
		return nil, err
	}

	if pred.Status != statusSucceeded {
		payload, _ := json.Marshal(pred)
		return nil, provider.NewLogicalError(0, fmt.Sprintf("prediction ended with status %q", pred.Status), payload)
	}

	url := pred.outputURL()
	if url == "" {
		payload, _ := json.Marshal(pred)
		return nil, fmt.Errorf("%w: %s", provider.ErrNoImage, payload)
	}
	return &models.GenerationResult{ImageURL: url}, nil
}

func (p *Provider) create(ctx context.Context, req *models.Request) (*prediction, error) {
	body := createRequest{
		Input: predictionInput{
			Prompt:      req.Prompt,
			Resolution:  req.Resolution.String(),
			AspectRatio: req.AspectRatio.String(),
			Format:      req.Format.String(),
			Safety:      req.Safety.String(),
			ImageInput:  referenceInput(req.ReferenceImages),
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := provider.ProxyTarget(p.cfg.ProxyURL, p.baseURL+modelPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+p.cfg.APIKey)

	p.cfg.LogRequest(http.MethodPost, url, httpReq.Header, jsonData)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to submit prediction: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	p.cfg.LogResponse(resp.StatusCode, respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.TransportError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var pred prediction
	if err := json.Unmarshal(respBody, &pred); err != nil {
		return nil, fmt.Errorf("failed to parse prediction: %w", err)
	}
	if pred.URLs.Get == "" {
		return nil, fmt.Errorf("prediction response missing poll URL")
	}
	return &pred, nil
}

// poll fetches the job descriptor once per tick until a terminal status.
// Transient failures (network errors, non-2xx poll responses) are
// tolerated up to maxPollFailures in a row; the next clean tick resets
// the budget.
func (p *Provider) poll(ctx context.Context, pred *prediction) (*prediction, error) {
	start := p.now()
	failures := 0
	lastErr := ""

	for !pred.terminal() {
		p.cfg.Report(pred.Status, p.now().Sub(start))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}

		next, status, err := p.pollOnce(ctx, pred.URLs.Get)
		if err != nil {
			failures++
			lastErr = err.Error()
			if failures >= maxPollFailures {
				return nil, &provider.TransportError{
					StatusCode: status,
					Body:       fmt.Sprintf("polling failed %d times in a row: %s", failures, lastErr),
				}
			}
			continue
		}
		failures = 0
		pred = next
	}
	return pred, nil
}

func (p *Provider) pollOnce(ctx context.Context, getURL string) (*prediction, int, error) {
	sep := "?"
	if strings.Contains(getURL, "?") {
		sep = "&"
	}
	busted := fmt.Sprintf("%s%st=%d", getURL, sep, p.now().UnixMilli())
	url := provider.ProxyTarget(p.cfg.ProxyURL, busted)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Authorization", "Token "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("poll returned HTTP %d: %s", resp.StatusCode, body)
	}

	var pred prediction
	if err := json.Unmarshal(body, &pred); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse poll response: %w", err)
	}
	return &pred, resp.StatusCode, nil
}

// referenceInput never sends a null image_input: the provider expects an
// array even when empty.
func referenceInput(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}
