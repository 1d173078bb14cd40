package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

const userAgent = "PitchSense-Engine/1.0"

// maxBodyBytes bounds how much of a response body is read. Analyzer
// payloads are small; anything larger is a misrouted response.
const maxBodyBytes = 1 << 20

// ClientConfig configures the analyzer client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the REST client for the remote analyzer suite.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new analyzer client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Orchestrate calls the routed multi-agent endpoint (auto mode).
func (c *Client) Orchestrate(ctx context.Context, req *AnalysisRequest) (*CombinedResponse, error) {
	return c.postCombined(ctx, "/orchestrate", req)
}

// FullAnalysis calls the combined-analysis endpoint; all three analyzer
// slots are attempted by the remote side.
func (c *Client) FullAnalysis(ctx context.Context, req *AnalysisRequest) (*CombinedResponse, error) {
	req.Mode = "full"
	return c.postCombined(ctx, "/analysis/full", req)
}

// Tactical calls the tactical-only analyzer, the last-resort fallback.
func (c *Client) Tactical(ctx context.Context, req *TacticalRequest) (*TacticalResponse, error) {
	var resp TacticalResponse
	if _, err := c.doJSON(ctx, http.MethodPost, "/agents/tactical", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health probes the analyzer suite's liveness endpoint.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if _, err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postCombined(ctx context.Context, path string, req *AnalysisRequest) (*CombinedResponse, error) {
	var resp CombinedResponse
	status, err := c.doJSON(ctx, http.MethodPost, path, req, &resp)
	if err != nil {
		return nil, err
	}
	// 207 multi-status signals partial success: some agents answered,
	// some did not.
	resp.Partial = status == http.StatusMultiStatus
	return &resp, nil
}

// doJSON performs one HTTP exchange and classifies every failure mode into
// the analyzer error taxonomy. On success it returns the HTTP status so
// callers can distinguish 200 from 207.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &Error{Kind: classifyTransport(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, &Error{Kind: KindNetwork, Status: resp.StatusCode, URL: url, Err: err}
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, &Error{
			Kind:   classifyStatus(resp.StatusCode),
			Status: resp.StatusCode,
			URL:    url,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if !jsonContentType(resp.Header.Get("Content-Type")) {
		return resp.StatusCode, &Error{
			Kind:   KindMalformed,
			Status: resp.StatusCode,
			URL:    url,
			Err:    fmt.Errorf("non-JSON content type %q", resp.Header.Get("Content-Type")),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, &Error{Kind: KindMalformed, Status: resp.StatusCode, URL: url, Err: err}
	}

	return resp.StatusCode, nil
}

func jsonContentType(ct string) bool {
	if ct == "" {
		// Some analyzer deployments omit the header; trust the parser.
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || mediaType == "application/problem+json"
}
