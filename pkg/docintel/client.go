package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default model for vendor invoice extraction.
const defaultModelID = "prebuilt-invoice"

const apiVersion = "2024-11-30"

// Client defines the document-analysis service operations.
type Client interface {
	// Analyze submits a document for analysis and returns the operation ID
	// to poll for the result.
	Analyze(ctx context.Context, document []byte, contentType string) (string, error)

	// GetResult fetches the current state of an analyze operation.
	GetResult(ctx context.Context, operationID string) (*AnalyzeOperation, error)
}

// APIError is returned when the service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docintel: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithModel overrides the default extraction model.
func WithModel(modelID string) Option {
	return func(c *httpClient) {
		c.modelID = modelID
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second (burst 1). The service
// throttles aggressively on free tiers; keep submissions under the quota
// instead of eating 429s.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	endpoint string
	apiKey   string
	modelID  string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a document-analysis client for the given service
// endpoint and API key.
func NewClient(endpoint, apiKey string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		modelID:  defaultModelID,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Analyze(ctx context.Context, document []byte, contentType string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "docintel: rate limit wait")
		}
	}

	url := fmt.Sprintf("%s/documentModels/%s:analyze?api-version=%s", c.endpoint, c.modelID, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(document))
	if err != nil {
		return "", eris.Wrap(err, "docintel: create analyze request")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "docintel: execute analyze request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	opID := operationID(resp.Header.Get("Operation-Location"))
	if opID == "" {
		return "", eris.New("docintel: analyze response missing Operation-Location")
	}
	return opID, nil
}

func (c *httpClient) GetResult(ctx context.Context, operationID string) (*AnalyzeOperation, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "docintel: rate limit wait")
		}
	}

	url := fmt.Sprintf("%s/documentModels/%s/analyzeResults/%s?api-version=%s", c.endpoint, c.modelID, operationID, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "docintel: create result request")
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "docintel: execute result request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var op AnalyzeOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, eris.Wrap(err, "docintel: decode result")
	}
	return &op, nil
}

// operationID extracts the trailing result ID from an Operation-Location
// URL, stripping any query string.
func operationID(location string) string {
	if i := strings.IndexByte(location, '?'); i >= 0 {
		location = location[:i]
	}
	if i := strings.LastIndexByte(location, '/'); i >= 0 {
		return location[i+1:]
	}
	return location
}
