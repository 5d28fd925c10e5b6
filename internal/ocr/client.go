package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bookbonus/bonus-backend/types"
)

// Client calls an OCR facade API over HTTP.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// ClientOption is a function that configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new OCR provider client.
func NewClient(apiURL, apiKey string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type extractRequest struct {
	Document string `json:"document"` // base64-encoded bytes
	MimeType string `json:"mimeType"`
}

type extractResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// ExtractText sends the document to the provider and returns its raw text
// plus a confidence in [0,1]. Network failures and 5xx responses surface as
// transient ProviderErrors; 4xx responses are permanent.
func (c *Client) ExtractText(ctx context.Context, document []byte, mimeType string) (*types.OCRResult, error) {
	reqBody := extractRequest{
		Document: base64.StdEncoding.EncodeToString(document),
		MimeType: mimeType,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{
			Message:   fmt.Sprintf("ocr request failed: %v", err),
			Transient: true,
		}
	}
	defer resp.Body.Close()

	var ocrResp extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to decode ocr response: %v", err),
			Transient:  resp.StatusCode >= 500,
		}
	}

	if resp.StatusCode != http.StatusOK {
		msg := ocrResp.Error
		if msg == "" {
			msg = fmt.Sprintf("ocr provider returned status %d", resp.StatusCode)
		}
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Transient:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	if ocrResp.Confidence < 0 || ocrResp.Confidence > 1 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("ocr provider returned confidence %f outside [0,1]", ocrResp.Confidence),
			Transient:  false,
		}
	}

	return &types.OCRResult{
		Text:       ocrResp.Text,
		Confidence: ocrResp.Confidence,
	}, nil
}
