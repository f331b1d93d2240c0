package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the external OCR service: it posts image bytes and
// reads back the recognized plain text.
type Client struct {
	config ClientConfig
	client *http.Client
}

func NewWithConfig(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("OCR base URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// ExtractText submits the image for recognition. Errors are retryable
// from the caller's point of view; the pipeline maps them to a corrupt
// input failure for the document being ingested.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/ocr", bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read OCR response: %w", err)
	}

	return string(body), nil
}
