package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tastevault/tastevault"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "tastevault/1.0"
)

// Client talks to the external model service used for recipe
// improvement suggestions.
type Client struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
}

func New(endpoint, apiKey, model string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:   &httpClient,
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// Generate sends a completion request and returns the model's text.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (*tastevault.GenerateResponse, error) {
	request := tastevault.GenerateRequest{
		Model:     c.model,
		Prompt:    prompt,
		MaxTokens: maxTokens,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("model service returned %d: %s", resp.StatusCode, string(payload))
	}

	var response tastevault.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	return &response, nil
}
