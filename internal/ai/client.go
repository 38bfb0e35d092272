package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://127.0.0.1:8000"
	defaultTimeout = 15 * time.Second
)

// Reply is the reply service's answer to one inbound message.
type Reply struct {
	Reply    string  `json:"reply"`
	Location *string `json:"location,omitempty"`
	Complete bool    `json:"complete,omitempty"`
}

// Replier generates a reply for an inbound message. Implemented by Client
// and by test fakes.
type Replier interface {
	GenerateReply(ctx context.Context, message, phone string) (*Reply, error)
}

// Config controls how the reply-service client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the local reply-generation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

type replyRequest struct {
	Message string `json:"message"`
	Phone   string `json:"phone"`
}

// GenerateReply POSTs the message to the reply service. Timeouts, transport
// errors and non-2xx statuses are all reported as a single failure kind.
func (c *Client) GenerateReply(ctx context.Context, message, phone string) (*Reply, error) {
	body, err := json.Marshal(replyRequest{Message: message, Phone: phone})
	if err != nil {
		return nil, fmt.Errorf("ai: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reply", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: calling reply service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("ai: reply service returned status %d", resp.StatusCode)
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("ai: decoding response: %w", err)
	}
	if reply.Reply == "" {
		return nil, errors.New("ai: reply service returned an empty reply")
	}
	return &reply, nil
}
