package collector_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Message is the shape of a message returned by the collector service.
// ChannelID is the directly-containing channel or thread. ThreadID is set
// when this message opened a thread that can be traversed separately.
type Message struct {
	ID             string    `json:"id"`
	ChannelID      string    `json:"channel_id"`
	AuthorIsBot    bool      `json:"author_is_bot"`
	AuthorIsSystem bool      `json:"author_is_system"`
	Text           string    `json:"text"`
	AttachmentURLs []string  `json:"attachment_urls"`
	CreatedAt      time.Time `json:"created_at"`
	ThreadID       string    `json:"thread_id,omitempty"`
}

// ChannelInfo describes a channel known to the collector.
type ChannelInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Client for interacting with the chat history collector service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new collector API client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// GetMessagesBefore fetches a page of up to limit channel messages strictly
// older than beforeID, ordered newest to oldest. An empty beforeID starts
// from the newest message.
func (c *Client) GetMessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]Message, error) {
	endpoint := fmt.Sprintf("%s/api/channels/%s/messages", c.baseURL, url.PathEscape(channelID))
	return c.getMessages(ctx, endpoint, beforeID, limit)
}

// GetThreadMessagesBefore is GetMessagesBefore for a thread.
func (c *Client) GetThreadMessagesBefore(ctx context.Context, threadID, beforeID string, limit int) ([]Message, error) {
	endpoint := fmt.Sprintf("%s/api/threads/%s/messages", c.baseURL, url.PathEscape(threadID))
	return c.getMessages(ctx, endpoint, beforeID, limit)
}

// GetChannelInfo fetches channel metadata, including its creation time.
func (c *Client) GetChannelInfo(ctx context.Context, channelID string) (*ChannelInfo, error) {
	endpoint := fmt.Sprintf("%s/api/channels/%s", c.baseURL, url.PathEscape(channelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request to collector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collector returned status: %d", resp.StatusCode)
	}

	var info ChannelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode collector response: %w", err)
	}
	return &info, nil
}

func (c *Client) getMessages(ctx context.Context, endpoint, beforeID string, limit int) ([]Message, error) {
	query := url.Values{}
	if beforeID != "" {
		query.Set("before", beforeID)
	}
	query.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request to collector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Collector returned non-OK status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("collector returned status: %d", resp.StatusCode)
	}

	var response struct {
		Messages []Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode collector response: %w", err)
	}

	return response.Messages, nil
}
