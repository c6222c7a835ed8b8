package markov_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ErrNoQualifyingSentence is returned when the model cannot produce a
// sentence that passes the caller's filter within the retry budget.
var ErrNoQualifyingSentence = errors.New("no qualifying sentence found")

// TrainingRecord is the unit submitted to the markov service. Tags carry
// enough identifiers for targeted removal: the message id alone, and
// separately the containing channel/thread id.
type TrainingRecord struct {
	Text   string      `json:"text"`
	Tags   []string    `json:"tags"`
	Custom *CustomData `json:"custom,omitempty"`
}

// CustomData is the opaque payload stored alongside a record.
type CustomData struct {
	Attachments []string `json:"attachments"`
}

// Generated is one candidate sentence produced by the markov service.
type Generated struct {
	Text       string           `json:"text"`
	Score      int              `json:"score"`
	References []TrainingRecord `json:"references"`
}

// GenerateOptions controls a generation request. Filter is evaluated
// client-side against each candidate; MaxTries bounds the number of
// candidates requested before giving up.
type GenerateOptions struct {
	Filter    func(*Generated) bool
	MaxTries  int
	StartSeed string
}

// Client is a client for the markov model service API. Models are scoped
// per community; the service keeps one corpus per community id.
type Client struct {
	baseURL    string
	stateSize  int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new markov service client.
func NewClient(baseURL string, stateSize int, logger *zap.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		stateSize: stateSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type addDataRequest struct {
	StateSize int              `json:"state_size"`
	Records   []TrainingRecord `json:"records"`
}

// AddData submits a batch of training records to the community's model.
func (c *Client) AddData(ctx context.Context, communityID string, records []TrainingRecord) error {
	if len(records) == 0 {
		return nil
	}
	reqBody := addDataRequest{StateSize: c.stateSize, Records: records}
	endpoint := fmt.Sprintf("%s/api/v1/models/%s/data", c.baseURL, url.PathEscape(communityID))
	return c.post(ctx, endpoint, reqBody, nil)
}

type removeByTagsRequest struct {
	Tags []string `json:"tags"`
}

// RemoveByTags removes every record carrying any of the given tags.
// Used for message edits/deletions (message-id tag) and thread deletions
// (thread-id tag).
func (c *Client) RemoveByTags(ctx context.Context, communityID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	endpoint := fmt.Sprintf("%s/api/v1/models/%s/data/remove", c.baseURL, url.PathEscape(communityID))
	return c.post(ctx, endpoint, removeByTagsRequest{Tags: tags}, nil)
}

// Delete clears the community's entire model.
func (c *Client) Delete(ctx context.Context, communityID string) error {
	endpoint := fmt.Sprintf("%s/api/v1/models/%s", c.baseURL, url.PathEscape(communityID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("markov service returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

type generateRequest struct {
	StateSize int    `json:"state_size"`
	StartSeed string `json:"start_seed,omitempty"`
}

// Generate requests candidate sentences until one passes opts.Filter or
// the retry budget runs out. A service-side 422 means the corpus cannot
// produce any sentence (empty corpus or unsatisfiable seed) and is
// reported as ErrNoQualifyingSentence immediately.
func (c *Client) Generate(ctx context.Context, communityID string, opts GenerateOptions) (*Generated, error) {
	maxTries := opts.MaxTries
	if maxTries <= 0 {
		maxTries = 1
	}

	endpoint := fmt.Sprintf("%s/api/v1/models/%s/generate", c.baseURL, url.PathEscape(communityID))
	reqBody := generateRequest{StateSize: c.stateSize, StartSeed: opts.StartSeed}

	for try := 0; try < maxTries; try++ {
		var candidate Generated
		err := c.post(ctx, endpoint, reqBody, &candidate)
		if err != nil {
			if errors.Is(err, errUnprocessable) {
				return nil, ErrNoQualifyingSentence
			}
			return nil, err
		}
		if opts.Filter == nil || opts.Filter(&candidate) {
			return &candidate, nil
		}
		c.logger.Debug("Candidate rejected by filter",
			zap.String("community_id", communityID),
			zap.Int("score", candidate.Score),
			zap.Int("try", try+1))
	}

	return nil, ErrNoQualifyingSentence
}

// RandomAttachmentRecord returns one training record carrying attachments,
// picked uniformly at random from the community's entire corpus. Returns
// (nil, nil) when no such record exists.
func (c *Client) RandomAttachmentRecord(ctx context.Context, communityID string) (*TrainingRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/models/%s/data/random?with_attachments=true", c.baseURL, url.PathEscape(communityID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("markov service returned status %d: %s", resp.StatusCode, string(body))
	}

	var record TrainingRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &record, nil
}

var errUnprocessable = errors.New("markov service cannot satisfy the request")

func (c *Client) post(ctx context.Context, endpoint string, reqBody, out interface{}) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return errUnprocessable
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("markov service returned status %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
