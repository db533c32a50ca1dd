// Package client talks to the activity and recommendation REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/observability"
)

const maxErrorBody = 4 << 10

// Client implements domain.ActivityAPI over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client rooted at baseURL (e.g. http://localhost:8080/api).
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListActivities issues GET /activities.
func (c *Client) ListActivities(ctx context.Context, p domain.Principal) ([]domain.Activity, error) {
	var out []domain.Activity
	if err := c.do(ctx, "list activities", p, http.MethodGet, "/activities", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateActivity issues POST /activities with a fresh Idempotency-Key.
func (c *Client) CreateActivity(ctx context.Context, p domain.Principal, draft domain.Draft) (*domain.Activity, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Idempotency-Key", uuid.NewString())

	var out domain.Activity
	if err := c.do(ctx, "create activity", p, http.MethodPost, "/activities", headers, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetActivityDetail issues GET /recommendations/activity/{id}.
func (c *Client) GetActivityDetail(ctx context.Context, p domain.Principal, id string) (*domain.ActivityDetail, error) {
	var out domain.ActivityDetail
	err := c.do(ctx, "get activity detail", p, http.MethodGet, "/recommendations/activity/"+url.PathEscape(id), nil, nil, &out)
	if err != nil {
		var ferr *domain.FetchError
		if errors.As(err, &ferr) && ferr.StatusCode == http.StatusNotFound {
			return nil, &domain.NotFoundError{ID: id}
		}
		return nil, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op string, p domain.Principal, method, path string, headers http.Header, body []byte, out interface{}) error {
	start := time.Now()
	code := 0
	defer func() { observability.RecordAPIRequest(op, code, time.Since(start)) }()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.FetchError{Op: op, Err: err}
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}
	if p.UserID != "" {
		req.Header.Set("X-User-ID", p.UserID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	code = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.FetchError{Op: op, StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.FetchError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

const maxDetailRunes = 200

// errorDetail extracts a readable message from a problem+json style body,
// falling back to the trimmed text.
func errorDetail(raw []byte) string {
	var problem struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &problem) == nil {
		for _, v := range []string{problem.Detail, problem.Message, problem.Error} {
			if v != "" {
				return v
			}
		}
	}
	text := []rune(strings.TrimSpace(string(raw)))
	if len(text) > maxDetailRunes {
		text = text[:maxDetailRunes]
	}
	return string(text)
}
