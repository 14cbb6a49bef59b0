// Package remote is the boundary to the session repository that receives
// completed focus sessions.
package remote

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

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

const IdempotencyHeader = "Idempotency-Key"

// ErrRejected marks a request the repository will never accept, so retrying
// it cannot help.
var ErrRejected = errors.New("session rejected by repository")

type SessionRecorder interface {
	RecordSession(ctx context.Context, idempotencyKey string, record model.SessionRecord) error
}

// Client records sessions against the HTTP session repository.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) RecordSession(ctx context.Context, idempotencyKey string, record model.SessionRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode session: %v", ErrRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, idempotencyKey)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	defer resp.Body.Close()

	// A replay of an already recorded key is acknowledged with 200.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("record session: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		// 409 means the key belongs to a different session, which was not stored.
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return err
}
