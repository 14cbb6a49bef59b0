// Package satellite lets a secondary process act as a surface of the
// authoritative timer. It forwards commands and mirrors snapshots; it never
// keeps a timer of its own.
package satellite

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/tiagofur/ordo-todo-sub018/internal/errors"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/syncqueue"
)

type Client struct {
	baseURL   string
	surfaceID string
	kind      model.SurfaceKind

	api    *http.Client
	stream *http.Client

	mu   sync.RWMutex
	last *model.Snapshot
}

func New(baseURL, surfaceID string, kind model.SurfaceKind) *Client {
	if surfaceID == "" {
		surfaceID = "satellite"
	}
	if !kind.Valid() {
		kind = model.SurfaceMain
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		surfaceID: surfaceID,
		kind:      kind,
		api:       &http.Client{Timeout: 10 * time.Second},
		stream:    &http.Client{},
	}
}

func (c *Client) Command(ctx context.Context, cmd model.Command) (model.Snapshot, error) {
	var resp struct {
		State model.Snapshot `json:"state"`
	}
	path := "/api/surfaces/" + c.surfaceID + "/commands"
	if err := c.do(ctx, http.MethodPost, path, cmd, &resp); err != nil {
		return model.Snapshot{}, err
	}
	c.remember(resp.State)
	return resp.State, nil
}

func (c *Client) State(ctx context.Context) (model.Snapshot, error) {
	var resp struct {
		State model.Snapshot `json:"state"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/timer/state", nil, &resp); err != nil {
		return model.Snapshot{}, err
	}
	c.remember(resp.State)
	return resp.State, nil
}

func (c *Client) SyncStatus(ctx context.Context) (model.SyncStatus, error) {
	var resp struct {
		Sync model.SyncStatus `json:"sync"`
	}
	err := c.do(ctx, http.MethodGet, "/api/sync/status", nil, &resp)
	return resp.Sync, err
}

func (c *Client) SetOnline(ctx context.Context, online bool) (model.SyncStatus, error) {
	var resp struct {
		Sync model.SyncStatus `json:"sync"`
	}
	err := c.do(ctx, http.MethodPut, "/api/sync/connectivity", map[string]bool{"online": online}, &resp)
	return resp.Sync, err
}

func (c *Client) Drain(ctx context.Context) (syncqueue.DrainResult, error) {
	var resp struct {
		Drain syncqueue.DrainResult `json:"drain"`
	}
	err := c.do(ctx, http.MethodPost, "/api/sync/drain", nil, &resp)
	return resp.Drain, err
}

// Last returns the most recent snapshot seen from the authoritative process.
func (c *Client) Last() (model.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return model.Snapshot{}, false
	}
	return *c.last, true
}

// Watch follows the surface stream and calls fn for every snapshot until ctx
// is done or the server ends the stream.
func (c *Client) Watch(ctx context.Context, fn func(model.Snapshot)) error {
	url := fmt.Sprintf("%s/api/surfaces/%s/stream?kind=%s", c.baseURL, c.surfaceID, c.kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	err = readEvents(resp.Body, func(event string, data []byte) error {
		if event != string(model.EnvelopeSnapshot) {
			return nil
		}
		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}
		if env.Snapshot == nil {
			return nil
		}
		if c.remember(*env.Snapshot) {
			fn(*env.Snapshot)
		}
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// remember keeps s unless a newer snapshot is already known.
func (c *Client) remember(s model.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil && s.Version < c.last.Version {
		return false
	}
	c.last = &s
	return true
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var envelope struct {
		Error apperrors.APIError `json:"error"`
	}
	apiErr := &envelope.Error
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&envelope); err != nil || apiErr.Code == "" {
		apiErr = apperrors.New(resp.StatusCode, "http_error", resp.Status)
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}

// readEvents parses a server-sent event stream, calling fn once per event.
func readEvents(r io.Reader, fn func(event string, data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if data.Len() > 0 {
				if event == "" {
					event = "message"
				}
				if err := fn(event, data.Bytes()); err != nil {
					return err
				}
			}
			event = ""
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}
	return scanner.Err()
}
