package satellite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/tiagofur/ordo-todo-sub018/internal/errors"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

func writeEvent(w http.ResponseWriter, event string, v interface{}) {
	raw, _ := json.Marshal(v)
	fmt.Fprintf(w, "event:%s\ndata:%s\n\n", event, raw)
	w.(http.Flusher).Flush()
}

func envelope(seq int64, status model.Status, version int64) model.Envelope {
	return model.Envelope{
		Type: model.EnvelopeSnapshot,
		Seq:  seq,
		Snapshot: &model.Snapshot{
			Mode:    model.ModeWork,
			Status:  status,
			Version: version,
		},
	}
}

func TestCommandAndState(t *testing.T) {
	var gotCmd model.Command
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/surfaces/desk/commands":
			_ = json.NewDecoder(r.Body).Decode(&gotCmd)
			if gotCmd.Type == "rewind" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":"invalid_command","message":"bad"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"state":{"status":"running","version":4}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/timer/state":
			_, _ = w.Write([]byte(`{"state":{"status":"running","version":3}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := New(srv.URL, "desk", model.SurfaceMain)
	state, err := client.Command(context.Background(), model.Command{Type: model.CommandStart, TaskID: "t"})
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if state.Status != model.StatusRunning || gotCmd.TaskID != "t" {
		t.Fatalf("unexpected state %+v cmd %+v", state, gotCmd)
	}

	if _, err := client.State(context.Background()); err != nil {
		t.Fatalf("state: %v", err)
	}
	if last, ok := client.Last(); !ok || last.Version != 4 {
		t.Fatalf("an older snapshot must not replace a newer one, got %+v", last)
	}

	_, err = client.Command(context.Background(), model.Command{Type: "rewind"})
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_command" || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected invalid_command API error, got %v", err)
	}
}

func TestWatchMirrorsSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/surfaces/desk/stream" || r.URL.Query().Get("kind") != "floating" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		writeEvent(w, "snapshot", envelope(1, model.StatusIdle, 1))
		writeEvent(w, "heartbeat", map[string]string{"at": "now"})
		writeEvent(w, "snapshot", envelope(2, model.StatusRunning, 2))
		writeEvent(w, "snapshot", envelope(3, model.StatusIdle, 1))
	}))
	defer srv.Close()

	client := New(srv.URL, "desk", model.SurfaceFloating)
	var seen []model.Status
	err := client.Watch(context.Background(), func(s model.Snapshot) {
		seen = append(seen, s.Status)
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(seen) != 2 || seen[0] != model.StatusIdle || seen[1] != model.StatusRunning {
		t.Fatalf("expected idle then running, got %v", seen)
	}
	if last, _ := client.Last(); last.Version != 2 {
		t.Fatalf("expected last version 2, got %d", last.Version)
	}
}

func TestReadEventsJoinsMultilineData(t *testing.T) {
	stream := ": comment\nevent: snapshot\ndata: {\"a\":\ndata: 1}\n\ndata: plain\n\n"
	var events []string
	err := readEvents(strings.NewReader(stream), func(event string, data []byte) error {
		events = append(events, event+"="+string(data))
		return nil
	})
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != 2 || events[0] != "snapshot={\"a\":\n1}" || events[1] != "message=plain" {
		t.Fatalf("unexpected events %q", events)
	}
}
