// Package broadcast fans timer snapshots out to UI surfaces and routes their
// commands back to the single authoritative timer.
package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

var (
	ErrNoHandler      = errors.New("no command handler attached")
	ErrUnknownCommand = errors.New("unknown command")
)

// CommandHandler applies a command to the authoritative timer and returns
// the resulting snapshot.
type CommandHandler interface {
	Apply(ctx context.Context, cmd model.Command) (model.Snapshot, error)
}

// Subscription is one surface's view of the broadcast. Its channel is closed
// when the surface unsubscribes, is replaced, or the broadcaster closes.
type Subscription struct {
	ID          string
	Kind        model.SurfaceKind
	ConnectedAt time.Time

	ch      chan model.Envelope
	dropped atomic.Int64
}

func (s *Subscription) Envelopes() <-chan model.Envelope {
	return s.ch
}

// Dropped counts snapshots evicted because the surface fell behind.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// offer never blocks. When the buffer is full the oldest queued snapshot is
// evicted so the surface always ends up with the newest one, in order.
func (s *Subscription) offer(env model.Envelope) {
	select {
	case s.ch <- env:
		return
	default:
	}
	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- env:
	default:
		s.dropped.Add(1)
	}
}

type Broadcaster struct {
	mu      sync.Mutex
	buffer  int
	subs    map[string]*Subscription
	seq     int64
	last    *model.Snapshot
	handler CommandHandler
	closed  bool
	log     *logger.Logger
}

func New(buffer int, log *logger.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	return &Broadcaster{
		buffer: buffer,
		subs:   make(map[string]*Subscription),
		log:    log,
	}
}

// SetHandler attaches the authoritative timer.
func (b *Broadcaster) SetHandler(handler CommandHandler) {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
}

// Subscribe registers a surface. There is at most one subscription per
// surface id: subscribing again replaces the previous subscription, and the
// new one is primed with the latest full snapshot.
func (b *Broadcaster) Subscribe(surfaceID string, kind model.SurfaceKind) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if previous, ok := b.subs[surfaceID]; ok {
		delete(b.subs, surfaceID)
		close(previous.ch)
	}

	sub := &Subscription{
		ID:          surfaceID,
		Kind:        kind,
		ConnectedAt: time.Now().UTC(),
		ch:          make(chan model.Envelope, b.buffer),
	}
	if b.closed {
		close(sub.ch)
		return sub
	}
	if b.last != nil {
		sub.offer(b.envelopeLocked(*b.last, b.seq))
	}
	b.subs[surfaceID] = sub
	b.log.Debug("surface subscribed", "surface", surfaceID, "kind", kind)
	return sub
}

// Unsubscribe removes a surface. Unknown ids are ignored.
func (b *Broadcaster) Unsubscribe(surfaceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(surfaceID, nil)
}

// Release removes sub only if it is still the current subscription for its
// surface, so a stale connection cannot evict its replacement.
func (b *Broadcaster) Release(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.ID, sub)
}

func (b *Broadcaster) removeLocked(surfaceID string, only *Subscription) {
	sub, ok := b.subs[surfaceID]
	if !ok || (only != nil && sub != only) {
		return
	}
	delete(b.subs, surfaceID)
	close(sub.ch)
	b.log.Debug("surface unsubscribed", "surface", surfaceID, "dropped", sub.Dropped())
}

// Publish fans a snapshot out to every surface without blocking.
func (b *Broadcaster) Publish(snapshot model.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.seq++
	b.last = &snapshot
	env := b.envelopeLocked(snapshot, b.seq)
	for _, sub := range b.subs {
		sub.offer(env)
	}
}

// Dispatch applies a surface's command to the authoritative timer. The
// handler republishes the resulting snapshot to every surface.
func (b *Broadcaster) Dispatch(ctx context.Context, surfaceID string, cmd model.Command) (model.Snapshot, error) {
	if !cmd.Type.Valid() {
		return model.Snapshot{}, ErrUnknownCommand
	}

	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler == nil {
		return model.Snapshot{}, ErrNoHandler
	}

	cmd.SurfaceID = surfaceID
	return handler.Apply(ctx, cmd)
}

func (b *Broadcaster) Surfaces() []model.SurfaceInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos := make([]model.SurfaceInfo, 0, len(b.subs))
	for _, sub := range b.subs {
		infos = append(infos, model.SurfaceInfo{
			ID:          sub.ID,
			Kind:        sub.Kind,
			ConnectedAt: sub.ConnectedAt,
			Dropped:     sub.Dropped(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Close ends every subscription. Later publishes are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

func (b *Broadcaster) envelopeLocked(snapshot model.Snapshot, seq int64) model.Envelope {
	snap := snapshot
	return model.Envelope{
		Type:     model.EnvelopeSnapshot,
		Seq:      seq,
		Snapshot: &snap,
	}
}
