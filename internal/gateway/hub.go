package gateway

import (
	"context"
	"sync"
)

// Loader reads the current snapshot of one collection.
type Loader func(ctx context.Context) (Snapshot, error)

// Hub fans change notifications out to subscribers. Each subscriber owns a
// goroutine that reloads and delivers the latest snapshot; notifications that
// arrive while a load is in flight coalesce into one reload.
type Hub struct {
	mu     sync.Mutex
	subs   map[Path]map[*subscriber]struct{}
	wg     sync.WaitGroup
	onErr  func(Path, error)
	closed bool
}

type subscriber struct {
	path   Path
	signal chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

// NewHub creates a Hub. onErr receives loader failures; it may be nil.
func NewHub(onErr func(Path, error)) *Hub {
	return &Hub{subs: make(map[Path]map[*subscriber]struct{}), onErr: onErr}
}

// Subscribe starts delivering snapshots of path to fn, beginning with the
// current one.
func (h *Hub) Subscribe(ctx context.Context, path Path, load Loader, fn func(Snapshot)) Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	s := &subscriber{path: path, signal: make(chan struct{}, 1), cancel: cancel}
	s.signal <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return func() {}
	}
	if h.subs[path] == nil {
		h.subs[path] = make(map[*subscriber]struct{})
	}
	h.subs[path][s] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	go h.run(ctx, s, load, fn)

	return func() { h.drop(s) }
}

func (h *Hub) run(ctx context.Context, s *subscriber, load Loader, fn func(Snapshot)) {
	defer h.wg.Done()
	defer h.drop(s)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.signal:
		}
		snap, err := load(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if h.onErr != nil {
				h.onErr(s.path, err)
			}
			continue
		}
		fn(snap)
	}
}

func (h *Hub) drop(s *subscriber) {
	s.once.Do(func() {
		s.cancel()
		h.mu.Lock()
		delete(h.subs[s.path], s)
		if len(h.subs[s.path]) == 0 {
			delete(h.subs, s.path)
		}
		h.mu.Unlock()
	})
}

// Notify schedules a reload for every subscriber of path.
func (h *Hub) Notify(path Path) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[path] {
		select {
		case s.signal <- struct{}{}:
		default:
		}
	}
}

// NotifyAll schedules a reload for every subscriber.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	paths := make([]Path, 0, len(h.subs))
	for p := range h.subs {
		paths = append(paths, p)
	}
	h.mu.Unlock()
	for _, p := range paths {
		h.Notify(p)
	}
}

// Close stops every subscription and waits for their goroutines to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscriber
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()
	for _, s := range all {
		h.drop(s)
	}
	h.wg.Wait()
}
