package infrastructure

import (
	"context"
	"sync"
	"time"
)

// MessageDeduper remembers message keys for a window so provider
// redeliveries are answered once per process.
type MessageDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewMessageDeduper(window time.Duration) *MessageDeduper {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &MessageDeduper{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Seen records key and reports whether it was already recorded inside the window.
func (d *MessageDeduper) Seen(key string) bool {
	if key == "" {
		return false
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if when, ok := d.seen[key]; ok && now.Sub(when) <= d.window {
		return true
	}
	d.seen[key] = now
	return false
}

// Forget drops key so a redelivery is processed again.
func (d *MessageDeduper) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

func (d *MessageDeduper) gc() {
	cut := d.now().Add(-d.window)
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range d.seen {
		if v.Before(cut) {
			delete(d.seen, k)
		}
	}
}

// Run drops expired keys every minute until ctx is done.
func (d *MessageDeduper) Run(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.gc()
		}
	}
}
