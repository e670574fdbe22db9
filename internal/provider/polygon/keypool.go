package polygon

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// keyPool hands out API keys round-robin and spaces requests on each key by interval.
// The free Polygon tier allows 5 requests per minute per key, i.e. a 12s interval.
type keyPool struct {
	mu       sync.Mutex
	keys     []string
	next     int
	last     map[string]time.Time
	interval time.Duration
}

func newKeyPool(keys []string, interval time.Duration) *keyPool {
	return &keyPool{
		keys:     keys,
		last:     make(map[string]time.Time),
		interval: interval,
	}
}

// take returns the next key once its interval has passed. The slot is reserved
// before waiting, so concurrent callers queue behind each other per key. A caller
// that gives up releases its slot unless a later caller already queued behind it.
func (p *keyPool) take(ctx context.Context) (string, error) {
	p.mu.Lock()
	if len(p.keys) == 0 {
		p.mu.Unlock()
		return "", fmt.Errorf("no polygon api key configured")
	}
	key := p.keys[p.next]
	p.next = (p.next + 1) % len(p.keys)

	now := time.Now()
	at := now
	prev, hadPrev := p.last[key]
	if hadPrev && p.interval > 0 {
		if next := prev.Add(p.interval); next.After(now) {
			at = next
		}
	}
	p.last[key] = at
	p.mu.Unlock()

	wait := at.Sub(now)
	if wait <= 0 {
		return key, nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		p.release(key, at, prev, hadPrev)
		return "", fmt.Errorf("waiting %s for key slot: %w", wait.Round(time.Millisecond), ctx.Err())
	case <-timer.C:
		return key, nil
	}
}

// release undoes a reservation at for key, restoring the previous slot.
func (p *keyPool) release(key string, at, prev time.Time, hadPrev bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.last[key].Equal(at) {
		return
	}
	if hadPrev {
		p.last[key] = prev
	} else {
		delete(p.last, key)
	}
}

// keyPrefix shortens a key for logs.
func keyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
