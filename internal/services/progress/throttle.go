package progress

import (
	"context"
	"sync"
	"time"

	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/repository"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Throttle forwards batch events through a token bucket per phase and drops
// the excess. Every other event kind passes untouched.
type Throttle struct {
	next       repository.ProgressSink
	capacity   float64
	refillRate float64 // tokens per second
	now        func() time.Time

	mu      sync.Mutex
	buckets map[models.Phase]*bucket
}

var _ repository.ProgressSink = (*Throttle)(nil)

// NewThrottle allows bursts of capacity batch events per phase, refilled at
// perSecond.
func NewThrottle(next repository.ProgressSink, capacity int, perSecond float64) *Throttle {
	return &Throttle{
		next:       next,
		capacity:   float64(capacity),
		refillRate: perSecond,
		now:        time.Now,
		buckets:    make(map[models.Phase]*bucket),
	}
}

func (t *Throttle) Emit(ctx context.Context, ev models.ProgressEvent) error {
	if ev.Kind == models.EventBatch && !t.allow(ev.Phase) {
		return nil
	}
	return t.next.Emit(ctx, ev)
}

func (t *Throttle) allow(phase models.Phase) bool {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[phase]
	if !ok {
		b = &bucket{tokens: t.capacity, last: now}
		t.buckets[phase] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * t.refillRate
		if b.tokens > t.capacity {
			b.tokens = t.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
