// Package cache keeps the latest tick per symbol available to consumers
// outside the store, optionally backed by Redis so a restarted client sees
// prices before the push channel warms up.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/flowex/flowex-go/internal/state"
)

const tickPrefix = "flowex:tick:"

// defaultTickTTL bounds how stale a cached tick may get before readers
// treat the symbol as unknown.
const defaultTickTTL = 5 * time.Minute

// redisTimeout caps every round trip so a slow Redis never stalls the
// dispatch path feeding the listener.
const redisTimeout = 500 * time.Millisecond

type cachedTick struct {
	tick     state.Ticker
	deadline time.Time
}

// Ticks mirrors the store's per-symbol tickers into a best-effort cache.
// In-process it holds typed ticks directly; with Redis configured the
// ticks are shared across processes as JSON under tickPrefix keys.
type Ticks struct {
	ttl time.Duration

	mu  sync.Mutex
	mem map[string]cachedTick

	redis *redis.Client // nil when memory-backed
}

// NewTicks builds an in-process tick cache.
func NewTicks() *Ticks {
	return &Ticks{ttl: defaultTickTTL, mem: make(map[string]cachedTick)}
}

// NewTicksAuto returns a Redis-backed cache when addr is set and falls
// back to the in-process cache otherwise.
func NewTicksAuto(addr string) *Ticks {
	t := NewTicks()
	if addr != "" {
		t.redis = redis.NewClient(&redis.Options{Addr: addr})
	}
	return t
}

// Latest returns the most recent tick recorded for a symbol. Expired
// entries read as unknown.
func (t *Ticks) Latest(symbol string) (state.Ticker, bool) {
	if t.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
		defer cancel()
		raw, err := t.redis.Get(ctx, tickPrefix+symbol).Bytes()
		if err != nil {
			return state.Ticker{}, false
		}
		var tick state.Ticker
		if uerr := json.Unmarshal(raw, &tick); uerr != nil {
			return state.Ticker{}, false
		}
		return tick, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.mem[symbol]
	if !ok || time.Now().After(e.deadline) {
		return state.Ticker{}, false
	}
	return e.tick, true
}

// Record writes a tick. Failures are dropped; the cache is a best-effort
// mirror, never a source of truth.
func (t *Ticks) Record(tick state.Ticker) {
	if t.redis != nil {
		raw, err := json.Marshal(tick)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
		defer cancel()
		_ = t.redis.Set(ctx, tickPrefix+tick.Symbol, raw, t.ttl).Err()
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.mem[tick.Symbol] = cachedTick{tick: tick, deadline: time.Now().Add(t.ttl)}
}

// Listener returns a store listener that mirrors every ticker the store
// holds after each state change.
func (t *Ticks) Listener() state.Listener {
	return func(s state.AppState) {
		for _, tick := range s.MarketData.Tickers {
			t.Record(tick)
		}
	}
}
