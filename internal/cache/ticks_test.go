package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowex/flowex-go/internal/state"
)

func TestTicksRoundTrip(t *testing.T) {
	ticks := NewTicks()
	ticks.Record(state.Ticker{Symbol: "BTC-USDT", Price: "50000.00"})

	got, ok := ticks.Latest("BTC-USDT")
	require.True(t, ok)
	assert.Equal(t, "50000.00", got.Price)

	_, ok = ticks.Latest("ETH-USDT")
	assert.False(t, ok)
}

func TestTicksExpire(t *testing.T) {
	ticks := NewTicks()
	ticks.ttl = time.Millisecond
	ticks.Record(state.Ticker{Symbol: "BTC-USDT", Price: "50000.00"})

	time.Sleep(5 * time.Millisecond)
	_, ok := ticks.Latest("BTC-USDT")
	assert.False(t, ok, "a stale tick must read as unknown")
}

func TestNewTicksAutoFallsBackToMemory(t *testing.T) {
	ticks := NewTicksAuto("")
	assert.Nil(t, ticks.redis)

	ticks.Record(state.Ticker{Symbol: "BTC-USDT", Price: "50000.00"})
	_, ok := ticks.Latest("BTC-USDT")
	assert.True(t, ok)
}

func TestTicksListenerMirrorsStore(t *testing.T) {
	ticks := NewTicks()
	st := state.New(state.Options{})
	t.Cleanup(st.Close)
	st.Subscribe(ticks.Listener())

	st.Dispatch(state.Action{
		Type:    state.ActionTickerUpdate,
		Payload: state.Ticker{Symbol: "BTC-USDT", Price: "50100.00"},
	})

	got, ok := ticks.Latest("BTC-USDT")
	require.True(t, ok)
	assert.Equal(t, "50100.00", got.Price)
}
