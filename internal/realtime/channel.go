package realtime

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowex/flowex-go/internal/metrics"
	"github.com/flowex/flowex-go/internal/session"
	"github.com/flowex/flowex-go/internal/state"
)

// ConnectionState is the push channel lifecycle state.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TokenSource supplies the bearer token attached to the connection
// handshake. The token is read at dial time so a restart after a refresh
// always carries the current credential.
type TokenSource interface {
	AccessToken() string
}

// BackoffConfig shapes the reconnect delay sequence: Base doubles per
// consecutive failure up to Max, optionally jittered to avoid thundering
// herds.
type BackoffConfig struct {
	Base   time.Duration
	Max    time.Duration
	Jitter bool
}

// Options configures a Channel.
type Options struct {
	URL         string
	Dialer      Dialer
	Tokens      TokenSource
	Dispatcher  state.Dispatcher
	Metrics     *metrics.Registry
	Backoff     BackoffConfig
	DialTimeout time.Duration
}

// Channel owns the push connection and the subscription registry. It
// reconnects with backoff after unexpected closes and replays the registry
// after every successful connect; intentional disconnects never reconnect.
type Channel struct {
	url         string
	dialer      Dialer
	tokens      TokenSource
	dispatcher  state.Dispatcher
	metrics     *metrics.Registry
	backoff     BackoffConfig
	dialTimeout time.Duration

	mu       sync.Mutex
	state    ConnectionState
	conn     Conn
	registry map[string]map[ChannelKind]bool
	gen      uint64 // bumped on every user-initiated transition
	attempt  int
	timer    *time.Timer
}

// NewChannel builds a disconnected channel. Connect must be called to
// bring it up.
func NewChannel(opts Options) *Channel {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Backoff.Base <= 0 {
		opts.Backoff.Base = time.Second
	}
	if opts.Backoff.Max <= 0 {
		opts.Backoff.Max = 30 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 15 * time.Second
	}
	return &Channel{
		url:         opts.URL,
		dialer:      opts.Dialer,
		tokens:      opts.Tokens,
		dispatcher:  opts.Dispatcher,
		metrics:     opts.Metrics,
		backoff:     opts.Backoff,
		dialTimeout: opts.DialTimeout,
		state:       StateDisconnected,
		registry:    make(map[string]map[ChannelKind]bool),
	}
}

// State returns the current connection state.
func (c *Channel) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect brings the channel up. Calling it while a connection is live or
// being established is a no-op, as is calling it after Close.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateConnected, StateConnecting, StateReconnecting, StateClosed:
		return
	}
	c.setStateLocked(StateConnecting)
	c.gen++
	go c.dial(c.gen)
}

// Disconnect tears the connection down without scheduling a reconnect.
// The subscription registry survives, so a later Connect resubscribes.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.teardownLocked()
	c.setStateLocked(StateDisconnected)
}

// Restart drops the current connection and dials again immediately with a
// freshly read token. Used after a token refresh. A channel that is
// deliberately down stays down; only a live or recovering connection is
// redialled.
func (c *Channel) Restart() {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected, StateClosed:
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.setStateLocked(StateConnecting)
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	go c.dial(gen)
}

// Close shuts the channel down permanently.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.teardownLocked()
	c.setStateLocked(StateClosed)
}

// teardownLocked cancels any pending reconnect, invalidates in-flight
// dials and read loops, and closes the live connection if any.
func (c *Channel) teardownLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.attempt = 0
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Attach wires the channel to session transitions: a refresh restarts the
// connection with the rotated token, a logout tears it down and clears
// the registry.
func (c *Channel) Attach(m *session.Manager) {
	m.Subscribe(func(ev session.Event) {
		switch ev {
		case session.EventRefreshed:
			c.Restart()
		case session.EventLoggedOut:
			c.Disconnect()
			c.mu.Lock()
			c.registry = make(map[string]map[ChannelKind]bool)
			c.mu.Unlock()
		}
	})
}

// Subscribe registers interest in the given channels for a symbol. The
// merge is idempotent; a control message goes out only when the set for
// the symbol actually grew and the connection is live. With no kinds
// given, all channels are subscribed.
func (c *Channel) Subscribe(symbol string, kinds ...ChannelKind) {
	if len(kinds) == 0 {
		kinds = []ChannelKind{KindTicker, KindOrderbook, KindOrder, KindTrade}
	}
	c.mu.Lock()
	set := c.registry[symbol]
	if set == nil {
		set = make(map[ChannelKind]bool)
		c.registry[symbol] = set
	}
	grew := false
	for _, k := range kinds {
		if !set[k] {
			set[k] = true
			grew = true
		}
	}
	var conn Conn
	var msg []byte
	if grew && c.state == StateConnected && c.conn != nil {
		msg, _ = encodeControl("subscribe", symbol, kindSetSlice(set))
		conn = c.conn
	}
	c.mu.Unlock()

	if conn != nil {
		if err := conn.WriteMessage(msg); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Subscribe control send failed")
		}
	}
}

// Unsubscribe removes the given channels for a symbol, or the whole
// symbol when no kinds are given.
func (c *Channel) Unsubscribe(symbol string, kinds ...ChannelKind) {
	c.mu.Lock()
	set := c.registry[symbol]
	if set == nil {
		c.mu.Unlock()
		return
	}
	var removed []ChannelKind
	if len(kinds) == 0 {
		removed = kindSetSlice(set)
		delete(c.registry, symbol)
	} else {
		for _, k := range kinds {
			if set[k] {
				delete(set, k)
				removed = append(removed, k)
			}
		}
		if len(set) == 0 {
			delete(c.registry, symbol)
		}
	}
	var conn Conn
	var msg []byte
	if len(removed) > 0 && c.state == StateConnected && c.conn != nil {
		msg, _ = encodeControl("unsubscribe", symbol, removed)
		conn = c.conn
	}
	c.mu.Unlock()

	if conn != nil {
		if err := conn.WriteMessage(msg); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Unsubscribe control send failed")
		}
	}
}

// Subscriptions returns a sorted copy of the registry.
func (c *Channel) Subscriptions() map[string][]ChannelKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]ChannelKind, len(c.registry))
	for symbol, set := range c.registry {
		out[symbol] = kindSetSlice(set)
	}
	return out
}

func (c *Channel) dial(gen uint64) {
	header := http.Header{}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	conn, err := c.dialer.Dial(ctx, c.url, header)
	cancel()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		log.Warn().Err(err).Int("attempt", c.attempt+1).Msg("Push channel dial failed")
		c.scheduleReconnectLocked(gen)
		c.mu.Unlock()
		return
	}
	c.conn = conn
	c.attempt = 0
	c.setStateLocked(StateConnected)
	c.metrics.WSConnects.Inc()
	replay := c.replayMessagesLocked()
	c.mu.Unlock()

	log.Info().Str("url", c.url).Msg("Push channel connected")
	for _, msg := range replay {
		if werr := conn.WriteMessage(msg); werr != nil {
			log.Warn().Err(werr).Msg("Subscription replay send failed")
			break
		}
	}
	go c.readLoop(gen, conn)
}

// replayMessagesLocked builds one subscribe control per registered symbol.
func (c *Channel) replayMessagesLocked() [][]byte {
	symbols := make([]string, 0, len(c.registry))
	for symbol := range c.registry {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	msgs := make([][]byte, 0, len(symbols))
	for _, symbol := range symbols {
		msg, err := encodeControl("subscribe", symbol, kindSetSlice(c.registry[symbol]))
		if err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (c *Channel) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			_ = conn.Close()
			c.conn = nil
			log.Warn().Err(err).Msg("Push channel connection lost")
			c.scheduleReconnectLocked(gen)
			c.mu.Unlock()
			return
		}

		action, derr := decodeFrame(data)
		if derr != nil {
			var ef *errFrame
			if errors.As(derr, &ef) {
				c.metrics.WSFrames.WithLabelValues("error").Inc()
				log.Warn().Str("message", ef.message).Msg("Push channel server error frame")
				continue
			}
			c.metrics.WSDroppedFrames.Inc()
			log.Debug().Err(derr).Msg("Dropped push frame")
			continue
		}
		c.metrics.WSFrames.WithLabelValues(action.Type).Inc()
		c.dispatcher.Dispatch(action)
	}
}

// scheduleReconnectLocked arms the backoff timer. The generation stays the
// same across retries within one connect lifetime, so a Disconnect or
// Restart invalidates the pending attempt.
func (c *Channel) scheduleReconnectLocked(gen uint64) {
	c.setStateLocked(StateReconnecting)
	c.metrics.WSReconnects.Inc()
	delay := c.reconnectDelay()
	c.attempt++
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if gen != c.gen || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.setStateLocked(StateConnecting)
		c.mu.Unlock()
		c.dial(gen)
	})
}

func (c *Channel) reconnectDelay() time.Duration {
	delay := c.backoff.Base
	for i := 0; i < c.attempt; i++ {
		delay *= 2
		if delay >= c.backoff.Max {
			delay = c.backoff.Max
			break
		}
	}
	if c.backoff.Jitter && delay > time.Millisecond {
		half := delay / 2
		delay = half + time.Duration(rand.Int63n(int64(half)))
	}
	return delay
}

func (c *Channel) setStateLocked(s ConnectionState) {
	c.state = s
	c.metrics.WSState.Set(float64(s))
}

func kindSetSlice(set map[ChannelKind]bool) []ChannelKind {
	kinds := make([]ChannelKind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
