// Package state implements the single source of truth for client application
// state: one dispatch pipeline, immutable snapshots, per-domain persistence
// with whitelisted fields, and rehydration that isolates corrupt domains.
package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/flowex/flowex-go/internal/metrics"
	"github.com/flowex/flowex-go/internal/storage"
)

// Listener is invoked after every committed state transition. Listeners must
// not mutate state directly; they may dispatch follow-up actions.
type Listener func(AppState)

// Options configures a Store.
type Options struct {
	Storage     storage.Store
	Metrics     *metrics.Registry
	DevMode     bool                    // enables the serializability guard
	Persistence []PersistenceDescriptor // defaults to DefaultPersistence()
}

// Store is the observable state container. All mutation flows through
// Dispatch; actions are applied strictly in the order they are submitted.
type Store struct {
	storage storage.Store
	metrics *metrics.Registry
	devMode bool

	descriptors map[string]PersistenceDescriptor
	persistMu   sync.Mutex
	persistOff  map[string]bool // domains with persistence disabled at runtime
	persistCh   chan persistReq
	persistWG   sync.WaitGroup
	closeOnce   sync.Once

	queueMu     sync.Mutex
	queue       []Action
	dispatching bool

	stateMu sync.RWMutex
	state   AppState

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextListen int

	chain Dispatch
}

type persistReq struct {
	domain string
	blob   []byte // nil means remove the record
}

// New creates a Store with default initial state. Call Rehydrate before the
// first dispatch to restore persisted domains.
func New(opts Options) *Store {
	if opts.Storage == nil {
		opts.Storage = storage.NewMemory()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	descriptors := opts.Persistence
	if descriptors == nil {
		descriptors = DefaultPersistence()
	}

	s := &Store{
		storage:     opts.Storage,
		metrics:     opts.Metrics,
		devMode:     opts.DevMode,
		descriptors: make(map[string]PersistenceDescriptor, len(descriptors)),
		persistOff:  make(map[string]bool),
		persistCh:   make(chan persistReq, 64),
		state:       defaultAppState(),
		listeners:   map[int]Listener{},
	}
	for _, d := range descriptors {
		s.descriptors[d.Domain] = d
	}
	s.chain = s.commit

	s.persistWG.Add(1)
	go s.persistLoop()

	return s
}

// Use appends a middleware to the dispatch pipeline. Must be called before
// the first dispatch; later middlewares observe actions first.
func (s *Store) Use(mw Middleware) {
	s.chain = mw(s.chain)
}

// GetState returns the current immutable snapshot. It never blocks on an
// in-flight dispatch.
func (s *Store) GetState() AppState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = l
	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

// Dispatch submits an action into the pipeline. Actions dispatched while a
// dispatch is in progress (including follow-ups from middleware or
// listeners) are queued and applied in submission order, never interleaved.
func (s *Store) Dispatch(a Action) {
	s.queueMu.Lock()
	s.queue = append(s.queue, a)
	if s.dispatching {
		s.queueMu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		s.guard(next)
		s.chain(next)

		s.queueMu.Lock()
	}
	s.dispatching = false
	s.queueMu.Unlock()
}

// guard is the development-only serializability diagnostic. It flags
// payloads that cannot round-trip through the persistence format; it never
// rejects the action.
func (s *Store) guard(a Action) {
	if !s.devMode || a.Payload == nil {
		return
	}
	if _, err := json.Marshal(a.Payload); err != nil {
		log.Warn().Str("action", a.Type).Err(err).
			Msg("Non-serializable payload dispatched into store")
	}
}

// commit is the tail of the middleware chain: it applies reducers, swaps the
// snapshot, schedules persistence for touched domains, and notifies
// listeners.
func (s *Store) commit(a Action) {
	s.stateMu.Lock()
	prev := s.state
	next := prev
	var touched []string

	if ns, ok := reduceSession(prev.Session, a); ok {
		next.Session = ns
		touched = append(touched, DomainSession)
	}
	if ns, ok := reduceUI(prev.UI, a); ok {
		next.UI = ns
		touched = append(touched, DomainUI)
	}
	if ns, ok := reduceTrading(prev.Trading, a); ok {
		next.Trading = ns
		touched = append(touched, DomainTrading)
	}
	if ns, ok := reduceMarketData(prev.MarketData, a); ok {
		next.MarketData = ns
		touched = append(touched, DomainMarketData)
	}
	if ns, ok := reduceWallet(prev.Wallet, a); ok {
		next.Wallet = ns
		touched = append(touched, DomainWallet)
	}
	if ns, ok := reduceNotifications(prev.Notifications, a); ok {
		next.Notifications = ns
		touched = append(touched, DomainNotifications)
	}

	s.state = next
	s.stateMu.Unlock()

	if len(touched) == 0 {
		return
	}
	for _, domain := range touched {
		s.metrics.Dispatches.WithLabelValues(domain).Inc()
		s.schedulePersist(domain, next)
	}
	s.notify(next)
}

func (s *Store) notify(snapshot AppState) {
	s.listenerMu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenerMu.Unlock()
	for _, l := range ls {
		l(snapshot)
	}
}

// SetDomainPersistence enables or disables durable persistence for one
// domain at runtime. Disabling also removes the existing durable record, so
// a rememberMe=false login leaves no tokens on disk.
func (s *Store) SetDomainPersistence(domain string, enabled bool) {
	s.persistMu.Lock()
	s.persistOff[domain] = !enabled
	s.persistMu.Unlock()
	if !enabled {
		s.persistCh <- persistReq{domain: domain, blob: nil}
	}
}

// Close flushes pending persistence writes and stops the persist worker.
// Safe to call more than once; dispatching after Close is a caller bug.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.persistCh)
	})
	s.persistWG.Wait()
}

func (s *Store) persistLoop() {
	defer s.persistWG.Done()
	ctx := context.Background()
	for req := range s.persistCh {
		var err error
		if req.blob == nil {
			err = s.storage.Remove(ctx, req.domain)
		} else {
			err = s.storage.Set(ctx, req.domain, req.blob)
		}
		if err != nil {
			// Persistence failures are contained: state stays correct in
			// memory and the next successful write supersedes this one.
			s.metrics.PersistErrors.Inc()
			log.Warn().Err(err).Str("domain", req.domain).Msg("Failed to persist domain")
		}
	}
}
