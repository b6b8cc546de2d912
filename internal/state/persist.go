package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// PersistenceDescriptor declares which fields of a domain are written to
// durable storage. Fields outside the whitelist live only in memory for the
// process lifetime.
type PersistenceDescriptor struct {
	Domain    string
	Whitelist []string // JSON field names
}

// DefaultPersistence returns the standard persisted domains: session tokens
// and profile, and UI preferences. Everything else is memory-only.
func DefaultPersistence() []PersistenceDescriptor {
	return []PersistenceDescriptor{
		{Domain: DomainSession, Whitelist: []string{"accessToken", "refreshToken", "user"}},
		{Domain: DomainUI, Whitelist: []string{"themeMode", "sidebarCollapsed"}},
	}
}

// Rehydrate restores persisted domains from durable storage. A corrupt or
// unreadable record makes only that domain fall back to its default initial
// state; other domains are unaffected. Call before the first dispatch.
func (s *Store) Rehydrate(ctx context.Context) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	for domain, desc := range s.descriptors {
		blob, ok, err := s.storage.Get(ctx, domain)
		if err != nil {
			s.metrics.RehydrateFallbacks.WithLabelValues(domain).Inc()
			log.Warn().Err(err).Str("domain", domain).
				Msg("Storage unavailable, using default state for domain")
			continue
		}
		if !ok {
			continue // first run
		}
		if err := s.rehydrateDomain(domain, desc, blob); err != nil {
			s.metrics.RehydrateFallbacks.WithLabelValues(domain).Inc()
			log.Warn().Err(err).Str("domain", domain).
				Msg("Corrupt persisted record, using default state for domain")
		}
	}
}

func (s *Store) rehydrateDomain(domain string, desc PersistenceDescriptor, blob []byte) error {
	if err := validateRecord(blob, desc.Whitelist); err != nil {
		return err
	}

	switch domain {
	case DomainSession:
		v := defaultAppState().Session
		if err := json.Unmarshal(blob, &v); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		// Tokens are a pair: a record holding exactly one is stale and both
		// are dropped rather than rehydrating a half-session.
		if (v.AccessToken == "") != (v.RefreshToken == "") {
			log.Warn().Str("domain", domain).Msg("Persisted token pair incomplete, clearing both")
			v.AccessToken = ""
			v.RefreshToken = ""
		}
		s.state.Session = v
	case DomainUI:
		v := defaultAppState().UI
		if err := json.Unmarshal(blob, &v); err != nil {
			return fmt.Errorf("decode ui: %w", err)
		}
		s.state.UI = v
	case DomainTrading:
		v := defaultAppState().Trading
		if err := json.Unmarshal(blob, &v); err != nil {
			return fmt.Errorf("decode trading: %w", err)
		}
		s.state.Trading = v
	case DomainMarketData:
		v := defaultAppState().MarketData
		if err := json.Unmarshal(blob, &v); err != nil {
			return fmt.Errorf("decode marketdata: %w", err)
		}
		s.state.MarketData = v
	case DomainWallet:
		v := defaultAppState().Wallet
		if err := json.Unmarshal(blob, &v); err != nil {
			return fmt.Errorf("decode wallet: %w", err)
		}
		s.state.Wallet = v
	case DomainNotifications:
		v := defaultAppState().Notifications
		if err := json.Unmarshal(blob, &v); err != nil {
			return fmt.Errorf("decode notifications: %w", err)
		}
		s.state.Notifications = v
	default:
		return fmt.Errorf("unknown domain %q", domain)
	}
	return nil
}

// validateRecord checks that the record is a JSON object whose keys are a
// subset of the expected whitelisted shape.
func validateRecord(blob []byte, whitelist []string) error {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(blob, &record); err != nil {
		return fmt.Errorf("malformed record: %w", err)
	}
	allowed := make(map[string]bool, len(whitelist))
	for _, f := range whitelist {
		allowed[f] = true
	}
	for key := range record {
		if !allowed[key] {
			return fmt.Errorf("unexpected field %q in persisted record", key)
		}
	}
	return nil
}

// schedulePersist projects the touched domain through its whitelist and
// hands the blob to the persist worker. Runs on the dispatch path, so the
// projection is computed synchronously to preserve write ordering.
func (s *Store) schedulePersist(domain string, snap AppState) {
	desc, ok := s.descriptors[domain]
	if !ok {
		return
	}
	s.persistMu.Lock()
	off := s.persistOff[domain]
	s.persistMu.Unlock()
	if off {
		return
	}

	blob, err := projectWhitelist(domainValue(snap, domain), desc.Whitelist)
	if err != nil {
		s.metrics.PersistErrors.Inc()
		log.Warn().Err(err).Str("domain", domain).Msg("Failed to project domain for persistence")
		return
	}
	s.persistCh <- persistReq{domain: domain, blob: blob}
}

func domainValue(snap AppState, domain string) any {
	switch domain {
	case DomainSession:
		return snap.Session
	case DomainUI:
		return snap.UI
	case DomainTrading:
		return snap.Trading
	case DomainMarketData:
		return snap.MarketData
	case DomainWallet:
		return snap.Wallet
	case DomainNotifications:
		return snap.Notifications
	}
	return nil
}

func projectWhitelist(v any, whitelist []string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var full map[string]json.RawMessage
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(whitelist))
	for _, f := range whitelist {
		if val, ok := full[f]; ok {
			out[f] = val
		}
	}
	return json.Marshal(out)
}
