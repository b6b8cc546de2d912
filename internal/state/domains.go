package state

// Domain identifiers. Each one owns an isolated slice of AppState and, when
// persisted, a single durable record keyed by this name.
const (
	DomainSession       = "session"
	DomainUI            = "ui"
	DomainTrading       = "trading"
	DomainMarketData    = "marketdata"
	DomainWallet        = "wallet"
	DomainNotifications = "notifications"
)

const (
	maxRecentTrades  = 100
	maxNotifications = 200
)

// SessionState holds credentials and identity. AccessToken and RefreshToken
// are always both present or both absent.
type SessionState struct {
	AccessToken  string        `json:"accessToken,omitempty"`
	RefreshToken string        `json:"refreshToken,omitempty"`
	User         *User         `json:"user,omitempty"`
	Permissions  []string      `json:"permissions,omitempty"`
	Roles        []string      `json:"roles,omitempty"`
	Status       SessionStatus `json:"status"`
	LastError    string        `json:"lastError,omitempty"`
}

// UIState holds presentation preferences.
type UIState struct {
	ThemeMode        string `json:"themeMode"`
	SidebarCollapsed bool   `json:"sidebarCollapsed"`
}

// TradingState tracks the user's open orders as reported by the server.
type TradingState struct {
	OpenOrders map[string]Order `json:"openOrders"`
}

// MarketDataState holds the latest market snapshots per symbol.
type MarketDataState struct {
	Tickers      map[string]Ticker    `json:"tickers"`
	OrderBooks   map[string]OrderBook `json:"orderBooks"`
	RecentTrades map[string][]Trade   `json:"recentTrades"`
}

// WalletState holds balances per currency.
type WalletState struct {
	Balances map[string]Balance `json:"balances"`
}

// NotificationState is the ordered notification feed, newest last.
type NotificationState struct {
	Entries []NotificationEntry `json:"entries"`
}

// AppState is the complete immutable application state snapshot.
type AppState struct {
	Session       SessionState
	UI            UIState
	Trading       TradingState
	MarketData    MarketDataState
	Wallet        WalletState
	Notifications NotificationState
}

func defaultAppState() AppState {
	return AppState{
		Session: SessionState{Status: StatusAnonymous},
		UI:      UIState{ThemeMode: "dark"},
		Trading: TradingState{OpenOrders: map[string]Order{}},
		MarketData: MarketDataState{
			Tickers:      map[string]Ticker{},
			OrderBooks:   map[string]OrderBook{},
			RecentTrades: map[string][]Trade{},
		},
		Wallet:        WalletState{Balances: map[string]Balance{}},
		Notifications: NotificationState{},
	}
}

func reduceSession(s SessionState, a Action) (SessionState, bool) {
	switch a.Type {
	case ActionLoginPending:
		return SessionState{Status: StatusAuthenticating}, true

	case ActionLoginFulfilled:
		r, ok := a.Payload.(LoginResult)
		if !ok {
			return s, false
		}
		return SessionState{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			User:         r.User,
			Status:       StatusAuthenticated,
		}, true

	case ActionLoginRejected:
		next := SessionState{Status: StatusUnauthenticated}
		if a.Err != nil {
			next.LastError = a.Err.Error()
		}
		return next, true

	case ActionLogout:
		return SessionState{Status: StatusUnauthenticated}, true

	case ActionRefreshRejected:
		// A failed refresh is unrecoverable without re-authentication, so it
		// carries full logout semantics.
		next := SessionState{Status: StatusUnauthenticated}
		if a.Err != nil {
			next.LastError = a.Err.Error()
		}
		return next, true

	case ActionRefreshPending:
		s.Status = StatusRefreshing
		return s, true

	case ActionRefreshFulfilled:
		r, ok := a.Payload.(RefreshResult)
		if !ok {
			return s, false
		}
		s.AccessToken = r.AccessToken
		if r.RefreshToken != "" {
			s.RefreshToken = r.RefreshToken
		}
		s.Status = StatusAuthenticated
		s.LastError = ""
		return s, true

	case ActionMePending:
		s.Status = StatusAuthenticating
		return s, true

	case ActionMeFulfilled:
		id, ok := a.Payload.(Identity)
		if !ok {
			return s, false
		}
		s.User = id.User
		s.Permissions = append([]string(nil), id.Permissions...)
		s.Roles = append([]string(nil), id.Roles...)
		s.Status = StatusAuthenticated
		s.LastError = ""
		return s, true

	case ActionMeRejected:
		// Persisted tokens turned out stale; clear them entirely.
		next := SessionState{Status: StatusUnauthenticated}
		if a.Err != nil {
			next.LastError = a.Err.Error()
		}
		return next, true
	}
	return s, false
}

func reduceUI(s UIState, a Action) (UIState, bool) {
	switch a.Type {
	case ActionSetTheme:
		mode, ok := a.Payload.(string)
		if !ok {
			return s, false
		}
		s.ThemeMode = mode
		return s, true
	case ActionToggleSidebar:
		s.SidebarCollapsed = !s.SidebarCollapsed
		return s, true
	}
	return s, false
}

func reduceTrading(s TradingState, a Action) (TradingState, bool) {
	if a.Type != ActionOrderUpdate {
		return s, false
	}
	order, ok := a.Payload.(Order)
	if !ok {
		return s, false
	}
	next := TradingState{OpenOrders: make(map[string]Order, len(s.OpenOrders)+1)}
	for id, o := range s.OpenOrders {
		next.OpenOrders[id] = o
	}
	switch order.Status {
	case "filled", "cancelled", "rejected":
		delete(next.OpenOrders, order.ID)
	default:
		next.OpenOrders[order.ID] = order
	}
	return next, true
}

func reduceMarketData(s MarketDataState, a Action) (MarketDataState, bool) {
	switch a.Type {
	case ActionTickerUpdate:
		t, ok := a.Payload.(Ticker)
		if !ok {
			return s, false
		}
		next := s
		next.Tickers = make(map[string]Ticker, len(s.Tickers)+1)
		for k, v := range s.Tickers {
			next.Tickers[k] = v
		}
		next.Tickers[t.Symbol] = t
		return next, true

	case ActionOrderBookUpdate:
		ob, ok := a.Payload.(OrderBook)
		if !ok {
			return s, false
		}
		next := s
		next.OrderBooks = make(map[string]OrderBook, len(s.OrderBooks)+1)
		for k, v := range s.OrderBooks {
			next.OrderBooks[k] = v
		}
		next.OrderBooks[ob.Symbol] = ob
		return next, true

	case ActionTradeUpdate:
		t, ok := a.Payload.(Trade)
		if !ok {
			return s, false
		}
		next := s
		next.RecentTrades = make(map[string][]Trade, len(s.RecentTrades)+1)
		for k, v := range s.RecentTrades {
			next.RecentTrades[k] = v
		}
		trades := append([]Trade{t}, next.RecentTrades[t.Symbol]...)
		if len(trades) > maxRecentTrades {
			trades = trades[:maxRecentTrades]
		}
		next.RecentTrades[t.Symbol] = trades
		return next, true
	}
	return s, false
}

func reduceWallet(s WalletState, a Action) (WalletState, bool) {
	if a.Type != ActionBalanceUpdate {
		return s, false
	}
	b, ok := a.Payload.(Balance)
	if !ok {
		return s, false
	}
	next := WalletState{Balances: make(map[string]Balance, len(s.Balances)+1)}
	for k, v := range s.Balances {
		next.Balances[k] = v
	}
	next.Balances[b.Currency] = b
	return next, true
}

func reduceNotifications(s NotificationState, a Action) (NotificationState, bool) {
	switch a.Type {
	case ActionNotificationAdd:
		entry, ok := a.Payload.(NotificationEntry)
		if !ok {
			return s, false
		}
		entries := append(append([]NotificationEntry(nil), s.Entries...), entry)
		if len(entries) > maxNotifications {
			entries = entries[len(entries)-maxNotifications:]
		}
		return NotificationState{Entries: entries}, true

	case ActionNotificationDismiss:
		id, ok := a.Payload.(string)
		if !ok {
			return s, false
		}
		entries := make([]NotificationEntry, 0, len(s.Entries))
		for _, e := range s.Entries {
			if e.ID != id {
				entries = append(entries, e)
			}
		}
		return NotificationState{Entries: entries}, true
	}
	return s, false
}
