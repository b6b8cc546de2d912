package state

import "time"

// User is the authenticated user profile.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Ticker is a market ticker snapshot. Prices are string-encoded decimals as
// sent by the server; the client never does arithmetic on them.
type Ticker struct {
	Symbol        string    `json:"symbol"`
	Price         string    `json:"price"`
	Change        string    `json:"change"`
	ChangePercent string    `json:"changePercent"`
	High          string    `json:"high"`
	Low           string    `json:"low"`
	Volume        string    `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// OrderBookLevel is a single price level.
type OrderBookLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// OrderBook is a depth snapshot for one symbol.
type OrderBook struct {
	Symbol    string           `json:"symbol"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
	Timestamp time.Time        `json:"timestamp"`
}

// Order is the server-reported state of one of the user's orders.
type Order struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"` // buy | sell
	Type           string    `json:"type"` // limit | market
	Price          string    `json:"price,omitempty"`
	Quantity       string    `json:"quantity"`
	FilledQuantity string    `json:"filledQuantity"`
	Status         string    `json:"status"` // pending | partially_filled | filled | cancelled | rejected
	CreatedAt      time.Time `json:"createdAt"`
}

// Trade is a public trade execution.
type Trade struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Price     string    `json:"price"`
	Quantity  string    `json:"quantity"`
	Side      string    `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

// Balance is a wallet balance for one currency.
type Balance struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}

// NotificationKind classifies a notification entry.
type NotificationKind string

const (
	NotifyError   NotificationKind = "error"
	NotifyWarning NotificationKind = "warning"
	NotifyInfo    NotificationKind = "info"
	NotifySuccess NotificationKind = "success"
)

// NotificationEntry is a user-visible notification, created by the
// notification middleware and dismissed by the notification center.
type NotificationEntry struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
}

// SessionStatus is the session lifecycle state.
type SessionStatus string

const (
	StatusAnonymous       SessionStatus = "anonymous"
	StatusAuthenticating  SessionStatus = "authenticating"
	StatusAuthenticated   SessionStatus = "authenticated"
	StatusRefreshing      SessionStatus = "refreshing"
	StatusUnauthenticated SessionStatus = "unauthenticated"
)
