package state

// Action is the single unit of mutation flowing through the store pipeline.
// Rejected asynchronous operations carry their failure in Err and use a
// "_rejected"-suffixed type so middleware can recognize them.
type Action struct {
	Type    string
	Payload any
	Err     error
}

// Dispatch submits an action into the store pipeline.
type Dispatch func(Action)

// Middleware wraps the dispatch pipeline. It observes every action and may
// dispatch follow-ups, but must pass the original action through unchanged.
type Middleware func(next Dispatch) Dispatch

// Session actions. The session manager is the only producer.
const (
	ActionLoginPending     = "session/login_pending"
	ActionLoginFulfilled   = "session/login_fulfilled"
	ActionLoginRejected    = "session/login_rejected"
	ActionLogout           = "session/logout"
	ActionRefreshPending   = "session/refresh_pending"
	ActionRefreshFulfilled = "session/refresh_fulfilled"
	ActionRefreshRejected  = "session/refresh_rejected"
	ActionMePending        = "session/me_pending"
	ActionMeFulfilled      = "session/me_fulfilled"
	ActionMeRejected       = "session/me_rejected"
)

// UI actions.
const (
	ActionSetTheme      = "ui/set_theme"
	ActionToggleSidebar = "ui/toggle_sidebar"
)

// Market data and trading actions, produced by the realtime channel.
const (
	ActionTickerUpdate    = "marketdata/ticker_update"
	ActionOrderBookUpdate = "marketdata/orderbook_update"
	ActionTradeUpdate     = "marketdata/trade_update"
	ActionOrderUpdate     = "trading/order_update"
	ActionBalanceUpdate   = "wallet/balance_update"
)

// Notification actions, produced by the notification middleware and the
// notification center.
const (
	ActionNotificationAdd     = "notifications/add"
	ActionNotificationDismiss = "notifications/dismiss"
)

// LoginResult is the payload of ActionLoginFulfilled.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *User
	RememberMe   bool
}

// RefreshResult is the payload of ActionRefreshFulfilled. An empty
// RefreshToken keeps the previous one (no rotation).
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// Identity is the payload of ActionMeFulfilled.
type Identity struct {
	User        *User
	Permissions []string
	Roles       []string
}
