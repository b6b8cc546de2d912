package state

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// genericFailureMessage is used when a rejected action carries no message.
const genericFailureMessage = "Something went wrong. Please try again."

// dedupeWindow suppresses repeat notifications for the same failure.
const dedupeWindow = 2 * time.Second

// Dispatcher is the follow-up dispatch capability handed to middleware.
type Dispatcher interface {
	Dispatch(Action)
}

// NotificationMiddleware converts rejected asynchronous actions into
// notification entries. The original action always passes through
// unchanged; the entry is appended via a follow-up dispatch.
func NotificationMiddleware(d Dispatcher) Middleware {
	type seen struct {
		message string
		at      time.Time
	}
	var mu sync.Mutex
	last := make(map[string]seen)

	return func(next Dispatch) Dispatch {
		return func(a Action) {
			next(a)

			if !strings.HasSuffix(a.Type, "_rejected") {
				return
			}
			message := genericFailureMessage
			if a.Err != nil && a.Err.Error() != "" {
				message = a.Err.Error()
			}

			now := time.Now()
			mu.Lock()
			if prev, ok := last[a.Type]; ok && prev.message == message && now.Sub(prev.at) < dedupeWindow {
				mu.Unlock()
				return
			}
			last[a.Type] = seen{message: message, at: now}
			mu.Unlock()

			d.Dispatch(Action{
				Type: ActionNotificationAdd,
				Payload: NotificationEntry{
					ID:        uuid.NewString(),
					Kind:      NotifyError,
					Title:     failureTitle(a.Type),
					Message:   message,
					CreatedAt: now,
				},
			})
		}
	}
}

// failureTitle derives a readable title from an action type, e.g.
// "session/login_rejected" becomes "Login failed".
func failureTitle(actionType string) string {
	op := actionType
	if i := strings.LastIndex(op, "/"); i >= 0 {
		op = op[i+1:]
	}
	op = strings.TrimSuffix(op, "rejected")
	op = strings.TrimSuffix(op, "_")
	op = strings.ReplaceAll(op, "_", " ")
	if op == "" {
		return "Operation failed"
	}
	return strings.ToUpper(op[:1]) + op[1:] + " failed"
}
