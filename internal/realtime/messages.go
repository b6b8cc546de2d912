package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/flowex/flowex-go/internal/state"
)

// ChannelKind identifies one stream of updates for a symbol.
type ChannelKind string

const (
	KindTicker    ChannelKind = "ticker"
	KindOrderbook ChannelKind = "orderbook"
	KindOrder     ChannelKind = "order"
	KindTrade     ChannelKind = "trade"
)

// frame is the tagged wire envelope for every push message.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// controlMessage is the client→server subscription control message.
type controlMessage struct {
	Type     string   `json:"type"` // subscribe | unsubscribe
	Symbol   string   `json:"symbol"`
	Channels []string `json:"channels,omitempty"`
}

// errFrame marks a server-sent error frame: logged by the caller, never a
// reason to tear the connection down.
type errFrame struct {
	message string
}

func (e *errFrame) Error() string {
	return e.message
}

// decodeFrame maps an inbound frame onto its store action. Every
// discriminant maps one-to-one; an unrecognized discriminant or malformed
// payload yields an error and the frame is dropped.
func decodeFrame(data []byte) (state.Action, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return state.Action{}, fmt.Errorf("malformed frame: %w", err)
	}

	switch f.Type {
	case "ticker_update":
		var t state.Ticker
		if err := json.Unmarshal(f.Data, &t); err != nil {
			return state.Action{}, fmt.Errorf("malformed ticker_update: %w", err)
		}
		return state.Action{Type: state.ActionTickerUpdate, Payload: t}, nil

	case "orderbook_update":
		var ob state.OrderBook
		if err := json.Unmarshal(f.Data, &ob); err != nil {
			return state.Action{}, fmt.Errorf("malformed orderbook_update: %w", err)
		}
		return state.Action{Type: state.ActionOrderBookUpdate, Payload: ob}, nil

	case "order_update":
		var o state.Order
		if err := json.Unmarshal(f.Data, &o); err != nil {
			return state.Action{}, fmt.Errorf("malformed order_update: %w", err)
		}
		return state.Action{Type: state.ActionOrderUpdate, Payload: o}, nil

	case "trade_update":
		var tr state.Trade
		if err := json.Unmarshal(f.Data, &tr); err != nil {
			return state.Action{}, fmt.Errorf("malformed trade_update: %w", err)
		}
		return state.Action{Type: state.ActionTradeUpdate, Payload: tr}, nil

	case "balance_update":
		var b state.Balance
		if err := json.Unmarshal(f.Data, &b); err != nil {
			return state.Action{}, fmt.Errorf("malformed balance_update: %w", err)
		}
		return state.Action{Type: state.ActionBalanceUpdate, Payload: b}, nil

	case "error":
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(f.Data, &body)
		return state.Action{}, &errFrame{message: body.Message}

	default:
		return state.Action{}, fmt.Errorf("unrecognized frame type %q", f.Type)
	}
}

func encodeControl(msgType, symbol string, kinds []ChannelKind) ([]byte, error) {
	channels := make([]string, 0, len(kinds))
	for _, k := range kinds {
		channels = append(channels, string(k))
	}
	return json.Marshal(controlMessage{Type: msgType, Symbol: symbol, Channels: channels})
}
