package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Subscription is a topic descriptor on the streaming connection. Type is
// the venue's subscription type; User and Coin scope account and market
// topics respectively.
type Subscription struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Coin string `json:"coin,omitempty"`
}

// Topic constructors for the subscription types the client consumes.

// OrderUpdatesSubscription streams order lifecycle events for an account.
func OrderUpdatesSubscription(user string) Subscription {
	return Subscription{Type: "orderUpdates", User: strings.ToLower(user)}
}

// WebData2Subscription streams the aggregated account-state snapshot.
func WebData2Subscription(user string) Subscription {
	return Subscription{Type: "webData2", User: strings.ToLower(user)}
}

// AllMidsSubscription streams mid prices for every traded asset.
func AllMidsSubscription() Subscription {
	return Subscription{Type: "allMids"}
}

// TradesSubscription streams public trades for one coin.
func TradesSubscription(coin string) Subscription {
	return Subscription{Type: "trades", Coin: coin}
}

// L2BookSubscription streams order book snapshots for one coin.
func L2BookSubscription(coin string) Subscription {
	return Subscription{Type: "l2Book", Coin: coin}
}

// Channel returns the discriminant carried by inbound frames of this topic.
func (s Subscription) Channel() string {
	return s.Type
}

// Key is the canonical registry identity of the topic descriptor.
func (s Subscription) Key() string {
	return fmt.Sprintf("%s|%s|%s", s.Type, strings.ToLower(s.User), s.Coin)
}

// WsCommand is an outbound control frame.
type WsCommand struct {
	Method       string        `json:"method"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// WsMessage is one inbound frame: a channel discriminant plus payload.
// Subscribers receive a value copy per delivery.
type WsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// WsOrder is one order lifecycle event from the orderUpdates channel.
type WsOrder struct {
	Order           OrderState `json:"order"`
	Status          string     `json:"status"`
	StatusTimestamp int64      `json:"statusTimestamp"`
}

// AllMids is the payload of the allMids channel.
type AllMids struct {
	Mids map[string]string `json:"mids"`
}

// WsWebData2 is the aggregated account-state payload. The clearinghouse
// state is kept raw; consumers decode the parts they need.
type WsWebData2 struct {
	User               string          `json:"user"`
	ClearinghouseState json.RawMessage `json:"clearinghouseState"`
}
