package models

import (
	"github.com/google/uuid"
)

// Tif is the time-in-force of a limit order.
type Tif string

const (
	TifAlo Tif = "Alo" // add liquidity only
	TifIoc Tif = "Ioc"
	TifGtc Tif = "Gtc"
)

// Tpsl selects the trigger direction of a trigger order.
type Tpsl string

const (
	TpslTakeProfit Tpsl = "tp"
	TpslStopLoss   Tpsl = "sl"
)

type LimitOrderType struct {
	Tif Tif `json:"tif"`
}

type TriggerOrderType struct {
	TriggerPx float64 `json:"triggerPx"`
	IsMarket  bool    `json:"isMarket"`
	Tpsl      Tpsl    `json:"tpsl"`
}

// OrderType is a union: exactly one of Limit or Trigger is set.
type OrderType struct {
	Limit   *LimitOrderType   `json:"limit,omitempty"`
	Trigger *TriggerOrderType `json:"trigger,omitempty"`
}

// OrderRequest is the caller-facing order. Cloid is the caller-chosen
// correlation token; the venue-assigned order id is unknown until the
// response arrives.
type OrderRequest struct {
	Coin       string
	IsBuy      bool
	ReduceOnly bool
	LimitPx    float64
	Sz         float64
	Cloid      *uuid.UUID
	OrderType  OrderType
}

// CancelRequest targets a resting order by its venue-assigned id.
type CancelRequest struct {
	Coin string
	Oid  uint64
}

// OrderWire is the compact wire form of an order. Field names follow the
// venue's single-letter schema.
type OrderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	LimitPx    string        `json:"p"`
	Sz         string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	OrderType  OrderTypeWire `json:"t"`
	Cloid      *string       `json:"c,omitempty"`
}

type OrderTypeWire struct {
	Limit   *LimitOrderType       `json:"limit,omitempty"`
	Trigger *TriggerOrderTypeWire `json:"trigger,omitempty"`
}

type TriggerOrderTypeWire struct {
	TriggerPx string `json:"triggerPx"`
	IsMarket  bool   `json:"isMarket"`
	Tpsl      Tpsl   `json:"tpsl"`
}

type CancelWire struct {
	Asset int    `json:"a"`
	Oid   uint64 `json:"o"`
}

// OrderAction is the signed action payload for one or many orders.
type OrderAction struct {
	Type     string      `json:"type"` // always "order"
	Orders   []OrderWire `json:"orders"`
	Grouping string      `json:"grouping"`
}

// CancelAction is the signed action payload for one or many cancels.
type CancelAction struct {
	Type    string       `json:"type"` // always "cancel"
	Cancels []CancelWire `json:"cancels"`
}

// Outcome kinds reported per submitted action.
const (
	OutcomeResting           = "resting"
	OutcomeFilled            = "filled"
	OutcomeError             = "error"
	OutcomeSuccess           = "success"
	OutcomeWaitingForFill    = "waitingForFill"
	OutcomeWaitingForTrigger = "waitingForTrigger"
)

// OrderOutcome is the per-action result correlated back to the caller.
// Outcomes are positional: the i-th outcome answers the i-th submitted
// action. Cloid is echoed from the request when one was supplied.
type OrderOutcome struct {
	Status  string
	Oid     uint64
	TotalSz string
	AvgPx   string
	Err     string
	Cloid   *uuid.UUID
}

// Rejected reports whether the venue rejected this action.
func (o OrderOutcome) Rejected() bool {
	return o.Status == OutcomeError
}
