package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ExchangeResponseStatus is the venue's tagged top-level exchange response:
// status "ok" with a structured response, or status "err" with a message.
type ExchangeResponseStatus struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// Ok reports whether the venue accepted the action envelope.
func (r *ExchangeResponseStatus) Ok() bool {
	return r.Status == "ok"
}

// ErrMessage returns the venue rejection message for an "err" response.
func (r *ExchangeResponseStatus) ErrMessage() string {
	if r.Ok() {
		return ""
	}
	var msg string
	if err := json.Unmarshal(r.Response, &msg); err != nil {
		return string(r.Response)
	}
	return msg
}

// Data decodes the structured payload of an "ok" response.
func (r *ExchangeResponseStatus) Data() (*ExchangeResponse, error) {
	if !r.Ok() {
		return nil, fmt.Errorf("exchange response is not ok: %s", r.ErrMessage())
	}
	var resp ExchangeResponse
	if err := json.Unmarshal(r.Response, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode exchange response: %w", err)
	}
	return &resp, nil
}

type ExchangeResponse struct {
	Type string                `json:"type"`
	Data *ExchangeDataResponse `json:"data,omitempty"`
}

type ExchangeDataResponse struct {
	Statuses []ExchangeDataStatus `json:"statuses"`
}

// RestingOrder is an order accepted onto the book but not yet fully matched.
type RestingOrder struct {
	Oid uint64 `json:"oid"`
}

// FilledOrder reports an immediate (partial or full) match.
type FilledOrder struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     uint64 `json:"oid"`
}

// ExchangeDataStatus is the per-action outcome union. On the wire it is
// either a bare string ("success", "waitingForFill", "waitingForTrigger")
// or an object with exactly one of the resting/filled/error keys.
type ExchangeDataStatus struct {
	Kind    string
	Resting *RestingOrder
	Filled  *FilledOrder
	Error   string
}

func (s *ExchangeDataStatus) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return fmt.Errorf("empty status payload")
	}

	if trimmed[0] == '"' {
		var kind string
		if err := json.Unmarshal(data, &kind); err != nil {
			return err
		}
		s.Kind = kind
		return nil
	}

	var obj struct {
		Resting *RestingOrder `json:"resting"`
		Filled  *FilledOrder  `json:"filled"`
		Error   *string       `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("failed to decode status payload: %w", err)
	}
	switch {
	case obj.Resting != nil:
		s.Kind = OutcomeResting
		s.Resting = obj.Resting
	case obj.Filled != nil:
		s.Kind = OutcomeFilled
		s.Filled = obj.Filled
	case obj.Error != nil:
		s.Kind = OutcomeError
		s.Error = *obj.Error
	default:
		return fmt.Errorf("status payload carries no known variant")
	}
	return nil
}

// OrderQueryResult is the read-only order state returned by the venue's
// order status query.
type OrderQueryResult struct {
	Status string          `json:"status"`
	Order  *OrderStateWrap `json:"order,omitempty"`
}

type OrderStateWrap struct {
	Order           OrderState `json:"order"`
	Status          string     `json:"status"`
	StatusTimestamp int64      `json:"statusTimestamp"`
}

// OrderState mirrors the venue's order record.
type OrderState struct {
	Coin      string `json:"coin"`
	Side      string `json:"side"`
	LimitPx   string `json:"limitPx"`
	Sz        string `json:"sz"`
	Oid       uint64 `json:"oid"`
	Timestamp int64  `json:"timestamp"`
	OrigSz    string `json:"origSz"`
	Cloid     string `json:"cloid,omitempty"`
}
