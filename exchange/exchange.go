package exchange

import (
	"context"
	"encoding/json"
	"fmt"

	"hyperflow/logger"
	"hyperflow/models"
	"hyperflow/signer"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxPriceDecimals is the venue's price precision limit; prices with more
// decimals are rejected at the matching engine.
const maxPriceDecimals = 6

// Transport submits one signed action envelope.
type Transport interface {
	Exchange(ctx context.Context, action json.RawMessage, sig signer.Signature, nonce uint64) (*models.ExchangeResponseStatus, error)
}

// InfoClient serves read-only order queries.
type InfoClient interface {
	Info(ctx context.Context, request any, out any) error
}

// AssetResolver maps symbols to wire asset indices and size precision.
type AssetResolver interface {
	AssetIndex(coin string) (int, error)
	SzDecimals(coin string) (int, bool)
}

// Exchange builds, signs and submits order and cancel actions, and maps the
// venue's structured response back to per-action outcomes. It never retries
// a submission: partial fills and rejections are terminal per-call outcomes
// and resubmission (with a fresh cloid) is the caller's decision.
type Exchange struct {
	cred      *signer.Credential
	transport Transport
	info      InfoClient
	resolver  AssetResolver
	log       *logger.Log
}

func New(cred *signer.Credential, transport Transport, info InfoClient, resolver AssetResolver) *Exchange {
	return &Exchange{
		cred:      cred,
		transport: transport,
		info:      info,
		resolver:  resolver,
		log:       logger.GetLogger(),
	}
}

// Order submits a single order.
func (e *Exchange) Order(ctx context.Context, req models.OrderRequest) (models.OrderOutcome, error) {
	outcomes, err := e.BulkOrders(ctx, []models.OrderRequest{req})
	if err != nil {
		return models.OrderOutcome{}, err
	}
	return outcomes[0], nil
}

// BulkOrders submits many orders as one signed action. The venue sees the
// whole batch atomically relative to other submissions, and the returned
// outcomes are positional: outcome i answers request i.
func (e *Exchange) BulkOrders(ctx context.Context, reqs []models.OrderRequest) ([]models.OrderOutcome, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no orders to submit")
	}

	wires := make([]models.OrderWire, len(reqs))
	for i, req := range reqs {
		wire, err := e.orderWire(req)
		if err != nil {
			return nil, err
		}
		wires[i] = wire
	}

	action := models.OrderAction{Type: "order", Orders: wires, Grouping: "na"}
	statuses, err := e.submit(ctx, action, len(reqs))
	if err != nil {
		return nil, err
	}
	logger.IncrementOrdersSubmitted(len(reqs))

	outcomes := make([]models.OrderOutcome, len(statuses))
	for i, status := range statuses {
		outcomes[i] = outcomeFrom(status, reqs[i].Cloid)
		switch outcomes[i].Status {
		case models.OutcomeResting:
			logger.IncrementOrdersResting(1)
		case models.OutcomeFilled:
			logger.IncrementOrdersFilled(1)
		case models.OutcomeError:
			logger.IncrementOrdersRejected(1)
		}
	}

	e.log.WithComponent("exchange").WithFields(logger.Fields{
		"orders": len(reqs),
	}).Debug("order batch submitted")
	return outcomes, nil
}

// Cancel cancels a single resting order by venue order id.
func (e *Exchange) Cancel(ctx context.Context, req models.CancelRequest) (models.OrderOutcome, error) {
	outcomes, err := e.BulkCancels(ctx, []models.CancelRequest{req})
	if err != nil {
		return models.OrderOutcome{}, err
	}
	return outcomes[0], nil
}

// BulkCancels cancels many orders as one signed action. Cancelling an order
// that is already filled (or unknown) surfaces as an error outcome from the
// venue, not as a transport failure.
func (e *Exchange) BulkCancels(ctx context.Context, reqs []models.CancelRequest) ([]models.OrderOutcome, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no cancels to submit")
	}

	wires := make([]models.CancelWire, len(reqs))
	for i, req := range reqs {
		index, err := e.resolver.AssetIndex(req.Coin)
		if err != nil {
			return nil, err
		}
		wires[i] = models.CancelWire{Asset: index, Oid: req.Oid}
	}

	action := models.CancelAction{Type: "cancel", Cancels: wires}
	statuses, err := e.submit(ctx, action, len(reqs))
	if err != nil {
		return nil, err
	}
	logger.IncrementCancelsSubmitted(len(reqs))

	outcomes := make([]models.OrderOutcome, len(statuses))
	for i, status := range statuses {
		outcomes[i] = outcomeFrom(status, nil)
		if outcomes[i].Rejected() {
			logger.IncrementOrdersRejected(1)
		}
	}
	return outcomes, nil
}

// QueryOrder fetches the current state of one order by venue order id.
func (e *Exchange) QueryOrder(ctx context.Context, user string, oid uint64) (*models.OrderQueryResult, error) {
	request := struct {
		Type string `json:"type"`
		User string `json:"user"`
		Oid  uint64 `json:"oid"`
	}{Type: "orderStatus", User: user, Oid: oid}

	var result models.OrderQueryResult
	if err := e.info.Info(ctx, request, &result); err != nil {
		return nil, err
	}
	logger.IncrementInfoRequest()
	return &result, nil
}

// OpenOrders lists the account's currently resting orders.
func (e *Exchange) OpenOrders(ctx context.Context, user string) ([]models.OrderState, error) {
	request := struct {
		Type string `json:"type"`
		User string `json:"user"`
	}{Type: "openOrders", User: user}

	var orders []models.OrderState
	if err := e.info.Info(ctx, request, &orders); err != nil {
		return nil, err
	}
	logger.IncrementInfoRequest()
	return orders, nil
}

// submit signs and sends one action, expecting one status per sub-action.
func (e *Exchange) submit(ctx context.Context, action any, want int) ([]models.ExchangeDataStatus, error) {
	raw, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action: %w", err)
	}

	nonce := e.cred.Nonce()
	sig, err := e.cred.Sign(raw, nonce)
	if err != nil {
		return nil, err
	}

	resp, err := e.transport.Exchange(ctx, raw, sig, nonce)
	if err != nil {
		return nil, err
	}
	if !resp.Ok() {
		return nil, &models.APIError{Message: resp.ErrMessage()}
	}

	data, err := resp.Data()
	if err != nil {
		return nil, err
	}
	if data.Data == nil {
		return nil, fmt.Errorf("exchange response carries no statuses")
	}
	statuses := data.Data.Statuses
	if len(statuses) != want {
		return nil, fmt.Errorf("expected %d statuses, venue returned %d", want, len(statuses))
	}
	return statuses, nil
}

// orderWire resolves the asset index and canonicalizes numeric fields into
// the venue's trimmed decimal-string format.
func (e *Exchange) orderWire(req models.OrderRequest) (models.OrderWire, error) {
	index, err := e.resolver.AssetIndex(req.Coin)
	if err != nil {
		return models.OrderWire{}, err
	}

	wire := models.OrderWire{
		Asset:      index,
		IsBuy:      req.IsBuy,
		LimitPx:    priceWire(req.LimitPx),
		Sz:         sizeWire(req.Sz, req.Coin, e.resolver),
		ReduceOnly: req.ReduceOnly,
		OrderType:  orderTypeWire(req.OrderType),
	}
	if req.Cloid != nil {
		cloid := cloidWire(*req.Cloid)
		wire.Cloid = &cloid
	}
	return wire, nil
}

func orderTypeWire(ot models.OrderType) models.OrderTypeWire {
	wire := models.OrderTypeWire{Limit: ot.Limit}
	if ot.Trigger != nil {
		wire.Trigger = &models.TriggerOrderTypeWire{
			TriggerPx: priceWire(ot.Trigger.TriggerPx),
			IsMarket:  ot.Trigger.IsMarket,
			Tpsl:      ot.Trigger.Tpsl,
		}
	}
	return wire
}

// priceWire renders a price without trailing zeros. The venue rejects
// over-precise prices, so anything beyond the precision limit is rounded.
func priceWire(px float64) string {
	return decimal.NewFromFloat(px).Round(maxPriceDecimals).String()
}

// sizeWire rounds a size to the asset's size precision when known.
func sizeWire(sz float64, coin string, resolver AssetResolver) string {
	d := decimal.NewFromFloat(sz)
	if dec, ok := resolver.SzDecimals(coin); ok {
		d = d.Round(int32(dec))
	}
	return d.String()
}

// cloidWire renders a client order id as the venue's 128-bit hex format.
func cloidWire(id uuid.UUID) string {
	return "0x" + fmt.Sprintf("%x", id[:])
}

func outcomeFrom(status models.ExchangeDataStatus, cloid *uuid.UUID) models.OrderOutcome {
	outcome := models.OrderOutcome{Status: status.Kind, Cloid: cloid}
	switch status.Kind {
	case models.OutcomeResting:
		outcome.Oid = status.Resting.Oid
	case models.OutcomeFilled:
		outcome.Oid = status.Filled.Oid
		outcome.TotalSz = status.Filled.TotalSz
		outcome.AvgPx = status.Filled.AvgPx
	case models.OutcomeError:
		outcome.Err = status.Error
	}
	return outcome
}
