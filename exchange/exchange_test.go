package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"hyperflow/models"
	"hyperflow/signer"

	"github.com/google/uuid"
)

const testKey = "4eaab9c7f0230b232abeb23701b927c7190e4b424aeb7a5bfe92b60546aa4aa1"

type fakeResolver struct{}

func (fakeResolver) AssetIndex(coin string) (int, error) {
	switch coin {
	case "ETH":
		return 4, nil
	case "BTC":
		return 0, nil
	}
	return 0, &models.UnknownAssetError{Coin: coin}
}

func (fakeResolver) SzDecimals(coin string) (int, bool) {
	if coin == "ETH" {
		return 4, true
	}
	return 0, false
}

// fakeTransport records the submitted action and replies with a canned body.
type fakeTransport struct {
	lastAction json.RawMessage
	lastNonce  uint64
	lastSig    signer.Signature
	response   string
	err        error
	calls      int
}

func (f *fakeTransport) Exchange(ctx context.Context, action json.RawMessage, sig signer.Signature, nonce uint64) (*models.ExchangeResponseStatus, error) {
	f.calls++
	f.lastAction = action
	f.lastNonce = nonce
	f.lastSig = sig
	if f.err != nil {
		return nil, f.err
	}
	var resp models.ExchangeResponseStatus
	if err := json.Unmarshal([]byte(f.response), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type fakeInfo struct {
	response string
}

func (f *fakeInfo) Info(ctx context.Context, request any, out any) error {
	return json.Unmarshal([]byte(f.response), out)
}

func newTestExchange(t *testing.T, transport *fakeTransport, info *fakeInfo) *Exchange {
	t.Helper()
	cred, err := signer.NewCredential(testKey)
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	return New(cred, transport, info, fakeResolver{})
}

func limitBuy(coin string, px, sz float64, cloid *uuid.UUID) models.OrderRequest {
	return models.OrderRequest{
		Coin:      coin,
		IsBuy:     true,
		LimitPx:   px,
		Sz:        sz,
		Cloid:     cloid,
		OrderType: models.OrderType{Limit: &models.LimitOrderType{Tif: models.TifGtc}},
	}
}

func TestBulkOrdersPositionalOutcomes(t *testing.T) {
	transport := &fakeTransport{response: `{"status":"ok","response":{"type":"order","data":{"statuses":[
		{"resting":{"oid":101}},
		{"resting":{"oid":102}},
		{"resting":{"oid":103}}
	]}}}`}
	ex := newTestExchange(t, transport, nil)

	cloids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	reqs := []models.OrderRequest{
		limitBuy("ETH", 1570, 0.1, &cloids[0]),
		limitBuy("ETH", 1580, 0.1, &cloids[1]),
		limitBuy("ETH", 1590, 0.1, &cloids[2]),
	}

	outcomes, err := ex.BulkOrders(context.Background(), reqs)
	if err != nil {
		t.Fatalf("bulk orders: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	seen := make(map[uint64]bool)
	for i, outcome := range outcomes {
		if outcome.Status != models.OutcomeResting {
			t.Fatalf("outcome %d: expected resting, got %q", i, outcome.Status)
		}
		if outcome.Oid != uint64(101+i) {
			t.Fatalf("outcome %d out of order: oid %d", i, outcome.Oid)
		}
		if seen[outcome.Oid] {
			t.Fatalf("oid %d reported twice", outcome.Oid)
		}
		seen[outcome.Oid] = true
		if outcome.Cloid == nil || *outcome.Cloid != cloids[i] {
			t.Fatalf("outcome %d did not echo its cloid", i)
		}
	}
	if transport.calls != 1 {
		t.Fatalf("batch must go out as one action, got %d calls", transport.calls)
	}
	if transport.lastNonce == 0 || transport.lastSig == "" {
		t.Fatalf("action was not signed")
	}
}

func TestBulkOrdersMixedStatuses(t *testing.T) {
	transport := &fakeTransport{response: `{"status":"ok","response":{"type":"order","data":{"statuses":[
		{"filled":{"totalSz":"0.02","avgPx":"1891.4","oid":77}},
		{"error":"Order must have minimum value of $10"}
	]}}}`}
	ex := newTestExchange(t, transport, nil)

	outcomes, err := ex.BulkOrders(context.Background(), []models.OrderRequest{
		limitBuy("ETH", 1900, 0.02, nil),
		limitBuy("ETH", 1900, 0.001, nil),
	})
	if err != nil {
		t.Fatalf("bulk orders: %v", err)
	}
	if outcomes[0].Status != models.OutcomeFilled || outcomes[0].TotalSz != "0.02" || outcomes[0].AvgPx != "1891.4" || outcomes[0].Oid != 77 {
		t.Fatalf("unexpected filled outcome %+v", outcomes[0])
	}
	if !outcomes[1].Rejected() || outcomes[1].Err == "" {
		t.Fatalf("per-order rejection must be an error outcome, got %+v", outcomes[1])
	}
}

func TestOrderUnknownAssetFailsBeforeNetwork(t *testing.T) {
	transport := &fakeTransport{}
	ex := newTestExchange(t, transport, nil)

	_, err := ex.Order(context.Background(), limitBuy("DOGE2", 1, 1, nil))
	var unknownErr *models.UnknownAssetError
	if !errors.As(err, &unknownErr) || unknownErr.Coin != "DOGE2" {
		t.Fatalf("expected UnknownAssetError, got %v", err)
	}
	if transport.calls != 0 {
		t.Fatalf("unresolvable asset must not reach the transport")
	}
}

func TestOrderWholeActionRejectionIsAPIError(t *testing.T) {
	transport := &fakeTransport{response: `{"status":"err","response":"User or API Wallet does not exist."}`}
	ex := newTestExchange(t, transport, nil)

	_, err := ex.Order(context.Background(), limitBuy("ETH", 1570, 0.1, nil))
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "User or API Wallet does not exist." {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestOrderTransportFailurePassesThrough(t *testing.T) {
	transport := &fakeTransport{err: &models.TransportError{Op: "exchange", Err: errors.New("connection refused")}}
	ex := newTestExchange(t, transport, nil)

	_, err := ex.Order(context.Background(), limitBuy("ETH", 1570, 0.1, nil))
	var terr *models.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestOrderWireCanonicalization(t *testing.T) {
	transport := &fakeTransport{response: `{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":1}}]}}}`}
	ex := newTestExchange(t, transport, nil)

	cloid := uuid.MustParse("00000000-0000-0000-0000-0000000000ff")
	if _, err := ex.Order(context.Background(), limitBuy("ETH", 1570.50, 0.123456789, &cloid)); err != nil {
		t.Fatalf("order: %v", err)
	}

	var action models.OrderAction
	if err := json.Unmarshal(transport.lastAction, &action); err != nil {
		t.Fatalf("decode action: %v", err)
	}
	if action.Type != "order" || action.Grouping != "na" || len(action.Orders) != 1 {
		t.Fatalf("unexpected action %+v", action)
	}
	wire := action.Orders[0]
	if wire.Asset != 4 {
		t.Fatalf("expected asset index 4, got %d", wire.Asset)
	}
	if wire.LimitPx != "1570.5" {
		t.Fatalf("price must be trimmed, got %q", wire.LimitPx)
	}
	if wire.Sz != "0.1235" {
		t.Fatalf("size must respect szDecimals, got %q", wire.Sz)
	}
	if wire.Cloid == nil || *wire.Cloid != "0x000000000000000000000000000000ff" {
		t.Fatalf("unexpected cloid wire form %v", wire.Cloid)
	}
}

func TestBulkCancelsFilledOrderIsErrorOutcome(t *testing.T) {
	transport := &fakeTransport{response: `{"status":"ok","response":{"type":"cancel","data":{"statuses":[
		"success",
		{"error":"Order was never placed, already canceled, or filled."}
	]}}}`}
	ex := newTestExchange(t, transport, nil)

	outcomes, err := ex.BulkCancels(context.Background(), []models.CancelRequest{
		{Coin: "ETH", Oid: 101},
		{Coin: "ETH", Oid: 77},
	})
	if err != nil {
		t.Fatalf("cancel outcomes must not be a call failure: %v", err)
	}
	if outcomes[0].Status != models.OutcomeSuccess {
		t.Fatalf("expected success, got %+v", outcomes[0])
	}
	if !outcomes[1].Rejected() {
		t.Fatalf("cancelling a filled order must reject, got %+v", outcomes[1])
	}

	var action models.CancelAction
	if err := json.Unmarshal(transport.lastAction, &action); err != nil {
		t.Fatalf("decode action: %v", err)
	}
	if len(action.Cancels) != 2 || action.Cancels[0].Asset != 4 || action.Cancels[0].Oid != 101 {
		t.Fatalf("unexpected cancel wires %+v", action.Cancels)
	}
}

func TestBulkOrdersStatusCountMismatch(t *testing.T) {
	transport := &fakeTransport{response: `{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":1}}]}}}`}
	ex := newTestExchange(t, transport, nil)

	_, err := ex.BulkOrders(context.Background(), []models.OrderRequest{
		limitBuy("ETH", 1570, 0.1, nil),
		limitBuy("ETH", 1580, 0.1, nil),
	})
	if err == nil {
		t.Fatalf("short status list must fail the call")
	}
}

func TestThreeRestingThenCancelAll(t *testing.T) {
	transport := &fakeTransport{response: `{"status":"ok","response":{"type":"order","data":{"statuses":[
		{"resting":{"oid":201}},
		{"resting":{"oid":202}},
		{"resting":{"oid":203}}
	]}}}`}
	ex := newTestExchange(t, transport, nil)

	outcomes, err := ex.BulkOrders(context.Background(), []models.OrderRequest{
		limitBuy("ETH", 1500, 0.1, nil),
		limitBuy("ETH", 1510, 0.1, nil),
		limitBuy("ETH", 1520, 0.1, nil),
	})
	if err != nil {
		t.Fatalf("bulk orders: %v", err)
	}

	var cancels []models.CancelRequest
	for _, outcome := range outcomes {
		if outcome.Status != models.OutcomeResting {
			t.Fatalf("expected resting, got %+v", outcome)
		}
		cancels = append(cancels, models.CancelRequest{Coin: "ETH", Oid: outcome.Oid})
	}

	transport.response = `{"status":"ok","response":{"type":"cancel","data":{"statuses":["success","success","success"]}}}`
	cancelOutcomes, err := ex.BulkCancels(context.Background(), cancels)
	if err != nil {
		t.Fatalf("bulk cancels: %v", err)
	}
	for i, outcome := range cancelOutcomes {
		if outcome.Status != models.OutcomeSuccess {
			t.Fatalf("cancel %d: expected success, got %+v", i, outcome)
		}
	}
	if transport.calls != 2 {
		t.Fatalf("expected one order call and one cancel call, got %d", transport.calls)
	}
}

func TestOpenOrders(t *testing.T) {
	info := &fakeInfo{response: `[{"coin":"ETH","side":"B","limitPx":"1570","sz":"0.1","oid":101,"origSz":"0.1"}]`}
	ex := newTestExchange(t, &fakeTransport{}, info)

	orders, err := ex.OpenOrders(context.Background(), "0xcd43f6f9e1a1bd2b38839794ff1f2d2c5bcbf517")
	if err != nil {
		t.Fatalf("open orders: %v", err)
	}
	if len(orders) != 1 || orders[0].Oid != 101 || orders[0].Coin != "ETH" {
		t.Fatalf("unexpected orders %+v", orders)
	}
}

func TestQueryOrder(t *testing.T) {
	info := &fakeInfo{response: `{"status":"order","order":{"order":{"coin":"ETH","side":"B","limitPx":"1570","sz":"0.1","oid":101,"origSz":"0.1"},"status":"open","statusTimestamp":1700000000000}}`}
	ex := newTestExchange(t, &fakeTransport{}, info)

	result, err := ex.QueryOrder(context.Background(), "0xcd43f6f9e1a1bd2b38839794ff1f2d2c5bcbf517", 101)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Order == nil || result.Order.Order.Oid != 101 || result.Order.Status != "open" {
		t.Fatalf("unexpected result %+v", result)
	}
}
