package models

import (
	"encoding/json"
	"testing"
)

func TestExchangeResponseDecodesStatuses(t *testing.T) {
	payload := `{"status":"ok","response":{"type":"order","data":{"statuses":[
		{"resting":{"oid":77}},
		{"filled":{"totalSz":"0.02","avgPx":"1891.4","oid":78}},
		{"error":"Order must have minimum value of $10"},
		"success"]}}}`

	var resp ExchangeResponseStatus
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ok() {
		t.Fatalf("expected ok response")
	}
	data, err := resp.Data()
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	statuses := data.Data.Statuses
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(statuses))
	}
	if statuses[0].Kind != OutcomeResting || statuses[0].Resting.Oid != 77 {
		t.Fatalf("unexpected first status %+v", statuses[0])
	}
	if statuses[1].Kind != OutcomeFilled || statuses[1].Filled.AvgPx != "1891.4" {
		t.Fatalf("unexpected second status %+v", statuses[1])
	}
	if statuses[2].Kind != OutcomeError || statuses[2].Error == "" {
		t.Fatalf("unexpected third status %+v", statuses[2])
	}
	if statuses[3].Kind != OutcomeSuccess {
		t.Fatalf("unexpected fourth status %+v", statuses[3])
	}
}

func TestExchangeResponseErrMessage(t *testing.T) {
	payload := `{"status":"err","response":"User or API Wallet does not exist."}`
	var resp ExchangeResponseStatus
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ok() {
		t.Fatalf("expected err response")
	}
	if resp.ErrMessage() != "User or API Wallet does not exist." {
		t.Fatalf("unexpected message %q", resp.ErrMessage())
	}
	if _, err := resp.Data(); err == nil {
		t.Fatalf("expected error decoding data of err response")
	}
}

func TestExchangeDataStatusRejectsUnknownVariant(t *testing.T) {
	var s ExchangeDataStatus
	if err := json.Unmarshal([]byte(`{"unknown":1}`), &s); err == nil {
		t.Fatalf("expected error for unknown status variant")
	}
}

func TestOrderWireMarshalOmitsEmptyCloid(t *testing.T) {
	wire := OrderWire{
		Asset:     4,
		IsBuy:     true,
		LimitPx:   "1570",
		Sz:        "0.01",
		OrderType: OrderTypeWire{Limit: &LimitOrderType{Tif: TifAlo}},
	}
	data, err := json.Marshal(wire)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)
	want := `{"a":4,"b":true,"p":"1570","s":"0.01","r":false,"t":{"limit":{"tif":"Alo"}}}`
	if got != want {
		t.Fatalf("unexpected wire form\n got %s\nwant %s", got, want)
	}
}
