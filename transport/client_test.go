package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	appconfig "hyperflow/config"
	"hyperflow/models"
)

func clientFor(url string) *Client {
	return NewClient(&appconfig.Config{
		Venue: appconfig.VenueConfig{APIURL: url},
		Transport: appconfig.TransportConfig{
			TimeoutMs: 2000,
			RateLimit: appconfig.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10},
		},
	})
}

func TestExchangePassesThroughVenueRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exchange" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload struct {
			Nonce     uint64 `json:"nonce"`
			Signature string `json:"signature"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		if payload.Nonce == 0 || payload.Signature == "" {
			t.Errorf("payload missing signature or nonce: %s", body)
		}
		w.Write([]byte(`{"status":"err","response":"Order has invalid size"}`))
	}))
	defer srv.Close()

	resp, err := clientFor(srv.URL).Exchange(context.Background(), []byte(`{"type":"order"}`), "deadbeef", 1700000000000)
	if err != nil {
		t.Fatalf("venue rejection must not be a transport error: %v", err)
	}
	if resp.Ok() || resp.ErrMessage() != "Order has invalid size" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestExchangeNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := clientFor(srv.URL).Exchange(context.Background(), []byte(`{}`), "deadbeef", 1)
	var terr *models.TransportError
	if !errors.As(err, &terr) || terr.Op != "exchange" {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestExchangeHTTPErrorIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := clientFor(srv.URL).Exchange(context.Background(), []byte(`{}`), "deadbeef", 1)
	var terr *models.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError for http 429, got %v", err)
	}
}

func TestInfoDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"universe":[{"name":"ETH","szDecimals":4}]}`))
	}))
	defer srv.Close()

	var meta models.Meta
	if err := clientFor(srv.URL).Info(context.Background(), map[string]string{"type": "meta"}, &meta); err != nil {
		t.Fatalf("info: %v", err)
	}
	if len(meta.Universe) != 1 || meta.Universe[0].Name != "ETH" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
