package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appconfig "hyperflow/config"
	"hyperflow/logger"
	"hyperflow/models"
	"hyperflow/signer"

	"golang.org/x/time/rate"
)

// Client executes signed actions and info queries against the venue's HTTP
// API. It distinguishes network-level failure (TransportError) from a
// venue-rejected action, which comes back as a structured response.
type Client struct {
	config  *appconfig.Config
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewClient(cfg *appconfig.Config) *Client {
	rl := cfg.Transport.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		config:  cfg,
		http:    &http.Client{Timeout: time.Duration(cfg.Transport.TimeoutMs) * time.Millisecond},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
	}
}

// exchangePayload is the envelope for a signed action.
type exchangePayload struct {
	Action    json.RawMessage  `json:"action"`
	Nonce     uint64           `json:"nonce"`
	Signature signer.Signature `json:"signature"`
}

// Exchange submits one signed action. A venue "err" status is returned as a
// value, not an error; callers decide how to surface it per action.
func (c *Client) Exchange(ctx context.Context, action json.RawMessage, sig signer.Signature, nonce uint64) (*models.ExchangeResponseStatus, error) {
	payload := exchangePayload{Action: action, Nonce: nonce, Signature: sig}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal exchange payload: %w", err)
	}

	raw, err := c.post(ctx, "/exchange", body)
	if err != nil {
		return nil, &models.TransportError{Op: "exchange", Err: err}
	}

	var resp models.ExchangeResponseStatus
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &models.TransportError{Op: "exchange", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &resp, nil
}

// Info executes a read-only query against the metadata feed and decodes the
// response into out.
func (c *Client) Info(ctx context.Context, request any, out any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal info request: %w", err)
	}

	raw, err := c.post(ctx, "/info", body)
	if err != nil {
		return &models.TransportError{Op: "info", Err: err}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &models.TransportError{Op: "info", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	log := c.log.WithComponent("transport").WithFields(logger.Fields{"path": path})

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Venue.APIURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("request failed")
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		log.WithFields(logger.Fields{"status": resp.StatusCode}).Warn("venue returned http error")
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}

	log.WithFields(logger.Fields{"duration_ms": time.Since(start).Milliseconds()}).Debug("request completed")
	return raw, nil
}
