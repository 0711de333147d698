package models

import "fmt"

// CredentialError reports a malformed signing credential. It is fatal and
// never retryable.
type CredentialError struct {
	Reason string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("invalid credential: %s", e.Reason)
}

// UnknownAssetError rejects an order whose symbol cannot be resolved to an
// asset index. It is raised before any network call.
type UnknownAssetError struct {
	Coin string
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("unknown asset '%s'", e.Coin)
}

// UnknownSubscriptionError rejects an unsubscribe for an id that is not
// registered.
type UnknownSubscriptionError struct {
	ID int
}

func (e *UnknownSubscriptionError) Error() string {
	return fmt.Sprintf("unknown subscription id %d", e.ID)
}

// TransportError wraps a connectivity or timeout failure. Callers may retry;
// the client never does so on its own for trade actions.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a venue-level rejection of a whole signed action. Per-action
// rejections inside an accepted batch surface as error outcomes instead.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue rejected action: %s", e.Message)
}

// MetadataMismatchError reports misaligned metadata sequences from the
// upstream feed. Treated as fatal: it indicates data corruption, not a
// transient condition.
type MetadataMismatchError struct {
	Assets   int
	Contexts int
}

func (e *MetadataMismatchError) Error() string {
	return fmt.Sprintf("metadata mismatch: %d assets vs %d contexts", e.Assets, e.Contexts)
}
