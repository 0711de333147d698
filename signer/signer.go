package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"hyperflow/models"
)

// Signature is the hex-encoded signature bound into a signed action.
type Signature string

// Credential holds one account's signing secret together with its nonce
// counter. The counter is owned by the credential, not by any global state,
// so independent credentials sign independently.
type Credential struct {
	secret    []byte
	lastNonce uint64
}

// NewCredential parses a 32-byte hex-encoded signing key. A leading 0x
// prefix is tolerated. Format errors are fatal and never retryable.
func NewCredential(privateKey string) (*Credential, error) {
	key := strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	if key == "" {
		return nil, &models.CredentialError{Reason: "private key is empty"}
	}
	if len(key) != 64 {
		return nil, &models.CredentialError{Reason: "private key must be 32 hex-encoded bytes"}
	}
	secret, err := hex.DecodeString(key)
	if err != nil {
		return nil, &models.CredentialError{Reason: "private key is not valid hex"}
	}
	return &Credential{secret: secret}, nil
}

// Nonce returns the next nonce for this credential. Nonces are current
// epoch milliseconds, forced strictly increasing across concurrent callers;
// the venue rejects reuse or regression.
func (c *Credential) Nonce() uint64 {
	for {
		last := atomic.LoadUint64(&c.lastNonce)
		next := uint64(time.Now().UnixMilli())
		if next <= last {
			next = last + 1
		}
		if atomic.CompareAndSwapUint64(&c.lastNonce, last, next) {
			return next
		}
	}
}

// Sign binds a canonical action payload and nonce to this credential.
// The signature is deterministic for identical payload, credential and
// nonce.
func (c *Credential) Sign(action []byte, nonce uint64) (Signature, error) {
	if len(c.secret) == 0 {
		return "", &models.CredentialError{Reason: "credential has no secret"}
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(action)
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	mac.Write(nonceBytes[:])
	return Signature(hex.EncodeToString(mac.Sum(nil))), nil
}
