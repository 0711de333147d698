package signer

import (
	"errors"
	"sync"
	"testing"

	"hyperflow/models"
)

const testKey = "4eaab9c7f0230b232abeb23701b927c7190e4b424aeb7a5bfe92b60546aa4aa1"

func TestNewCredentialAcceptsPrefixedKey(t *testing.T) {
	if _, err := NewCredential("0x" + testKey); err != nil {
		t.Fatalf("prefixed key: %v", err)
	}
	if _, err := NewCredential(testKey); err != nil {
		t.Fatalf("bare key: %v", err)
	}
}

func TestNewCredentialRejectsBadFormat(t *testing.T) {
	for _, key := range []string{"", "abc", testKey[:62], testKey[:62] + "zz"} {
		_, err := NewCredential(key)
		var credErr *models.CredentialError
		if !errors.As(err, &credErr) {
			t.Fatalf("key %q: expected CredentialError, got %v", key, err)
		}
	}
}

func TestSignDeterministic(t *testing.T) {
	cred, err := NewCredential(testKey)
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	action := []byte(`{"type":"order"}`)
	sig1, err := cred.Sign(action, 1700000000000)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig2, err := cred.Sign(action, 1700000000000)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig1 != sig2 {
		t.Fatalf("same inputs must produce the same signature")
	}
	sig3, _ := cred.Sign(action, 1700000000001)
	if sig3 == sig1 {
		t.Fatalf("different nonce must change the signature")
	}
}

func TestNonceStrictlyIncreasing(t *testing.T) {
	cred, err := NewCredential(testKey)
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	prev := cred.Nonce()
	for i := 0; i < 1000; i++ {
		next := cred.Nonce()
		if next <= prev {
			t.Fatalf("nonce regressed: %d after %d", next, prev)
		}
		prev = next
	}
}

func TestNonceConcurrentCallersNeverCollide(t *testing.T) {
	cred, err := NewCredential(testKey)
	if err != nil {
		t.Fatalf("credential: %v", err)
	}

	const workers = 8
	const perWorker = 200
	var mu sync.Mutex
	seen := make(map[uint64]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n := cred.Nonce()
				mu.Lock()
				if seen[n] {
					mu.Unlock()
					t.Errorf("nonce %d issued twice", n)
					return
				}
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
