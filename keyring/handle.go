package keyring

import (
	"crypto/ed25519"
	"sync/atomic"
)

// Handle publishes keyring snapshots to concurrent issuers and verifiers.
// Swapping the snapshot is atomic: readers always observe either the old or
// the new keyring in full, never a partially rotated one.
type Handle struct {
	cur atomic.Pointer[Keyring]
}

// NewHandle wraps an initial snapshot.
func NewHandle(k *Keyring) *Handle {
	h := &Handle{}
	h.cur.Store(k)
	return h
}

// Current returns the latest snapshot.
func (h *Handle) Current() *Keyring { return h.cur.Load() }

// Rotate installs a new active key on top of the current snapshot and
// returns the resulting keyring.
func (h *Handle) Rotate(kid string, key ed25519.PrivateKey) (*Keyring, error) {
	for {
		old := h.cur.Load()
		next, err := old.Rotate(kid, key)
		if err != nil {
			return nil, err
		}
		if h.cur.CompareAndSwap(old, next) {
			return next, nil
		}
	}
}

// ActiveKID implements license.SigningKeys against the current snapshot.
func (h *Handle) ActiveKID() string { return h.Current().ActiveKID() }

// ActiveKey implements license.SigningKeys against the current snapshot.
func (h *Handle) ActiveKey() ed25519.PrivateKey { return h.Current().ActiveKey() }

// PublicKey implements license.VerificationKeys against the current snapshot.
func (h *Handle) PublicKey(kid string) (ed25519.PublicKey, bool) {
	return h.Current().PublicKey(kid)
}
