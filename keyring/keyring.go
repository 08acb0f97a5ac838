// Package keyring manages the Ed25519 signing keys a deployment trusts.
// A Keyring is an immutable snapshot: the active private key used for new
// issuance plus every public key any token has ever been signed under,
// indexed by key id. Rotation produces a new snapshot and never removes an
// entry, so tokens signed under historical keys stay verifiable.
package keyring

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Keyring is safe for concurrent readers; it is never mutated after New.
type Keyring struct {
	activeKID string
	active    ed25519.PrivateKey
	pubs      map[string]ed25519.PublicKey
}

// New builds a keyring from the active private key and any historical public
// keys. The active key's public half is always included under activeKID.
func New(activeKID string, active ed25519.PrivateKey, historical map[string]ed25519.PublicKey) (*Keyring, error) {
	if activeKID == "" {
		return nil, errors.New("keyring: active key id required")
	}
	if len(active) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keyring: active key %q is not a valid Ed25519 private key", activeKID)
	}
	pubs := make(map[string]ed25519.PublicKey, len(historical)+1)
	for kid, pub := range historical {
		if len(pub) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("keyring: public key %q is not a valid Ed25519 public key", kid)
		}
		pubs[kid] = pub
	}
	pubs[activeKID] = active.Public().(ed25519.PublicKey)
	return &Keyring{activeKID: activeKID, active: active, pubs: pubs}, nil
}

// ActiveKID returns the key id used for new issuance.
func (k *Keyring) ActiveKID() string { return k.activeKID }

// ActiveKey returns the private key used for new issuance.
func (k *Keyring) ActiveKey() ed25519.PrivateKey { return k.active }

// PublicKey looks up the public key for any current or historical key id.
func (k *Keyring) PublicKey(kid string) (ed25519.PublicKey, bool) {
	pub, ok := k.pubs[kid]
	return pub, ok
}

// KIDs returns every known key id, sorted.
func (k *Keyring) KIDs() []string {
	out := make([]string, 0, len(k.pubs))
	for kid := range k.pubs {
		out = append(out, kid)
	}
	sort.Strings(out)
	return out
}

// Rotate returns a new snapshot with kid as the active signing key. All
// previously known public keys are carried over. Reusing an existing key id
// is rejected; rotation introduces entries, it never replaces them.
func (k *Keyring) Rotate(kid string, key ed25519.PrivateKey) (*Keyring, error) {
	if _, exists := k.pubs[kid]; exists {
		return nil, fmt.Errorf("keyring: key id %q already exists", kid)
	}
	historical := make(map[string]ed25519.PublicKey, len(k.pubs))
	for id, pub := range k.pubs {
		historical[id] = pub
	}
	return New(kid, key, historical)
}

// NextKID derives a key id in the deployment's conventional form,
// e.g. "aegis-2026-02". seq starts at 1.
func NextKID(now time.Time, seq int) string {
	return fmt.Sprintf("aegis-%d-%02d", now.Year(), seq)
}
