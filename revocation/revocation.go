// Package revocation defines the optional revocation lookup the license
// verifier may be given. A token is immutable once signed, so revocation is
// necessarily a check against external state; a verifier running fully
// offline simply has no gate and cannot observe revocations. That limitation
// is deliberate and documented rather than papered over.
package revocation

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Gate answers whether a license id has been revoked out-of-band.
type Gate interface {
	IsRevoked(ctx context.Context, licenseID string) (bool, error)
}

// Policy decides what a gate lookup failure means. There is no default:
// deployments must choose explicitly.
type Policy string

const (
	// FailOpen skips the revocation check when the gate is unreachable.
	FailOpen Policy = "fail-open"
	// FailClosed rejects verification when the gate is unreachable.
	FailClosed Policy = "fail-closed"
)

// ParsePolicy validates a configured policy string.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case FailOpen, FailClosed:
		return p, nil
	default:
		return "", fmt.Errorf("revocation: unknown policy %q (want %q or %q)", s, FailOpen, FailClosed)
	}
}

// InMemoryGate is a Gate backed by a process-local set. It serves embedded
// deployments and tests; distributed setups use the redis gate.
type InMemoryGate struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

// NewInMemoryGate returns an empty in-memory gate.
func NewInMemoryGate() *InMemoryGate {
	return &InMemoryGate{revoked: make(map[string]struct{})}
}

// Revoke marks a license id as revoked.
func (g *InMemoryGate) Revoke(licenseID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revoked[licenseID] = struct{}{}
}

// Add is Revoke with the signature the service layer expects of gates
// that accept immediate updates.
func (g *InMemoryGate) Add(_ context.Context, licenseID string) error {
	g.Revoke(licenseID)
	return nil
}

// Replace swaps the full membership, satisfying the syncer's target
// interface.
func (g *InMemoryGate) Replace(_ context.Context, licenseIDs []string) error {
	next := make(map[string]struct{}, len(licenseIDs))
	for _, id := range licenseIDs {
		next[id] = struct{}{}
	}
	g.mu.Lock()
	g.revoked = next
	g.mu.Unlock()
	return nil
}

// IsRevoked implements Gate.
func (g *InMemoryGate) IsRevoked(_ context.Context, licenseID string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.revoked[licenseID]
	return ok, nil
}
