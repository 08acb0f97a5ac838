// Package fingerprint derives the binding value that ties a license to one
// deployment instance. Generation is a pure function: identical identity
// attributes always produce the same fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// Identity is the set of instance attributes a fingerprint is derived from.
type Identity struct {
	// DBUUID is the stable database UUID of the deployment instance.
	DBUUID string
	// Domain is the instance hostname. It is normalized before hashing, so
	// "HTTPS://Acme.example.COM:8069/" and "acme.example.com" bind equally.
	Domain string
}

// Generate returns the instance fingerprint in self-describing form:
// a hash algorithm tag followed by the hex digest, e.g. "sha256:<64 hex>".
func Generate(id Identity) string {
	combined := strings.TrimSpace(id.DBUUID) + ":" + NormalizeDomain(id.Domain)
	sum := sha256.Sum256([]byte(combined))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// NormalizeDomain canonicalizes a hostname: case-folds, strips any URL
// scheme, path, port, and trailing dot.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	if host, _, err := net.SplitHostPort(d); err == nil && host != "" {
		d = host
	}
	return strings.TrimSuffix(d, ".")
}
