package keyring

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWKS exports every public key as a JWK set for distribution to license
// clients. Historical keys are included so clients can verify tokens signed
// under rotated-out keys.
func (k *Keyring) JWKS() (jwk.Set, error) {
	set := jwk.NewSet()
	for _, kid := range k.KIDs() {
		pub, _ := k.PublicKey(kid)
		key, err := jwk.FromRaw(pub)
		if err != nil {
			return nil, fmt.Errorf("keyring: jwk for %q: %w", kid, err)
		}
		if err := key.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.AlgorithmKey, jwa.EdDSA); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature.String()); err != nil {
			return nil, err
		}
		if err := set.AddKey(key); err != nil {
			return nil, fmt.Errorf("keyring: add jwk %q: %w", kid, err)
		}
	}
	return set, nil
}
