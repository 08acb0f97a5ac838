package keyring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the ring to <keysPath>/keys.json in the layout Load reads,
// so a rotation done at runtime survives a restart. The file carries the
// active private key and every public key the ring has ever known; loss of
// a historical public key would strand the tokens signed under it.
//
// keysPath defaults to DefaultKeysPath when empty. Deployments that
// provision keys through environment variables must re-provision from the
// written file themselves: Load prefers the environment over keys.json.
func Save(k *Keyring, keysPath string) error {
	if keysPath == "" {
		keysPath = DefaultKeysPath
	}

	privPEM, err := MarshalPrivateKeyPEM(k.active)
	if err != nil {
		return fmt.Errorf("keyring: marshal active key: %w", err)
	}

	kf := keysFile{
		ActiveKeyID:         k.activeKID,
		ActivePrivateKeyPEM: string(privPEM),
		PublicKeys:          make(map[string]string, len(k.pubs)),
	}
	for kid, pub := range k.pubs {
		pubPEM, err := MarshalPublicKeyPEM(pub)
		if err != nil {
			return fmt.Errorf("keyring: marshal public key %q: %w", kid, err)
		}
		kf.PublicKeys[kid] = string(pubPEM)
	}

	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("keyring: marshal keys.json: %w", err)
	}

	if err := os.MkdirAll(keysPath, 0o700); err != nil {
		return fmt.Errorf("keyring: create %s: %w", keysPath, err)
	}

	// Write-then-rename so a crash mid-write cannot truncate the only
	// copy of the signing keys.
	tmp := filepath.Join(keysPath, "keys.json.tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("keyring: write keys.json: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(keysPath, "keys.json")); err != nil {
		return fmt.Errorf("keyring: install keys.json: %w", err)
	}
	return nil
}
