// aegis-keygen mints an Ed25519 signing keypair for the license
// server and writes it out as PEM plus a keys.json the server loads at
// startup.
package main

import (
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/biz4a/aegis/keyring"
)

func main() {
	var (
		outDir = flag.String("out", ".", "directory to write key files into")
		kid    = flag.String("kid", "", "key id (default aegis-<year>-01)")
	)
	flag.Parse()

	if *kid == "" {
		*kid = keyring.NextKID(time.Now().UTC(), 1)
	}

	if err := run(*outDir, *kid); err != nil {
		fmt.Fprintln(os.Stderr, "aegis-keygen:", err)
		os.Exit(1)
	}
}

// keysFile matches the keys.json layout the server loads at startup.
type keysFile struct {
	ActiveKeyID         string            `json:"active_key_id"`
	ActivePrivateKeyPEM string            `json:"active_private_key_pem"`
	PublicKeys          map[string]string `json:"public_keys"`
}

func run(outDir, kid string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	priv, err := keyring.GenerateKey()
	if err != nil {
		return err
	}

	privPEM, err := keyring.MarshalPrivateKeyPEM(priv)
	if err != nil {
		return err
	}
	pubPEM, err := keyring.MarshalPublicKeyPEM(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}

	privPath := filepath.Join(outDir, kid+".key")
	pubPath := filepath.Join(outDir, kid+".pub")
	jsonPath := filepath.Join(outDir, "keys.json")

	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return err
	}

	kf := keysFile{
		ActiveKeyID:         kid,
		ActivePrivateKeyPEM: string(privPEM),
		PublicKeys:          map[string]string{kid: string(pubPEM)},
	}
	b, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(jsonPath, b, 0o600); err != nil {
		return err
	}

	fmt.Printf("wrote %s, %s, %s (kid %s)\n", privPath, pubPath, jsonPath, kid)
	return nil
}
