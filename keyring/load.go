package keyring

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultKeysPath is the default directory where a secret store mounts
// signing keys (keys.json).
const DefaultKeysPath = "/vault/aegis"

const (
	devKeysDir     = ".runtime/aegis"
	devPrivateFile = "signing.pem"
	devKIDFile     = "kid"
)

// Load discovers signing keys from multiple sources with the following
// priority:
//  1. Environment variables (AEGIS_ACTIVE_KEY_ID, AEGIS_ACTIVE_PRIVATE_KEY_PEM,
//     AEGIS_PUBLIC_KEYS) - highest priority
//  2. Filesystem <path>/keys.json (secret store mount); path defaults to
//     DefaultKeysPath
//  3. Auto-generated keys in .runtime/aegis/ (development fallback)
//
// Keyring load failure is startup-fatal for the service: an error is
// returned whenever keys are explicitly provided but malformed, and in
// production when no keys are found at all.
func Load(log *logrus.Logger, keysPath string) (*Keyring, error) {
	if k, err := loadFromEnv(log); err != nil {
		return nil, fmt.Errorf("load keys from environment: %w", err)
	} else if k != nil {
		return k, nil
	}

	if keysPath == "" {
		keysPath = DefaultKeysPath
	}
	if k, err := loadFromFile(log, keysPath); err != nil {
		return nil, fmt.Errorf("load keys from %s: %w", keysPath, err)
	} else if k != nil {
		return k, nil
	}

	// Auto-generation is disabled in production so the service cannot start
	// without explicitly provisioned keys.
	if isProdEnv() {
		return nil, fmt.Errorf("no signing keys found in env or %s and auto-generation is disabled in production; set AEGIS_ACTIVE_KEY_ID/AEGIS_ACTIVE_PRIVATE_KEY_PEM or mount keys.json", keysPath)
	}
	return loadOrGenerateDev(log)
}

func isProdEnv() bool {
	env := strings.TrimSpace(os.Getenv("ENV"))
	if env == "" {
		env = strings.TrimSpace(os.Getenv("APP_ENV"))
	}
	if env == "" {
		env = strings.TrimSpace(os.Getenv("ENVIRONMENT"))
	}
	env = strings.ToLower(env)
	return env == "production" || env == "prod"
}

// loadFromEnv returns (nil, nil) when the env vars are not set.
// AEGIS_PUBLIC_KEYS is an optional JSON map of key id to public key PEM for
// historical keys, e.g. {"aegis-2025-01": "-----BEGIN PUBLIC KEY-----\n..."}.
func loadFromEnv(log *logrus.Logger) (*Keyring, error) {
	activeKID := strings.TrimSpace(os.Getenv("AEGIS_ACTIVE_KEY_ID"))
	activePEM := strings.TrimSpace(os.Getenv("AEGIS_ACTIVE_PRIVATE_KEY_PEM"))

	if activeKID == "" && activePEM == "" {
		return nil, nil
	}
	if activeKID == "" {
		return nil, fmt.Errorf("AEGIS_ACTIVE_PRIVATE_KEY_PEM is set but AEGIS_ACTIVE_KEY_ID is missing")
	}
	if activePEM == "" {
		return nil, fmt.Errorf("AEGIS_ACTIVE_KEY_ID is set but AEGIS_ACTIVE_PRIVATE_KEY_PEM is missing")
	}

	priv, err := ParsePrivateKeyPEM([]byte(activePEM))
	if err != nil {
		return nil, fmt.Errorf("parse AEGIS_ACTIVE_PRIVATE_KEY_PEM: %w", err)
	}

	historical, err := parsePublicKeyMap(log, os.Getenv("AEGIS_PUBLIC_KEYS"))
	if err != nil {
		return nil, fmt.Errorf("parse AEGIS_PUBLIC_KEYS: %w", err)
	}
	return New(activeKID, priv, historical)
}

// keysFile mirrors the keys.json layout a secret store mounts.
type keysFile struct {
	ActiveKeyID         string            `json:"active_key_id"`
	ActivePrivateKeyPEM string            `json:"active_private_key_pem"`
	PublicKeys          map[string]string `json:"public_keys"`
}

// loadFromFile returns (nil, nil) when keys.json does not exist.
func loadFromFile(log *logrus.Logger, keysPath string) (*Keyring, error) {
	data, err := os.ReadFile(filepath.Join(keysPath, "keys.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read keys.json: %w", err)
	}

	var kf keysFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse keys.json: %w", err)
	}
	if kf.ActiveKeyID == "" {
		return nil, fmt.Errorf("keys.json missing active_key_id")
	}
	if kf.ActivePrivateKeyPEM == "" {
		return nil, fmt.Errorf("keys.json missing active_private_key_pem")
	}

	priv, err := ParsePrivateKeyPEM([]byte(kf.ActivePrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse active private key: %w", err)
	}

	historical := make(map[string]ed25519.PublicKey, len(kf.PublicKeys))
	for kid, pemStr := range kf.PublicKeys {
		pub, err := ParsePublicKeyPEM([]byte(pemStr))
		if err != nil {
			// A historical key that fails to parse only affects tokens
			// signed under it; skip it rather than refusing to start.
			log.WithError(err).WithField("kid", kid).Warn("skipping unparseable public key in keys.json")
			continue
		}
		historical[kid] = pub
	}
	return New(kf.ActiveKeyID, priv, historical)
}

func parsePublicKeyMap(log *logrus.Logger, raw string) (map[string]ed25519.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	out := make(map[string]ed25519.PublicKey, len(m))
	for kid, pemStr := range m {
		pub, err := ParsePublicKeyPEM([]byte(pemStr))
		if err != nil {
			log.WithError(err).WithField("kid", kid).Warn("skipping unparseable public key")
			continue
		}
		out[kid] = pub
	}
	return out, nil
}

// loadOrGenerateDev loads persisted dev keys from .runtime/aegis/, or
// generates a keypair and persists it for the next startup. Development only.
func loadOrGenerateDev(log *logrus.Logger) (*Keyring, error) {
	keyPath := filepath.Join(devKeysDir, devPrivateFile)
	kidPath := filepath.Join(devKeysDir, devKIDFile)

	if pemBytes, err := os.ReadFile(keyPath); err == nil {
		kid := "dev"
		if kidBytes, err := os.ReadFile(kidPath); err == nil {
			if k := strings.TrimSpace(string(kidBytes)); k != "" {
				kid = k
			}
		}
		if priv, err := ParsePrivateKeyPEM(pemBytes); err == nil {
			return New(kid, priv, nil)
		}
	}

	kid := fmt.Sprintf("dev-%d", time.Now().Unix())
	priv, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := persistDevKeys(priv, kid); err != nil {
		// Still usable in-memory; persistence only matters across restarts.
		log.WithError(err).Warn("failed to persist dev signing keys")
	}
	log.WithField("kid", kid).Warn("using auto-generated development signing key")
	return New(kid, priv, nil)
}

func persistDevKeys(priv ed25519.PrivateKey, kid string) error {
	if err := os.MkdirAll(devKeysDir, 0o700); err != nil {
		return fmt.Errorf("create keys directory: %w", err)
	}
	pemBytes, err := MarshalPrivateKeyPEM(priv)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(devKeysDir, devPrivateFile), pemBytes, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(devKeysDir, devKIDFile), []byte(kid), 0o600); err != nil {
		return fmt.Errorf("write key id: %w", err)
	}
	return nil
}
