package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer is the process-wide backend keypair used for Drift sub-account
// operations. It is loaded once at startup and read-only afterwards; request
// data can never select a different key.
type Signer struct {
	key solana.PrivateKey
}

// LoadSigner reads a solana-keygen JSON keypair file.
func LoadSigner(path string) (*Signer, error) {
	if path == "" {
		return nil, fmt.Errorf("signer key path not configured")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load signer key %s: %w", path, err)
	}
	return &Signer{key: key}, nil
}

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// Sign signs msg with the backend key.
func (s *Signer) Sign(msg []byte) (solana.Signature, error) {
	return s.key.Sign(msg)
}
