package cryptoutils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"
)

// GenerateBoxKeypair creates a fresh X25519 keypair for sealed-box
// encryption. The public key is returned base58-encoded, matching the wire
// representation used for ephemeral session keys and guardian encryption
// keys.
func GenerateBoxKeypair() (pubkeyB58 string, privkey *[32]byte, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return base58.Encode(pub[:]), priv, nil
}

// SealToPubkey encrypts a message to a base58-encoded X25519 public key and
// returns the base64 sealed-box ciphertext. Only the holder of the matching
// private key can open it; the sender is anonymous.
func SealToPubkey(recipientB58 string, message []byte) (string, error) {
	keyBytes, err := base58.Decode(recipientB58)
	if err != nil {
		return "", fmt.Errorf("invalid recipient key: %w", err)
	}
	if len(keyBytes) != 32 {
		return "", fmt.Errorf("invalid recipient key length: %d", len(keyBytes))
	}

	var recipient [32]byte
	copy(recipient[:], keyBytes)

	sealed, err := box.SealAnonymous(nil, message, &recipient, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to seal message: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenSealed decrypts a base64 sealed-box ciphertext with the recipient's
// keypair.
func OpenSealed(ciphertextB64 string, pub, priv *[32]byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext encoding: %w", err)
	}

	message, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	if !ok {
		return nil, fmt.Errorf("sealed box did not open")
	}
	return message, nil
}
