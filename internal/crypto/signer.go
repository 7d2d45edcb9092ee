package crypto

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// Signer signs Solana transactions with the wallet's ed25519 keypair.
type Signer struct {
	key ed25519.PrivateKey
}

// NewSigner creates a Signer from a 64-byte ed25519 keypair.
func NewSigner(key ed25519.PrivateKey) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: keypair has %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	return &Signer{key: key}, nil
}

// Address returns the wallet's base58-encoded public key.
func (s *Signer) Address() string {
	return base58.Encode(s.key.Public().(ed25519.PublicKey))
}

// SignTransaction signs a serialized Solana transaction in place and returns
// the signed wire bytes plus the base58 signature.
//
// The wire layout is a compact-u16 signature count, count 64-byte signature
// slots, then the message. The APIs that build our transactions always place
// the wallet as fee payer, so the signature goes into slot zero; any other
// required slots are left for co-signers upstream.
func (s *Signer) SignTransaction(wire []byte) ([]byte, string, error) {
	count, offset, err := decodeShortVecLen(wire)
	if err != nil {
		return nil, "", fmt.Errorf("crypto: signature count: %w", err)
	}
	if count == 0 {
		return nil, "", fmt.Errorf("crypto: transaction declares zero signatures")
	}
	msgStart := offset + count*ed25519.SignatureSize
	if msgStart >= len(wire) {
		return nil, "", fmt.Errorf("crypto: transaction truncated: %d bytes, message starts at %d", len(wire), msgStart)
	}

	sig := ed25519.Sign(s.key, wire[msgStart:])

	signed := make([]byte, len(wire))
	copy(signed, wire)
	copy(signed[offset:offset+ed25519.SignatureSize], sig)

	return signed, base58.Encode(sig), nil
}

// decodeShortVecLen decodes the compact-u16 length prefix used by the Solana
// wire format, returning the value and the number of prefix bytes.
func decodeShortVecLen(b []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("truncated length prefix")
		}
		value |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("length prefix longer than 3 bytes")
}
