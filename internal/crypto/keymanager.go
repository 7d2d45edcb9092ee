// Package crypto provides wallet key management and transaction signing for
// the bot's Solana wallet.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-key JSON schema version.
	currentVersion = 1
)

// encryptedKeyJSON is the on-disk format for an encrypted keypair.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// KeyConfig carries the information LoadKeypair needs to resolve the wallet
// keypair. Populate the fields from configuration or environment variables.
type KeyConfig struct {
	// PrivateKey is a base58-encoded 64-byte ed25519 keypair (the format
	// wallet apps export). If non-empty, LoadKeypair returns it directly.
	PrivateKey string

	// KeypairPath is the path to a solana-keygen JSON byte-array file.
	KeypairPath string

	// EncryptedKeyPath is the path to a JSON file produced by EncryptKeypair.
	EncryptedKeyPath string

	// KeyPassword decrypts the file at EncryptedKeyPath.
	KeyPassword string
}

// EncryptKeypair encrypts an ed25519 keypair with a password using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM authenticated encryption.
// It returns the JSON blob suitable for writing to disk.
func EncryptKeypair(keypair ed25519.PrivateKey, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if len(keypair) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: expected %d-byte keypair, got %d bytes", ed25519.PrivateKeySize, len(keypair))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, keypair, nil)

	out := encryptedKeyJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	return json.MarshalIndent(out, "", "  ")
}

// DecryptKeypair decrypts a JSON blob produced by EncryptKeypair.
func DecryptKeypair(encryptedJSON []byte, password string) (ed25519.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var stored encryptedKeyJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing encrypted key JSON: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	if len(plaintext) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: decrypted keypair has %d bytes, want %d", len(plaintext), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(plaintext), nil
}

// LoadKeypair resolves the wallet keypair from the provided configuration.
//
// Resolution order:
//  1. If PrivateKey is set, decode the base58 keypair.
//  2. If KeypairPath is set, read the solana-keygen JSON byte array.
//  3. If EncryptedKeyPath is set, read the file and decrypt with KeyPassword.
func LoadKeypair(cfg KeyConfig) (ed25519.PrivateKey, error) {
	if cfg.PrivateKey != "" {
		raw, err := base58.Decode(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("crypto: PrivateKey is not valid base58: %w", err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("crypto: PrivateKey decodes to %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
		}
		return ed25519.PrivateKey(raw), nil
	}

	if cfg.KeypairPath != "" {
		data, err := os.ReadFile(cfg.KeypairPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading keypair file: %w", err)
		}
		var bytes []byte
		if err := json.Unmarshal(data, &bytes); err != nil {
			return nil, fmt.Errorf("crypto: parsing keypair file: %w", err)
		}
		if len(bytes) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("crypto: keypair file holds %d bytes, want %d", len(bytes), ed25519.PrivateKeySize)
		}
		return ed25519.PrivateKey(bytes), nil
	}

	if cfg.EncryptedKeyPath != "" {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading encrypted key file: %w", err)
		}
		return DecryptKeypair(data, cfg.KeyPassword)
	}

	return nil, errors.New("crypto: no key source configured (set PrivateKey, KeypairPath, or EncryptedKeyPath)")
}
