// Package pii holds the keyed hashing and at-rest encryption used for
// personally identifiable fields.
package pii

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"gauntlet-service/internal/textutil"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const envelopePrefix = "enc:v1:"

var hkdfInfo = []byte("gauntlet-service pii at rest v1")

// Hasher produces fingerprints: deterministic keyed hashes usable for equality lookups.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Fingerprint returns the hex HMAC-SHA256 of value.
func (h *Hasher) Fingerprint(value string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// Cipher encrypts and decrypts PII columns with XChaCha20-Poly1305.
type Cipher struct {
	key []byte
}

// NewCipher derives a 256-bit key from secret with HKDF-SHA256.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Encrypt seals plain into an "enc:v1:" envelope.
func (c *Cipher) Encrypt(plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return envelopePrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope. Values without the envelope prefix are returned
// unchanged (rows written before encryption); anything that fails to open yields "".
func (c *Cipher) Decrypt(stored string) string {
	if !strings.HasPrefix(stored, envelopePrefix) {
		return stored
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, envelopePrefix))
	if err != nil {
		return ""
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return ""
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return ""
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ""
	}
	return string(plain)
}

// AnonymizeName reduces a full name to "First L.".
func AnonymizeName(name string) string {
	parts := strings.Fields(textutil.Clean(name, 80))
	switch len(parts) {
	case 0:
		return "Anonymous"
	case 1:
		return parts[0]
	}
	initial := []rune(parts[1])[0]
	return fmt.Sprintf("%s %c.", parts[0], initial)
}

// NormalizeIP returns the canonical text form of an address so that the same
// caller always hashes to the same fingerprint.
func NormalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	raw = strings.Trim(raw, "[]")
	if i := strings.IndexByte(raw, '%'); i >= 0 {
		raw = raw[:i]
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return "0.0.0.0"
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
