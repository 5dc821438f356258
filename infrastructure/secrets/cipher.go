// Package secrets provides the authenticated-encryption primitive used to
// protect stored credentials. Blobs are AES-256-CBC ciphertext authenticated
// with HMAC-SHA256 over iv||ciphertext and encoded as a single base64 string
// so they are safe to store in any text field.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
)

const (
	keySize = 32
	ivSize  = aes.BlockSize
	macSize = sha256.Size
)

// Cipher failures are sentinel errors, not panics: the caller must treat any
// failure as "secret unavailable", never as an empty secret.
var (
	// ErrEmptyPlaintext indicates Encrypt was called with nothing to protect.
	ErrEmptyPlaintext = errors.New("plaintext cannot be empty")
	// ErrMalformedBlob indicates the blob is not valid base64 or is too
	// short to contain an IV, MAC, and at least one cipher block.
	ErrMalformedBlob = errors.New("malformed encrypted blob")
	// ErrAuthenticationFailed indicates the MAC did not verify; the blob was
	// tampered with or encrypted under a different key. Nothing is decrypted.
	ErrAuthenticationFailed = errors.New("blob authentication failed")
	// ErrNoKeyMaterial indicates no usable key source was configured.
	ErrNoKeyMaterial = errors.New("no key material available")
)

// KeyMaterial describes the key sources available to the host, in priority
// order: an explicit 32-byte key, two independent host secrets hashed
// together, and finally a site identifier for the non-production fallback.
type KeyMaterial struct {
	// Key is an explicit host-provided key. When set it must be exactly
	// 32 bytes.
	Key []byte
	// PrimarySecret and SecondarySecret are independent host secret values
	// (e.g. installation salts); both must be set for derivation.
	PrimarySecret   string
	SecondarySecret string
	// SiteID is the fallback source. Deriving from it gives a weaker
	// guarantee since site identifiers are often guessable.
	SiteID string
}

// Cipher encrypts and decrypts small secrets with tamper detection. The key
// is resolved once at construction; the instance is immutable afterwards and
// safe for concurrent use.
type Cipher struct {
	encKey   []byte
	macKey   []byte
	degraded bool
	logger   *slog.Logger
}

// NewCipher resolves the key through the priority chain and returns a ready
// cipher. A wrong-size explicit key or an empty chain is a construction
// error; falling back to the site identifier succeeds but marks the cipher
// degraded and logs a warning.
func NewCipher(km KeyMaterial, logger *slog.Logger) (*Cipher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	master, degraded, err := resolveMasterKey(km)
	if err != nil {
		return nil, err
	}
	if degraded {
		logger.Warn("secrets: no host key configured, deriving key from site identifier; " +
			"stored secrets have a reduced security guarantee")
	}

	// Independent subkeys for encryption and authentication, derived from
	// the master so the host only manages one secret.
	encKey := sha256.Sum256(append(master, []byte("/enc")...))
	macKey := sha256.Sum256(append(master, []byte("/mac")...))

	return &Cipher{
		encKey:   encKey[:],
		macKey:   macKey[:],
		degraded: degraded,
		logger:   logger,
	}, nil
}

// Degraded reports whether the key came from the site-identifier fallback.
func (c *Cipher) Degraded() bool { return c.degraded }

// Encrypt protects plaintext and returns the opaque blob. A fresh random IV
// is generated per call, so encrypting the same plaintext twice yields
// different blobs that both decrypt to it.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(c.encKey)
	if err != nil {
		return "", err
	}

	padded := padPKCS7([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := c.computeMAC(iv, ciphertext)

	blob := make([]byte, 0, ivSize+macSize+len(ciphertext))
	blob = append(blob, iv...)
	blob = append(blob, mac...)
	blob = append(blob, ciphertext...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt verifies and opens a blob produced by Encrypt. The MAC is
// recomputed and compared in constant time before any decryption happens;
// a mismatch returns ErrAuthenticationFailed with no partial plaintext.
func (c *Cipher) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", ErrMalformedBlob
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrMalformedBlob
	}
	if len(raw) < ivSize+macSize+aes.BlockSize {
		return "", ErrMalformedBlob
	}

	iv := raw[:ivSize]
	mac := raw[ivSize : ivSize+macSize]
	ciphertext := raw[ivSize+macSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrMalformedBlob
	}

	if !hmac.Equal(mac, c.computeMAC(iv, ciphertext)) {
		return "", ErrAuthenticationFailed
	}

	block, err := aes.NewCipher(c.encKey)
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpadPKCS7(plaintext, aes.BlockSize)
	if err != nil {
		// MAC verified, so bad padding means key confusion rather than
		// tampering; either way no plaintext leaves this function.
		return "", ErrMalformedBlob
	}
	return string(unpadded), nil
}

func (c *Cipher) computeMAC(iv, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, c.macKey)
	h.Write(iv)
	h.Write(ciphertext)
	return h.Sum(nil)
}

// resolveMasterKey walks the priority chain: explicit key, derived from the
// two host secrets, then the site-identifier fallback.
func resolveMasterKey(km KeyMaterial) (key []byte, degraded bool, err error) {
	if len(km.Key) > 0 {
		if len(km.Key) != keySize {
			return nil, false, errors.New("explicit key must be exactly 32 bytes")
		}
		return append([]byte(nil), km.Key...), false, nil
	}

	if km.PrimarySecret != "" && km.SecondarySecret != "" {
		sum := sha256.Sum256([]byte(km.PrimarySecret + "\x00" + km.SecondarySecret))
		return sum[:], false, nil
	}

	if km.SiteID != "" {
		sum := sha256.Sum256([]byte("aibridge-fallback\x00" + km.SiteID))
		return sum[:], true, nil
	}

	return nil, false, ErrNoKeyMaterial
}

func padPKCS7(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(pad)}, pad)...)
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	pad := int(data[len(data)-1])
	if pad < 1 || pad > blockSize {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-pad], nil
}
