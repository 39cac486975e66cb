package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"qpin/internal/domain"
)

// enduserSalt is fixed so the same shared secret always derives the same
// key across restarts; there is no server-side record to store a per-token
// key against. Known weakness: a fixed salt gives up protection against
// precomputed-dictionary attacks on weak secrets. Changing it would
// invalidate every issued enduser token, so it stays.
const enduserSalt = "stable_salt"

// separator joins the display name and the nonce inside the plaintext.
// Display names must not contain it.
const separator = ":"

const enduserKeyLen = 32

// EnduserEncoder mints and checks the self-contained encrypted token that
// lets endusers authenticate without a database-backed credential. Validity
// is proven purely by successful decryption plus a name match; revocation
// is only possible by rotating the shared secret.
type EnduserEncoder struct {
	gcm cipher.AEAD
}

// NewEnduserEncoder derives an AES-256 key from the shared secret with
// PBKDF2-HMAC-SHA256 and prepares the AEAD.
func NewEnduserEncoder(secret string, iterations int) (*EnduserEncoder, error) {
	if secret == "" {
		return nil, fmt.Errorf("encoder secret is required")
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("KDF iteration count must be positive, got %d", iterations)
	}
	key := pbkdf2.Key([]byte(secret), []byte(enduserSalt), iterations, enduserKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &EnduserEncoder{gcm: gcm}, nil
}

// Encode encrypts the display name together with a fresh random nonce and
// returns a base64url blob safe to embed in a request body. Two calls with
// the same name always produce distinct outputs.
func (e *EnduserEncoder) Encode(displayName string) (string, error) {
	if displayName == "" {
		return "", domain.ErrValidation("display name is required")
	}
	if strings.Contains(displayName, separator) {
		return "", domain.ErrValidation("display name must not contain %q", separator)
	}

	pad := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, pad); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	plaintext := displayName + separator + base64.RawURLEncoding.EncodeToString(pad)

	gcmNonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, gcmNonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := e.gcm.Seal(gcmNonce, gcmNonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Matches decrypts the credential and compares the embedded name with
// expectedName. Every failure mode (malformed encoding, truncated input,
// failed decryption, mismatched name) returns false and nothing else.
func (e *EnduserEncoder) Matches(credential, expectedName string) bool {
	ciphertext, err := base64.RawURLEncoding.DecodeString(credential)
	if err != nil {
		return false
	}
	nonceSize := e.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return false
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return false
	}
	name, _, ok := strings.Cut(string(plaintext), separator)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(name), []byte(expectedName)) == 1
}
