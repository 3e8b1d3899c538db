// Package secretcodec encrypts credential strings stored in the control
// plane database.
//
// Ciphertext is "v1:" followed by base64(nonce|sealed). The AES-256-GCM key
// is derived once per process from the configured secret with Argon2id.
package secretcodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"golang.org/x/crypto/argon2"
)

const (
	envelopePrefix = "v1:"
	keySize        = 32
	nonceSize      = 12
	memory         = 64 * 1024
	iterations     = 1
	parallelism    = 4
)

// the key is derived from an operator supplied secret, not a user password,
// so a fixed salt is sufficient.
var kdfSalt = []byte("deskpro.secretcodec.v1")

var (
	ErrCodec         = apperrors.New("secret codec error")
	ErrEmptySecret   = ErrCodec.New("field encryption key is not configured")
	ErrDecryptFailed = ErrCodec.New("unable to decrypt value")
)

type Codec struct {
	aead cipher.AEAD
}

func deriveKey(secret []byte) []byte {
	return argon2.IDKey(secret, kdfSalt, iterations, memory, uint8(parallelism), keySize)
}

func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	block, err := aes.NewCipher(deriveKey([]byte(secret)))
	if err != nil {
		return nil, ErrCodec.Err(err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, ErrCodec.Err(err)
	}
	return &Codec{aead: aead}, nil
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrCodec.Err(err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return envelopePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the envelope prefix are rows
// written before encryption was enabled and are returned unchanged. A value
// with the prefix that fails to open is an error.
func (c *Codec) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if !IsEncrypted(value) {
		log.Warn().Msg("secretcodec: value is not encrypted, returning it unchanged")
		return value, nil
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, envelopePrefix))
	if err != nil {
		return "", ErrDecryptFailed.Err(err)
	}
	if len(blob) < nonceSize+c.aead.Overhead() {
		return "", ErrDecryptFailed.Msg("ciphertext too short")
	}
	plaintext, err := c.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptFailed.Err(err)
	}
	return string(plaintext), nil
}

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, envelopePrefix)
}
