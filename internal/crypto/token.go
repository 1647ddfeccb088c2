package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Cipher 对第三方访问令牌做静态加密（AES-256-GCM）。
// 信封格式与历史数据兼容：ivHex:authTagHex:cipherHex。
type Cipher struct {
	key []byte
}

const (
	ivSize  = 16
	tagSize = 16
)

var (
	// ErrIntegrity indicates the authentication tag did not verify:
	// tampered or corrupted ciphertext, or the wrong key.
	ErrIntegrity = errors.New("crypto: ciphertext integrity check failed")

	// ErrMalformedEnvelope indicates the envelope is structurally invalid
	// (missing or non-hex iv/tag/ciphertext fields).
	ErrMalformedEnvelope = errors.New("crypto: malformed envelope")
)

// ParseKey decodes a 64-hex-character key into 32 raw bytes.
func ParseKey(hexKey string) ([]byte, error) {
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("encryption key must be 64 hex characters (32 bytes), got %d", len(hexKey))
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	return key, nil
}

// GenerateKey returns a fresh random key as a 64-character hex string.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// NewCipher 创建密码器；key 必须为 32 字节。
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher key must be 32 bytes, got %d", len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Cipher{key: k}, nil
}

// Encrypt seals plaintext with a freshly generated random IV. Two calls on
// the same plaintext never produce the same envelope.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	// GCM appends the tag to the ciphertext; the envelope stores it separately.
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	), nil
}

// Decrypt opens an envelope. A structurally bad envelope returns
// ErrMalformedEnvelope; a failed tag check returns ErrIntegrity. No partial
// plaintext is ever returned.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	// 空密文段合法：空明文的 GCM 输出只有认证标签
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", ErrMalformedEnvelope
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", ErrMalformedEnvelope
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrMalformedEnvelope
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedEnvelope
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}
