package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// KeySize - длина ключа AES-256
const KeySize = 32

// Ошибки шифрования токена
var (
	ErrInvalidKeyLength   = errors.New("encryption key must be exactly 32 bytes for AES-256")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrDecryptionFailed   = errors.New("decryption failed: authentication error")
)

// TokenCipher шифрует токен доступа брокера для хранения в .env или TOML.
//
// Формат: base64(nonce || ciphertext || tag), AES-256-GCM.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher создаёт шифр по ключу из ENCRYPTION_KEY (ровно 32 байта)
func NewTokenCipher(key string) (*TokenCipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &TokenCipher{aead: aead}, nil
}

// Seal шифрует токен; каждый вызов использует новый nonce
func (c *TokenCipher) Seal(token string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(token), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open расшифровывает значение, полученное из Seal.
// Пробелы и переводы строк по краям (копирование из терминала) игнорируются.
func (c *TokenCipher) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", ErrCiphertextTooShort
	}

	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// SealToken шифрует токен ключом key
func SealToken(token, key string) (string, error) {
	c, err := NewTokenCipher(key)
	if err != nil {
		return "", err
	}
	return c.Seal(token)
}

// OpenToken расшифровывает токен ключом key
func OpenToken(sealed, key string) (string, error) {
	c, err := NewTokenCipher(key)
	if err != nil {
		return "", err
	}
	return c.Open(sealed)
}

// GenerateKeyString возвращает случайный ключ из 32 печатных символов для .env
func GenerateKeyString() (string, error) {
	raw := make([]byte, KeySize*3/4)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
