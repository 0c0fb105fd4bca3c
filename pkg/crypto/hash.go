package crypto

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки хеширования
var (
	ErrEmptySecret    = errors.New("secret cannot be empty")
	ErrSecretTooLong  = errors.New("secret exceeds maximum length of 72 bytes")
	ErrSecretMismatch = errors.New("secret does not match")
)

// DefaultCost - стоимость хеширования по умолчанию
const DefaultCost = 12

// MaxSecretLength - максимальная длина секрета для bcrypt (72 байта)
const MaxSecretLength = 72

// bcryptPrefix - признак bcrypt хеша в конфигурации ($2a$, $2b$, $2y$)
const bcryptPrefix = "$2"

// HashSecret хеширует секрет планировщика для хранения в конфигурации
func HashSecret(secret string, cost int) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if len(secret) > MaxSecretLength {
		return "", ErrSecretTooLong
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IsHashed возвращает true, если значение похоже на bcrypt хеш
func IsHashed(configured string) bool {
	return strings.HasPrefix(configured, bcryptPrefix)
}

// VerifySecret сравнивает присланный секрет с настроенным.
//
// configured может быть открытым значением или bcrypt хешем.
// Открытое значение сравнивается за постоянное время.
func VerifySecret(provided, configured string) error {
	if provided == "" || configured == "" {
		return ErrEmptySecret
	}

	if IsHashed(configured) {
		if err := bcrypt.CompareHashAndPassword([]byte(configured), []byte(provided)); err != nil {
			return ErrSecretMismatch
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
		return ErrSecretMismatch
	}
	return nil
}
