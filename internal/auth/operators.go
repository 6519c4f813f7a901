package auth

import (
	"errors"
	"time"

	"github.com/annel0/mmo-npc/internal/config"
)

// ErrInvalidCredentials возвращается при неверном логине или пароле
var ErrInvalidCredentials = errors.New("invalid credentials")

// Operators проверяет учётные данные операторов по bcrypt-хэшам из
// конфигурации и выдаёт им токены.
type Operators struct {
	hashes map[string]string
	issuer *Issuer
}

// NewOperators создаёт аутентификатор операторов
func NewOperators(cfg config.AuthConfig) (*Operators, error) {
	issuer, err := NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]string, len(cfg.Operators))
	for name, hash := range cfg.Operators {
		hashes[name] = hash
	}
	return &Operators{hashes: hashes, issuer: issuer}, nil
}

// Login проверяет пароль и возвращает токен с моментом истечения
func (o *Operators) Login(username, password string) (string, time.Time, error) {
	hash, ok := o.hashes[username]
	if !ok || !CheckPassword(hash, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return o.issuer.Issue(username)
}

// Validate проверяет токен оператора
func (o *Operators) Validate(token string) (*Claims, error) {
	return o.issuer.Validate(token)
}
