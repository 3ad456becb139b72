package server

import (
	"errors"

	"github.com/hausgames/treasury/internal/token"
)

// ErrInvalidToken indicates the presented credential is invalid.
var ErrInvalidToken = errors.New("server: invalid token")

// Validator checks a connecting operator's credential and returns the
// address the connection is allowed to act as.
type Validator interface {
	Validate(address, credential string) (token.Address, error)
}

// StaticValidator binds fixed credentials to addresses, loaded from the
// platform config.
type StaticValidator struct {
	tokens map[string]token.Address
}

// NewStaticValidator creates a validator over a credential → address map.
func NewStaticValidator(tokens map[string]token.Address) *StaticValidator {
	return &StaticValidator{tokens: tokens}
}

func (v *StaticValidator) Validate(address, credential string) (token.Address, error) {
	addr, ok := v.tokens[credential]
	if !ok || (address != "" && token.Address(address) != addr) {
		return token.ZeroAddress, ErrInvalidToken
	}
	return addr, nil
}

// NoopValidator accepts any connection as the address it claims (dev mode).
type NoopValidator struct{}

// NewNoopValidator creates a validator that allows all connections.
func NewNoopValidator() *NoopValidator {
	return &NoopValidator{}
}

func (v *NoopValidator) Validate(address, credential string) (token.Address, error) {
	if address == "" {
		return token.ZeroAddress, ErrInvalidToken
	}
	return token.Address(address), nil
}
