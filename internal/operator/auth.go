package operator

import (
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator validates operator login credentials.
type Authenticator struct {
	Operators *Store
}

// NewAuthenticator returns an Authenticator.
func NewAuthenticator(operators *Store) *Authenticator {
	return &Authenticator{Operators: operators}
}

// Validate checks username/password/TOTP. The TOTP code is skipped when the
// operator has no secret enrolled.
func (a *Authenticator) Validate(username, password, code string, now time.Time) (Operator, error) {
	if a.Operators == nil {
		return Operator{}, ErrInvalidCredentials
	}
	op, ok := a.Operators.Get(username)
	if !ok {
		return Operator{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return Operator{}, ErrInvalidCredentials
	}
	if op.TOTPSecret != "" {
		valid, err := totp.ValidateCustom(code, op.TOTPSecret, now, totp.ValidateOpts{
			Period:    30,
			Skew:      1,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil || !valid {
			return Operator{}, ErrInvalidCredentials
		}
	}
	return op, nil
}
