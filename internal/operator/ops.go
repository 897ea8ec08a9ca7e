package operator

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const totpIssuer = "GradeProof"

var (
	// ErrOperatorExists indicates a duplicate username.
	ErrOperatorExists = errors.New("operator already exists")
	// ErrOperatorNotFound indicates a missing operator.
	ErrOperatorNotFound = errors.New("operator not found")
	// ErrUsernameRequired indicates a missing username.
	ErrUsernameRequired = errors.New("username is required")
)

// CreateResult is returned when creating an operator.
type CreateResult struct {
	Operator   Operator
	Password   string
	TOTPSecret string
	TOTPURL    string
}

// TOTPResult contains a rotated TOTP secret.
type TOTPResult struct {
	Operator   Operator
	TOTPSecret string
	TOTPURL    string
}

// PasswordResult contains a changed password.
type PasswordResult struct {
	Operator Operator
	Password string
}

// Create adds a new operator with optional password generation.
func Create(store *Store, username, password string, now time.Time) (CreateResult, error) {
	if store == nil {
		return CreateResult{}, errors.New("operator store is nil")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return CreateResult{}, ErrUsernameRequired
	}
	if _, exists := store.Get(username); exists {
		return CreateResult{}, ErrOperatorExists
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if strings.TrimSpace(password) == "" {
		generated, err := generatePassword()
		if err != nil {
			return CreateResult{}, err
		}
		password = generated
	}
	secret, url, err := generateTOTP(username)
	if err != nil {
		return CreateResult{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return CreateResult{}, err
	}
	op := Operator{
		Username:     username,
		PasswordHash: string(hash),
		TOTPSecret:   secret,
		CreatedAt:    now,
	}
	store.Upsert(op)
	return CreateResult{
		Operator:   op,
		Password:   password,
		TOTPSecret: secret,
		TOTPURL:    url,
	}, nil
}

// RotateTOTP regenerates the TOTP secret for an operator.
func RotateTOTP(store *Store, username string) (TOTPResult, error) {
	if store == nil {
		return TOTPResult{}, errors.New("operator store is nil")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return TOTPResult{}, ErrUsernameRequired
	}
	op, ok := store.Get(username)
	if !ok {
		return TOTPResult{}, ErrOperatorNotFound
	}
	secret, url, err := generateTOTP(username)
	if err != nil {
		return TOTPResult{}, err
	}
	op.TOTPSecret = secret
	store.Upsert(op)
	return TOTPResult{
		Operator:   op,
		TOTPSecret: secret,
		TOTPURL:    url,
	}, nil
}

// ChangePassword updates an operator's password, generating one if empty.
func ChangePassword(store *Store, username, password string) (PasswordResult, error) {
	if store == nil {
		return PasswordResult{}, errors.New("operator store is nil")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return PasswordResult{}, ErrUsernameRequired
	}
	op, ok := store.Get(username)
	if !ok {
		return PasswordResult{}, ErrOperatorNotFound
	}
	if strings.TrimSpace(password) == "" {
		generated, err := generatePassword()
		if err != nil {
			return PasswordResult{}, err
		}
		password = generated
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return PasswordResult{}, err
	}
	op.PasswordHash = string(hash)
	store.Upsert(op)
	return PasswordResult{Operator: op, Password: password}, nil
}

// Remove deletes an operator by username.
func Remove(store *Store, username string) (Operator, error) {
	if store == nil {
		return Operator{}, errors.New("operator store is nil")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return Operator{}, ErrUsernameRequired
	}
	op, ok := store.Delete(username)
	if !ok {
		return Operator{}, ErrOperatorNotFound
	}
	return op, nil
}

func generatePassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func generateTOTP(username string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: username,
	})
	if err != nil {
		return "", "", err
	}
	secret := strings.TrimSpace(key.Secret())
	if secret == "" {
		return "", "", fmt.Errorf("totp secret missing")
	}
	return secret, key.URL(), nil
}
