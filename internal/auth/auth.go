package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/dcrodman/tether/internal/core/data"
	"github.com/dcrodman/tether/internal/packets"
)

var (
	ErrInvalidCredentials = errors.New("username/password combination not found")
	ErrAccountBanned      = errors.New("this account has been suspended")
	ErrTokenExists        = errors.New("token is already in use")
)

const tokenBytes = packets.AuthResponseSize / 2

var tracer = otel.Tracer("github.com/dcrodman/tether/internal/auth")

// NewToken returns a random session token of 32 lowercase hex characters. Tokens
// always fill the AuthResponse field and can never collide with the failure sentinel.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword returns a version of password with tether's chosen hashing strategy.
func HashPassword(password string) string {
	hash := sha256.Sum256([]byte(password))
	return hex.EncodeToString(hash[:])
}

// NormalizeUsername returns the NFC form of username so that visually identical
// names map to the same account.
func NormalizeUsername(username string) string {
	return norm.NFC.String(username)
}

// Authenticator decides whether a decoded AuthRequest may start a session.
type Authenticator struct {
	// VerifyCredentials enables checking against the accounts table. When false
	// every request is accepted.
	VerifyCredentials bool
	DB                *gorm.DB
}

// Authenticate returns nil if the credentials are acceptable.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) error {
	_, span := tracer.Start(ctx, "auth.Authenticate")
	defer span.End()
	span.SetAttributes(attribute.Bool("auth.verify_credentials", a.VerifyCredentials))

	if !a.VerifyCredentials {
		return nil
	}

	_, err := VerifyAccount(a.DB, username, password)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// VerifyAccount checks the accounts table for the specified credentials
// combination and validates that the account is accessible.
func VerifyAccount(db *gorm.DB, username, password string) (*data.Account, error) {
	if db == nil {
		return nil, errors.New("credential verification requires a database")
	}

	account, err := data.FindAccountByUsername(db, NormalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("error finding account: %w", err)
	}

	if account == nil || account.Password != HashPassword(password) {
		return nil, ErrInvalidCredentials
	} else if account.Banned {
		return nil, ErrAccountBanned
	}

	return account, nil
}

// CreateAccount takes the specified credentials and creates a new record in
// the database, returning either the result or any errors encountered.
func CreateAccount(db *gorm.DB, username, password string) (*data.Account, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if len(username) > packets.UsernameLength {
		return nil, fmt.Errorf("username may be at most %d bytes", packets.UsernameLength)
	}
	if len(password) > packets.PasswordLength {
		return nil, fmt.Errorf("password may be at most %d bytes", packets.PasswordLength)
	}

	account := &data.Account{
		Username: NormalizeUsername(username),
		Password: HashPassword(password),
	}
	if err := data.CreateAccount(db, account); err != nil {
		return nil, err
	}
	return account, nil
}
