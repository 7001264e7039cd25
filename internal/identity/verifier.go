package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"

	"ecosense/internal/models"
)

// UserStore is the user lookup the verifiers run against. Implementations
// return pgx.ErrNoRows when no user has the given username.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Verifier maps a presented credential to a user ID. A nil ID with a nil
// error means the credential identifies nobody; a non-nil error means the
// store could not be consulted.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*int64, error)
}

// PlaintextVerifier treats the credential as a bare username and looks it up
// directly. This is the development session scheme: no signature, no expiry.
type PlaintextVerifier struct {
	store UserStore
}

func NewPlaintextVerifier(store UserStore) *PlaintextVerifier {
	return &PlaintextVerifier{store: store}
}

func (v *PlaintextVerifier) Verify(ctx context.Context, credential string) (*int64, error) {
	return lookupUsername(ctx, v.store, credential)
}

// SignedTokenVerifier expects the credential to be an HS256 token carrying a
// username claim, as issued by SignToken.
type SignedTokenVerifier struct {
	store  UserStore
	secret []byte
}

func NewSignedTokenVerifier(store UserStore, secret string) *SignedTokenVerifier {
	return &SignedTokenVerifier{store: store, secret: []byte(secret)}
}

func (v *SignedTokenVerifier) Verify(ctx context.Context, credential string) (*int64, error) {
	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		// A malformed or expired token identifies nobody; that is not a
		// store failure.
		return nil, nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, nil
	}
	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return nil, nil
	}

	return lookupUsername(ctx, v.store, username)
}

func lookupUsername(ctx context.Context, store UserStore, username string) (*int64, error) {
	user, err := store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session user lookup failed: %w", err)
	}
	return &user.ID, nil
}

// SignToken issues the credential SignedTokenVerifier accepts.
func SignToken(secret, username string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"username": username,
		"exp":      time.Now().Add(ttl).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
