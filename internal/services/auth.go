package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"ecosense/internal/identity"
	"ecosense/internal/models"
)

// userStore is the slice of the user repository the auth flows need.
type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type AuthService struct {
	users      userStore
	authMode   string
	authSecret string
	tokenTTL   time.Duration
}

func NewAuthService(users userStore, authMode, authSecret string) *AuthService {
	return &AuthService{
		users:      users,
		authMode:   authMode,
		authSecret: authSecret,
		tokenTTL:   7 * 24 * time.Hour,
	}
}

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if !usernameRegex.MatchString(req.Username) {
		return nil, &ValidationError{Message: "Username must be 3-32 lowercase letters, digits or underscores"}
	}
	if len(req.Password) < 8 {
		return nil, &ValidationError{Message: "Password must be at least 8 characters"}
	}

	// Check uniqueness
	_, err := s.users.GetByUsername(ctx, req.Username)
	if err == nil {
		return nil, &ConflictError{Message: "Username already taken"}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Hash password (bcrypt cost 12)
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(hash)

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	user := &models.User{
		Username:     req.Username,
		DisplayName:  displayName,
		PasswordHash: &hashStr,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthorizedError{Message: "Invalid username or password"}
		}
		return nil, err
	}

	// Accounts without a password (the seeded anonymous user) cannot log in.
	if user.PasswordHash == nil {
		return nil, &UnauthorizedError{Message: "Invalid username or password"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &UnauthorizedError{Message: "Invalid username or password"}
	}

	token, err := s.issueCredential(user)
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{Token: token, User: user}, nil
}

// issueCredential returns what the session resolver will accept back: the
// bare username in plaintext mode, a signed token in signed mode.
func (s *AuthService) issueCredential(user *models.User) (string, error) {
	if s.authMode == "signed" {
		token, err := identity.SignToken(s.authSecret, user.Username, s.tokenTTL)
		if err != nil {
			return "", fmt.Errorf("failed to sign session token: %w", err)
		}
		return token, nil
	}
	return user.Username, nil
}
