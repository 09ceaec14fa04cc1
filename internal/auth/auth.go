// Package auth handles account registration, password login, and the JWT
// bearer tokens that gate both the REST API and the game WebSocket.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lox/holdem-arena/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidToken means the bearer token failed verification
	ErrInvalidToken = errors.New("invalid token")
)

const defaultTokenTTL = 24 * time.Hour

// Claims is the JWT payload
type Claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Service issues and verifies tokens against the user store
type Service struct {
	store    *store.Store
	secret   []byte
	tokenTTL time.Duration
}

// New creates the auth service. tokenTTL <= 0 selects the default of 24h.
func New(st *store.Store, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &Service{store: st, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Register creates an account and returns it with a fresh token. Both the
// username and the email must be unique.
func (s *Service) Register(username, email, password string) (*store.User, string, error) {
	if username == "" || email == "" || password == "" {
		return nil, "", fmt.Errorf("username, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.store.CreateUser(username, email, string(hash), false)
	if err != nil {
		return nil, "", err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate verifies a username/password pair and returns a fresh token
func (s *Service) Authenticate(username, password string) (*store.User, string, error) {
	user, err := s.store.GetUserByUsername(username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// IssueToken signs a bearer token for the user
func (s *Service) IssueToken(user *store.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// VerifyToken parses and validates a bearer token
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SetLLMKey stores the user-tier LLM credentials
func (s *Service) SetLLMKey(userID, provider, apiKey string) error {
	return s.store.SetUserLLMKey(userID, provider, apiKey)
}

// ClearLLMKey removes the user-tier LLM credentials
func (s *Service) ClearLLMKey(userID string) error {
	return s.store.ClearUserLLMKey(userID)
}
