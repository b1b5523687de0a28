package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/proktor-id/proktor-backend/internal/config"
)

// SessionClaims extends JWT standard claims with the attempt binding. The
// token authorizes the stream endpoint only; it carries no user identity
// beyond the ticket the attempt was started with.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID  string `json:"session_id"`
	TicketCode string `json:"ticket_code"`
}

// TokenService issues and validates the session tokens that bind a WebSocket
// stream (and reconnects after a reload) to a live attempt.
type TokenService struct {
	cfg *config.Config
}

// NewTokenService creates a new TokenService.
func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{cfg: cfg}
}

// Generate creates a signed token for the given attempt.
func (s *TokenService) Generate(sessionID, ticketCode string) (string, error) {
	now := time.Now()

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ticketCode,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTokenExpiry)),
		},
		SessionID:  sessionID,
		TicketCode: ticketCode,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SessionTokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and validates a session token, returning the claims.
func (s *TokenService) Validate(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.SessionTokenSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
