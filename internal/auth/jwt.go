// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth issues and verifies the confirmation tokens that the
// dispatcher requires before executing a critical-risk tool (spec.md
// §4.4 step 4). A confirmation token is a short-lived JWT binding a
// specific agent to a specific tool name; it is not a login session.
package auth

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/MohaMehrzad/aios-core/internal/config"
)

// confirmationTokenContext is the HKDF "info" parameter binding the
// derived signing key to this one purpose, so the same configured
// secret can be reused elsewhere (e.g. token encryption) without key
// reuse across contexts.
var confirmationTokenContext = []byte("aios-core/confirmation-token/v1")

// deriveSigningKey stretches the operator-configured secret into a
// dedicated HMAC key via HKDF-SHA256, the same construction the
// teacher's token_encryption.go uses to separate a single configured
// secret into independent per-purpose keys.
func deriveSigningKey(secret []byte) ([]byte, error) {
	key := make([]byte, sha256.Size)
	reader := hkdf.New(sha256.New, secret, nil, confirmationTokenContext)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("auth: derive confirmation signing key: %w", err)
	}
	return key, nil
}

// ConfirmationClaims binds a confirmation token to one agent and one tool.
// A token minted for fs.delete cannot be replayed against proc.kill.
type ConfirmationClaims struct {
	AgentID  string `json:"agent_id"`
	ToolName string `json:"tool_name"`
	jwt.RegisteredClaims
}

// ConfirmationManager issues and validates confirmation tokens used to
// satisfy the dispatcher's ErrorKindConfirmationRequired check.
type ConfirmationManager struct {
	secret []byte
	ttl    time.Duration
}

// NewConfirmationManager builds a manager from the registry config's
// ConfirmationSecret (validated at config load to be at least 32 bytes).
func NewConfirmationManager(cfg *config.RegistryConfig) (*ConfirmationManager, error) {
	if len(cfg.ConfirmationSecret) < 32 {
		return nil, fmt.Errorf("auth: confirmation secret must be at least 32 characters")
	}
	ttl := cfg.DefaultToolTimeout
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	key, err := deriveSigningKey([]byte(cfg.ConfirmationSecret))
	if err != nil {
		return nil, err
	}
	return &ConfirmationManager{secret: key, ttl: ttl}, nil
}

// IssueToken mints a confirmation token authorizing agentID to execute
// toolName once, within the manager's TTL window.
func (m *ConfirmationManager) IssueToken(agentID, toolName string) (string, error) {
	now := time.Now()
	claims := &ConfirmationClaims{
		AgentID:  agentID,
		ToolName: toolName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign confirmation token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and checks that it confirms agentID for
// toolName specifically - a token minted for a different agent or tool
// is rejected even if otherwise well-formed and unexpired.
func (m *ConfirmationManager) Verify(tokenString, agentID, toolName string) (*ConfirmationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ConfirmationClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse confirmation token: %w", err)
	}

	claims, ok := token.Claims.(*ConfirmationClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid confirmation token claims")
	}
	if claims.AgentID != agentID || claims.ToolName != toolName {
		return nil, fmt.Errorf("auth: confirmation token does not match agent/tool")
	}
	return claims, nil
}
