package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"studenthub/student-api/internal/crypto"
	"studenthub/student-api/internal/model"
	"studenthub/student-api/internal/repository"
)

// SessionManager mediates the identity-sensitive operations: registration,
// login, authenticated profile access, logout, and token refresh. Tokens
// are always passed in explicitly; there is no ambient session state.
type SessionManager struct {
	store   repository.Store
	tokens  *TokenService
	revoked RevocationRegistry
}

func NewSessionManager(store repository.Store, tokens *TokenService, revoked RevocationRegistry) *SessionManager {
	return &SessionManager{
		store:   store,
		tokens:  tokens,
		revoked: revoked,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Language string
	Password string
}

// Session is the payload returned by login and refresh.
type Session struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// Register creates a student account. The password is hashed exactly once
// here; the store persists the hash verbatim.
func (m *SessionManager) Register(ctx context.Context, input RegisterInput) (model.Student, error) {
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return model.Student{}, err
	}

	now := time.Now().UTC()
	student := model.Student{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Email:        normalizeEmail(input.Email),
		Phone:        strings.TrimSpace(input.Phone),
		Language:     input.Language,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.CreateStudent(ctx, student); err != nil {
		return model.Student{}, err
	}
	return student, nil
}

// Login verifies credentials and issues a fresh session token. An unknown
// email and a wrong password both return ErrUnauthorized.
func (m *SessionManager) Login(ctx context.Context, email, password string) (Session, error) {
	student, err := m.store.GetStudentByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	if err := crypto.CheckPassword(student.PasswordHash, password); err != nil {
		return Session{}, ErrUnauthorized
	}
	return m.issue(student.ID)
}

// Profile resolves the token's subject to a student record.
func (m *SessionManager) Profile(ctx context.Context, token string) (model.Student, error) {
	claims, err := m.verify(ctx, token)
	if err != nil {
		return model.Student{}, err
	}
	student, err := m.store.GetStudentByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Student{}, ErrInvalidToken
		}
		return model.Student{}, err
	}
	return student, nil
}

// Logout adds the token's jti to the revocation registry. The token is
// verified with the same leeway as Refresh, so any token that could still
// mint a session can also be revoked. Revoking an already-revoked token
// succeeds, so concurrent or repeated logouts of the same token all return
// cleanly.
func (m *SessionManager) Logout(ctx context.Context, token string) error {
	claims, err := m.tokens.VerifyRefreshable(token)
	if err != nil {
		return err
	}
	return m.revoked.Revoke(ctx, claims.ID, m.revocationTTL(claims))
}

// Refresh exchanges a valid-or-just-expired token for a fresh one bound to
// the same subject. The presented token is revoked atomically before the
// new one is issued, so of any number of concurrent refreshes of the same
// token exactly one succeeds.
func (m *SessionManager) Refresh(ctx context.Context, token string) (Session, error) {
	claims, err := m.tokens.VerifyRefreshable(token)
	if err != nil {
		return Session{}, err
	}
	if _, err := m.store.GetStudentByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}
	first, err := m.revoked.RevokeOnce(ctx, claims.ID, m.revocationTTL(claims))
	if err != nil {
		return Session{}, err
	}
	if !first {
		return Session{}, ErrInvalidToken
	}
	return m.issue(claims.Subject)
}

func (m *SessionManager) issue(subject string) (Session, error) {
	token, _, err := m.tokens.Issue(subject)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(m.tokens.TTL().Seconds()),
	}, nil
}

func (m *SessionManager) verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// revocationTTL keeps the registry entry alive for the token's remaining
// validity plus the refresh grace, after which the token would be rejected
// on expiry alone.
func (m *SessionManager) revocationTTL(claims *Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return m.tokens.TTL() + m.tokens.grace
	}
	return time.Until(claims.ExpiresAt.Time) + m.tokens.grace
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
