package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies the HS256 bearer tokens that represent
// a session. Tokens carry the student id as subject and a unique jti so
// individual tokens can be revoked.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	grace  time.Duration
}

func NewTokenService(secret, issuer string, ttl, grace time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		grace:  grace,
	}
}

func (t *TokenService) TTL() time.Duration {
	return t.ttl
}

func (t *TokenService) Issue(subject string) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Verify checks signature, issuer, and expiry. Revocation is the session
// manager's concern.
func (t *TokenService) Verify(tokenString string) (*Claims, error) {
	return t.parse(tokenString)
}

// VerifyRefreshable accepts tokens expired by at most the grace window,
// so a just-expired token can still be exchanged for a fresh one.
func (t *TokenService) VerifyRefreshable(tokenString string) (*Claims, error) {
	return t.parse(tokenString, jwt.WithLeeway(t.grace))
}

func (t *TokenService) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
	)
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
