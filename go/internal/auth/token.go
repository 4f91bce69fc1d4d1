package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
)

// Claims is the JWT body issued to fans and admins
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

// Verifier turns HS256 tokens into capabilities.
type Verifier struct {
	secret []byte
	issuer string
	clock  clockwork.Clock
}

// NewVerifier builds a verifier for tokens signed with secret.
func NewVerifier(secret []byte, issuer string, clock clockwork.Clock) (*Verifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Verifier{secret: secret, issuer: issuer, clock: clock}, nil
}

// Verify parses a token. An empty token is an anonymous viewer.
func (v *Verifier) Verify(token string) (Capability, error) {
	if token == "" {
		return Anonymous(), nil
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return Capability{}, mapJWTError(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Capability{}, fmt.Errorf("token has no subject: %w", apperrors.ErrUnauthorized)
	}

	role := claims.Role
	if role != RoleAdmin {
		role = RoleViewer
	}
	return Capability{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     role,
	}, nil
}

// Issue signs a token for userID valid for ttl.
func (v *Verifier) Issue(userID, username string, role Role, ttl time.Duration) (string, error) {
	now := v.clock.Now()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("token expired: %w", apperrors.ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("token signature invalid: %w", apperrors.ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("token issuer rejected: %w", apperrors.ErrUnauthorized)
	default:
		return fmt.Errorf("token rejected: %w", apperrors.ErrUnauthorized)
	}
}
