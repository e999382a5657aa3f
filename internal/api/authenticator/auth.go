package authenticator

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/curaious/chrono/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const tokenTTL = 24 * time.Hour

// UserClaims are the access-token claims. Subject carries the user id.
type UserClaims struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a user id.
func (c *UserClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

// Authenticator issues and verifies HS256 access tokens.
type Authenticator struct {
	secret []byte
}

func New(conf *config.Config) *Authenticator {
	return &Authenticator{secret: []byte(conf.JWT_SECRET)}
}

// GenerateToken issues a signed access token for the user.
func (a *Authenticator) GenerateToken(userID int64, username, name, role string) (string, error) {
	now := time.Now()
	claims := UserClaims{
		Username: username,
		Name:     name,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyAccessToken validates a bearer token and returns its claims.
func (a *Authenticator) VerifyAccessToken(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TokenTTL is the lifetime of issued tokens, exposed for cookie expiry.
func (a *Authenticator) TokenTTL() time.Duration {
	return tokenTTL
}
