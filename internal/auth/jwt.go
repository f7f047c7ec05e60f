// Package auth is the authentication collaborator: it verifies bearer tokens
// and yields the owner id of the calling user.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const contextKey = "user"

// Claims identifies the owner a token was issued for. Tokens minted by other
// issuers may carry only the registered subject.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Owner returns the user id, falling back to the subject.
func (c *Claims) Owner() string {
	if c == nil {
		return ""
	}
	if id := strings.TrimSpace(c.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}

// JWTMiddleware verifies HS256 bearer tokens from the Authorization header
// or the token query parameter.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Name,
		ContextKey:    contextKey,
		TokenLookup:   "header:Authorization:Bearer ,query:token",
		Skipper:       skipper,
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(Claims) },
	})
}

// UserIDFromContext returns the owner of the verified token on c.
func UserIDFromContext(c echo.Context) (string, error) {
	token, ok := c.Get(contextKey).(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	owner := claims.Owner()
	if owner == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "user id missing")
	}
	return owner, nil
}

// GenerateToken signs a token for userID that expires after expiresIn.
func GenerateToken(userID, secret string, expiresIn time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	switch {
	case userID == "":
		return "", time.Time{}, errors.New("user id is required")
	case strings.TrimSpace(secret) == "":
		return "", time.Time{}, errors.New("jwt secret is required")
	case expiresIn <= 0:
		return "", time.Time{}, errors.New("token lifetime must be positive")
	}

	issued := time.Now().UTC().Truncate(time.Second)
	expires := issued.Add(expiresIn)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}
