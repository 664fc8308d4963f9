package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
)

const (
	tokenIssuer = "ems"
	tokenLeeway = 30 * time.Second
)

// tokenParser accepts HS256 tokens from this issuer only.
var tokenParser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithIssuer(tokenIssuer),
	jwt.WithExpirationRequired(),
	jwt.WithLeeway(tokenLeeway),
)

// UserClaims identifies a signed-in user and the role the token was issued for.
type UserClaims struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a user JWT that expires after expiry.
func GenerateToken(secret string, userID uint64, username, role string, expiry time.Duration) (string, error) {
	issued := time.Now().UTC()
	claims := &UserClaims{UserID: userID, Username: username, Role: role}
	claims.ID = uuid.NewString()
	claims.Issuer = tokenIssuer
	claims.Subject = strconv.FormatUint(userID, 10)
	claims.IssuedAt = jwt.NewNumericDate(issued)
	claims.NotBefore = jwt.NewNumericDate(issued)
	claims.ExpiresAt = jwt.NewNumericDate(issued.Add(expiry))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a user JWT and returns its claims.
func ParseToken(secret string, tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	_, errParse := tokenParser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	switch {
	case errors.Is(errParse, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errParse != nil:
		return nil, ErrInvalidToken
	case claims.UserID == 0 || claims.Subject != strconv.FormatUint(claims.UserID, 10):
		return nil, ErrInvalidToken
	}
	return claims, nil
}
