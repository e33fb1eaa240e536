package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quick-chat/domain/chat"
)

// Claims is the data stored inside a session JWT. The subject carries the
// user id; the identity is resolved once per connection from these claims,
// never re-derived later.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates session tokens. The secret comes from
// configuration; there is no package-level key.
type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration}
}

// Generate creates a signed HS256 JWT for a specific user.
func (m *TokenManager) Generate(userID chat.UserID, username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(int64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "quick-chat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses a JWT string, checks signature and expiration, and
// returns the resolved user id.
func (m *TokenManager) Validate(tokenString string) (chat.UserID, *Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return 0, nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, nil, jwt.ErrSignatureInvalid
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, nil, jwt.ErrTokenInvalidSubject
	}
	return chat.UserID(id), claims, nil
}
