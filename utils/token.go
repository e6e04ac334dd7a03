package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidFileToken = errors.New("invalid or expired file token")

// FileTokens signs short lived download links for locally stored files.
type FileTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewFileTokens(secret string, ttl time.Duration) *FileTokens {
	if secret == "" {
		secret = GenerateSecret()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &FileTokens{secret: []byte(secret), ttl: ttl}
}

func GenerateSecret() string {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to generate file token secret")
	}
	return base64.StdEncoding.EncodeToString(key)
}

func (t *FileTokens) Sign(key string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	})
	return token.SignedString(t.secret)
}

// Verify checks that tokenString was issued for key and has not expired.
func (t *FileTokens) Verify(tokenString, key string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject != key {
		return ErrInvalidFileToken
	}
	return nil
}
