package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims данные сессии внутри токена. Идентификатор токена (jti) хранится в
// RegisteredClaims.ID и используется для отзыва.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenID возвращает jti токена.
func (c *Claims) TokenID() string {
	return c.ID
}
