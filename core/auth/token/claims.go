package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Type token 类型
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims token 载荷，Subject 为用户 ID，ID 为 jti
type Claims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	Type      Type   `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID 用户 ID
func (c *Claims) UserID() string {
	return c.Subject
}

// Pair 登录签发的 token 对
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	SessionID    string `json:"session_id"`
	// access token 剩余秒数
	ExpiresIn int64 `json:"expires_in"`
}
