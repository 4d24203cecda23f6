package auth

import (
	"time"

	"github.com/kochabx/authgate/core/auth/token"
)

type loginRequest struct {
	Username string `json:"username" binding:"required,max=128"`
	Password string `json:"password" binding:"required,max=256"`
}

type mfaVerifyRequest struct {
	Username string `json:"username" binding:"required,max=128"`
	Code     string `json:"code" binding:"required,numeric,min=6,max=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type totpEnableRequest struct {
	Secret string `json:"secret" binding:"required"`
	Code   string `json:"code" binding:"required,numeric,min=6,max=8"`
}

type unlockRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// mfaPending 密码校验通过但需要第二因素
type mfaPending struct {
	MFARequired bool   `json:"mfa_required"`
	Method      string `json:"method"`
}

const (
	methodCode = "code"
	methodTOTP = "totp"
)

type loginResponse struct {
	*token.Pair
	CSRFToken string `json:"csrf_token"`
	Role      string `json:"role"`
}

type sessionView struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

type totpSetupResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	// base64 PNG
	QRCode string `json:"qr_code"`
}
