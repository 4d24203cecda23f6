package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/core/audit"
	"github.com/kochabx/authgate/core/auth/token/cache"
	apperrors "github.com/kochabx/authgate/errors"
	middleware "github.com/kochabx/authgate/middleware/http"
	"github.com/kochabx/authgate/transport/http"
)

func (h *Handler) claims(c *gin.Context) (string, string, bool) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		http.GinError(c, apperrors.ErrAuthentication)
		return "", "", false
	}
	return claims.UserID(), claims.SessionID, true
}

// logout 吊销当前会话，拉黑当前 access token 并删除 CSRF token
func (h *Handler) logout(c *gin.Context) {
	userID, sid, ok := h.claims(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := h.Tokens.Revoke(ctx, userID, sid); err != nil {
		http.GinError(c, err)
		return
	}
	h.blacklistCurrent(c)
	if err := h.CSRF.Delete(ctx, sid); err != nil {
		h.Logger.Warn().Err(err).Str("session_id", sid).Msg("delete csrf token failed")
	}

	h.record(c, audit.Event{Type: audit.Logout, Success: true})
	http.GinJSON(c, nil)
}

// logoutAll 吊销用户全部会话
func (h *Handler) logoutAll(c *gin.Context) {
	userID, _, ok := h.claims(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	sessions, err := h.Tokens.Sessions(ctx, userID)
	if err != nil {
		http.GinError(c, err)
		return
	}
	if err := h.Tokens.Revoke(ctx, userID, ""); err != nil {
		http.GinError(c, err)
		return
	}
	h.blacklistCurrent(c)
	for _, s := range sessions {
		if err := h.CSRF.Delete(ctx, s.SessionID); err != nil {
			h.Logger.Warn().Err(err).Str("session_id", s.SessionID).Msg("delete csrf token failed")
		}
	}

	h.record(c, audit.Event{
		Type:     audit.SessionsRevoked,
		Success:  true,
		Metadata: map[string]string{"count": itoa(len(sessions))},
	})
	http.GinJSON(c, gin.H{"revoked": len(sessions)})
}

func (h *Handler) blacklistCurrent(c *gin.Context) {
	raw, ok := middleware.BearerToken(c.Request)
	if !ok {
		return
	}
	if err := h.Tokens.Blacklist(c.Request.Context(), raw); err != nil {
		h.Logger.Warn().Err(err).Msg("blacklist access token failed")
	}
}

// regenerateCSRF 替换当前会话的 CSRF token
func (h *Handler) regenerateCSRF(c *gin.Context) {
	_, sid, ok := h.claims(c)
	if !ok {
		return
	}
	t, err := h.CSRF.Generate(c.Request.Context(), sid)
	if err != nil {
		http.GinError(c, apperrors.Internal("generate csrf token").WithCause(err))
		return
	}
	http.GinJSON(c, gin.H{"csrf_token": t})
}

func (h *Handler) me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		http.GinError(c, apperrors.ErrAuthentication)
		return
	}
	http.GinJSON(c, gin.H{
		"user_id":    claims.UserID(),
		"role":       claims.Role,
		"session_id": claims.SessionID,
		"expires_at": claims.ExpiresAt.Time,
	})
}

func (h *Handler) sessions(c *gin.Context) {
	userID, sid, ok := h.claims(c)
	if !ok {
		return
	}
	list, err := h.Tokens.Sessions(c.Request.Context(), userID)
	if err != nil {
		http.GinError(c, err)
		return
	}
	http.GinJSON(c, views(list, sid))
}

func views(list []*cache.Session, current string) []sessionView {
	out := make([]sessionView, 0, len(list))
	for _, s := range list {
		out = append(out, sessionView{
			SessionID: s.SessionID,
			Role:      s.Role,
			IssuedAt:  s.IssuedAt,
			ExpiresAt: s.ExpiresAt,
			Current:   s.SessionID == current,
		})
	}
	return out
}

// setupTOTP 生成新密钥与二维码，密钥在 enableTOTP 校验通过后才保存
func (h *Handler) setupTOTP(c *gin.Context) {
	userID, _, ok := h.claims(c)
	if !ok {
		return
	}
	u, err := h.Directory.FindByID(c.Request.Context(), userID)
	if err != nil {
		http.GinError(c, apperrors.NotFound("user not found").WithCause(err))
		return
	}

	secret, err := h.TOTP.GenerateSecret()
	if err != nil {
		http.GinError(c, apperrors.Internal("generate totp secret").WithCause(err))
		return
	}
	issuer := h.MFA.Config().Issuer
	uri, err := h.TOTP.ProvisioningURI(u.Username, issuer, secret)
	if err != nil {
		http.GinError(c, apperrors.Internal("provisioning uri").WithCause(err))
		return
	}
	qr, err := h.TOTP.ProvisioningQRCode(u.Username, issuer, secret)
	if err != nil {
		http.GinError(c, apperrors.Internal("provisioning qr code").WithCause(err))
		return
	}
	http.GinJSON(c, totpSetupResponse{Secret: secret, URI: uri, QRCode: qr})
}

func (h *Handler) enableTOTP(c *gin.Context) {
	userID, _, ok := h.claims(c)
	if !ok {
		return
	}
	var req totpEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		http.GinError(c, apperrors.BadRequest("invalid request body"))
		return
	}

	valid, err := h.TOTP.ValidateCode(req.Secret, req.Code)
	if err != nil {
		http.GinError(c, apperrors.BadRequest("invalid totp secret"))
		return
	}
	if !valid {
		h.rejectMFA(c, userID, "totp enrollment code rejected")
		return
	}
	if err := h.Directory.SetTOTP(c.Request.Context(), userID, req.Secret); err != nil {
		http.GinError(c, apperrors.Internal("save totp secret").WithCause(err))
		return
	}
	h.record(c, audit.Event{Type: audit.MFASuccess, Success: true, Reason: "totp enabled"})
	http.GinJSON(c, gin.H{"mfa_enabled": true})
}
