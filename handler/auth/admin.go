package auth

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/core/audit"
	apperrors "github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/transport/http"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

func itoa(n int) string { return strconv.Itoa(n) }

// auditLog 最近的审计事件，带 user_id 且配置了数据库时从数据库查询
func (h *Handler) auditLog(c *gin.Context) {
	limit := defaultAuditLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.GinError(c, apperrors.BadRequest("invalid limit"))
			return
		}
		limit = min(n, maxAuditLimit)
	}

	userID := c.Query("user_id")
	if userID != "" && h.AuditQuerier != nil {
		events, err := h.AuditQuerier.Query(c.Request.Context(), userID, limit)
		if err != nil {
			http.GinError(c, apperrors.Internal("query audit events").WithCause(err))
			return
		}
		http.GinJSON(c, events)
		return
	}

	events := h.Audit.Recent(0)
	out := make([]audit.Event, 0, min(limit, len(events)))
	for _, e := range events {
		if len(out) == limit {
			break
		}
		if userID == "" || e.UserID == userID {
			out = append(out, e)
		}
	}
	http.GinJSON(c, out)
}

// unlock 解除标识（user:<name> / ip:<addr> / mfa:<id>）的锁定
func (h *Handler) unlock(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		http.GinError(c, apperrors.BadRequest("invalid request body"))
		return
	}
	if err := h.Lockout.Reset(c.Request.Context(), req.Identifier); err != nil {
		http.GinError(c, apperrors.Internal("reset lockout").WithCause(err))
		return
	}
	h.record(c, audit.Event{
		Type:     audit.LockoutReset,
		Success:  true,
		Metadata: map[string]string{"identifier": req.Identifier},
	})
	http.GinJSON(c, gin.H{"identifier": req.Identifier})
}

func (h *Handler) userSessions(c *gin.Context) {
	list, err := h.Tokens.Sessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		http.GinError(c, err)
		return
	}
	http.GinJSON(c, views(list, ""))
}

// revokeUserSessions 强制下线指定用户
func (h *Handler) revokeUserSessions(c *gin.Context) {
	target := c.Param("id")
	ctx := c.Request.Context()

	list, err := h.Tokens.Sessions(ctx, target)
	if err != nil {
		http.GinError(c, err)
		return
	}
	if err := h.Tokens.Revoke(ctx, target, ""); err != nil {
		http.GinError(c, err)
		return
	}
	for _, s := range list {
		if err := h.CSRF.Delete(ctx, s.SessionID); err != nil {
			h.Logger.Warn().Err(err).Str("session_id", s.SessionID).Msg("delete csrf token failed")
		}
	}

	h.record(c, audit.Event{
		Type:     audit.SessionsRevoked,
		Success:  true,
		Metadata: map[string]string{"target_user_id": target, "count": itoa(len(list))},
	})
	http.GinJSON(c, gin.H{"revoked": len(list)})
}
