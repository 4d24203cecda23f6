package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/account"
	"github.com/kochabx/authgate/core/audit"
	"github.com/kochabx/authgate/core/auth/lockout"
	apperrors "github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/transport/http"
)

// 锁定按用户名与客户端 IP 分别计数，任一被锁即拒绝。
// 第一个为用户标识，登录成功只清零它；IP 计数不因任意账户登录成功而清零
func identifiers(username, ip string) []string {
	return []string{"user:" + strings.ToLower(username), "ip:" + ip}
}

// status 汇总多个标识的锁定状态
func (h *Handler) status(ctx context.Context, ids []string) (lockout.Result, error) {
	res := lockout.Result{Allowed: true}
	for i, id := range ids {
		r, err := h.Lockout.Status(ctx, id)
		if err != nil {
			return res, err
		}
		res = merge(res, r, i == 0)
	}
	return res, nil
}

func (h *Handler) attempt(ctx context.Context, ids []string, success bool) (lockout.Result, error) {
	res := lockout.Result{Allowed: true}
	for i, id := range ids {
		r, err := h.Lockout.RecordAttempt(ctx, id, success)
		if err != nil {
			return res, err
		}
		res = merge(res, r, i == 0)
	}
	return res, nil
}

func merge(acc, r lockout.Result, first bool) lockout.Result {
	acc.Allowed = acc.Allowed && r.Allowed
	if first || r.AttemptsLeft < acc.AttemptsLeft {
		acc.AttemptsLeft = r.AttemptsLeft
	}
	if r.LockedUntil.After(acc.LockedUntil) {
		acc.LockedUntil = r.LockedUntil
	}
	return acc
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		http.GinError(c, apperrors.BadRequest("invalid request body"))
		return
	}
	ctx := c.Request.Context()
	ids := identifiers(req.Username, c.ClientIP())

	st, err := h.status(ctx, ids)
	if err != nil {
		http.GinError(c, apperrors.Internal("lockout status").WithCause(err))
		return
	}
	if !st.Allowed {
		h.rejectLocked(c, req.Username, st.LockedUntil)
		return
	}

	u, err := h.Hasher.Authenticate(ctx, h.Directory, req.Username, req.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		res, lerr := h.attempt(ctx, ids, false)
		if lerr != nil {
			http.GinError(c, apperrors.Internal("record attempt").WithCause(lerr))
			return
		}
		if !res.Allowed {
			h.rejectLocked(c, req.Username, res.LockedUntil)
			return
		}
		h.Metrics.login(resultFailure)
		h.record(c, audit.Event{Type: audit.LoginFailure, Reason: "invalid credentials", Metadata: map[string]string{"username": req.Username}})
		http.GinError(c, apperrors.InvalidLogin(res.AttemptsLeft))
		return
	}
	if err != nil {
		http.GinError(c, apperrors.Internal("lookup user").WithCause(err))
		return
	}

	if _, err := h.attempt(ctx, ids[:1], true); err != nil {
		http.GinError(c, apperrors.Internal("record attempt").WithCause(err))
		return
	}

	if u.MFAEnabled {
		h.Metrics.login(resultMFARequired)
		h.startMFA(c, u)
		return
	}
	h.Metrics.login(resultSuccess)
	h.issue(c, u, audit.LoginSuccess)
}

func (h *Handler) rejectLocked(c *gin.Context, username string, until time.Time) {
	h.Metrics.login(resultLocked)
	h.record(c, audit.Event{
		Type:     audit.AccountLocked,
		Reason:   "locked until " + until.UTC().Format(time.RFC3339),
		Metadata: map[string]string{"username": username},
	})
	http.GinError(c, apperrors.AccountLocked(until))
}

// startMFA 密码通过后创建挑战。TOTP 用户的挑战码不下发，只标记密码已通过，
// 校验时比对认证器生成的动态码
func (h *Handler) startMFA(c *gin.Context, u *account.User) {
	if u.TOTPSecret != "" {
		if _, err := h.MFA.CreateChallenge(c.Request.Context(), u.ID); err != nil {
			http.GinError(c, apperrors.Internal("create mfa challenge").WithCause(err))
			return
		}
		h.record(c, audit.Event{Type: audit.MFAChallenge, UserID: u.ID, Success: true, Reason: methodTOTP})
		http.GinJSON(c, mfaPending{MFARequired: true, Method: methodTOTP})
		return
	}

	ctx := c.Request.Context()
	code, err := h.MFA.CreateChallenge(ctx, u.ID)
	if err != nil {
		http.GinError(c, apperrors.Internal("create mfa challenge").WithCause(err))
		return
	}
	if err := h.Notifier.Notify(ctx, u, code); err != nil {
		http.GinError(c, apperrors.Internal("deliver mfa code").WithCause(err))
		return
	}
	h.record(c, audit.Event{Type: audit.MFAChallenge, UserID: u.ID, Success: true, Reason: methodCode})
	http.GinJSON(c, mfaPending{MFARequired: true, Method: methodCode})
}

// verifyMFA 用户不存在、未开启 MFA、验证码错误统一返回 401
func (h *Handler) verifyMFA(c *gin.Context) {
	var req mfaVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		http.GinError(c, apperrors.BadRequest("invalid request body"))
		return
	}
	ctx := c.Request.Context()

	u, err := h.Directory.FindByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		http.GinError(c, apperrors.Internal("lookup user").WithCause(err))
		return
	}
	if u == nil || !u.MFAEnabled {
		h.rejectMFA(c, "", "no mfa pending")
		return
	}

	method := methodCode
	if u.TOTPSecret != "" {
		method = methodTOTP
	}
	ok, err := h.checkSecondFactor(ctx, c, u, req.Code)
	if err != nil {
		h.Metrics.secondFactor(method, resultFailure)
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			http.GinError(c, ae)
			return
		}
		http.GinError(c, apperrors.Internal("verify mfa").WithCause(err))
		return
	}
	if !ok {
		h.Metrics.secondFactor(method, resultFailure)
		h.rejectMFA(c, u.ID, "code rejected")
		return
	}
	h.Metrics.secondFactor(method, resultSuccess)
	h.issue(c, u, audit.MFASuccess)
}

// checkSecondFactor 两种方式都要求登录时创建的挑战仍然有效。
// TOTP 失败次数另计入 mfa:<userID> 的锁定，没有挑战的请求不计数
func (h *Handler) checkSecondFactor(ctx context.Context, c *gin.Context, u *account.User, code string) (bool, error) {
	if u.TOTPSecret == "" {
		return h.MFA.VerifyChallenge(ctx, u.ID, code)
	}

	id := "mfa:" + u.ID
	st, err := h.Lockout.Status(ctx, id)
	if err != nil {
		return false, err
	}
	if !st.Allowed {
		h.record(c, audit.Event{Type: audit.AccountLocked, UserID: u.ID, Reason: "totp attempts exhausted"})
		return false, apperrors.AccountLocked(st.LockedUntil)
	}

	var (
		checked bool
		verr    error
	)
	ok, err := h.MFA.VerifyWith(ctx, u.ID, func(string) bool {
		checked = true
		valid, err := h.TOTP.ValidateCode(u.TOTPSecret, code)
		verr = err
		return err == nil && valid
	})
	if err != nil {
		return false, err
	}
	if verr != nil {
		return false, verr
	}
	if !checked {
		return false, nil
	}
	if _, err := h.Lockout.RecordAttempt(ctx, id, ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (h *Handler) rejectMFA(c *gin.Context, userID, reason string) {
	h.record(c, audit.Event{Type: audit.MFAFailure, UserID: userID, Reason: reason})
	http.GinError(c, apperrors.ErrMFA)
}

// issue 签发 token 对与 CSRF token
func (h *Handler) issue(c *gin.Context, u *account.User, typ audit.Type) {
	ctx := c.Request.Context()
	pair, err := h.Tokens.Issue(ctx, u.ID, u.Role)
	if err != nil {
		http.GinError(c, err)
		return
	}
	csrfToken, err := h.CSRF.Generate(ctx, pair.SessionID)
	if err != nil {
		http.GinError(c, apperrors.Internal("generate csrf token").WithCause(err))
		return
	}

	h.record(c, audit.Event{Type: typ, UserID: u.ID, SessionID: pair.SessionID, Success: true})
	http.GinJSON(c, loginResponse{Pair: pair, CSRFToken: csrfToken, Role: u.Role})
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		http.GinError(c, apperrors.BadRequest("invalid request body"))
		return
	}

	pair, err := h.Tokens.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.record(c, audit.Event{Type: audit.TokenRejected, Reason: "refresh rejected"})
		http.GinError(c, err)
		return
	}
	h.record(c, audit.Event{Type: audit.TokenRefreshed, SessionID: pair.SessionID, Success: true})
	// refresh token 不变，不再回传
	pair.RefreshToken = ""
	http.GinJSON(c, pair)
}
