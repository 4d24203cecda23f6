package token

import (
	"errors"

	apperrors "github.com/kochabx/authgate/errors"
)

// ErrInvalidToken 所有校验失败对外统一返回此错误
var ErrInvalidToken = apperrors.ErrAuthentication

// 内部原因，仅记录在 debug 日志中
var (
	errMalformed       = errors.New("token: malformed or bad signature")
	errWrongType       = errors.New("token: unexpected token type")
	errBlacklisted     = errors.New("token: blacklisted")
	errSessionInactive = errors.New("token: session not active")
	errSessionMismatch = errors.New("token: session bound to another user")
)
