package audit

import "time"

// Type 审计事件类型
type Type string

const (
	LoginSuccess     Type = "login_success"
	LoginFailure     Type = "login_failure"
	AccountLocked    Type = "account_locked"
	LockoutReset     Type = "lockout_reset"
	MFAChallenge     Type = "mfa_challenge"
	MFASuccess       Type = "mfa_success"
	MFAFailure       Type = "mfa_failure"
	TokenRefreshed   Type = "token_refreshed"
	TokenRejected    Type = "token_rejected"
	Logout           Type = "logout"
	SessionsRevoked  Type = "sessions_revoked"
	RateLimited      Type = "rate_limited"
	CSRFRejected     Type = "csrf_rejected"
	PermissionDenied Type = "permission_denied"
)

// Event 审计事件
type Event struct {
	ID        string            `json:"id"`
	Time      time.Time         `json:"time"`
	Type      Type              `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Method    string            `json:"method,omitempty"`
	Path      string            `json:"path,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
