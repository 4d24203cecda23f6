package cache

import "errors"

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("cache: session not found")
