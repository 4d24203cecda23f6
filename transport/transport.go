// Package transport 定义可被 app 管理的长期运行服务。
package transport

import (
	"context"
	"net"
	"strconv"
	"strings"
)

// Server HTTP 服务与后台任务（如清理调度器）的共同接口
type Server interface {
	// Run 启动并阻塞直到停止
	Run() error
	// Shutdown 优雅停止
	Shutdown(context.Context) error
}

// ValidateAddress 校验 host:port，host 可为空（监听所有地址）
func ValidateAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if host != "" && !validHost(host) {
		return false
	}
	p, err := strconv.Atoi(port)
	return err == nil && p >= 1 && p <= 65535
}

func validHost(host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}
	if len(host) > 253 || strings.HasPrefix(host, "-") || strings.HasSuffix(host, "-") {
		return false
	}
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}
