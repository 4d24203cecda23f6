// Package qrcode 生成 PNG 二维码，用于 TOTP 绑定
package qrcode

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// Level 纠错级别
type Level = qrcode.RecoveryLevel

const (
	Low     Level = qrcode.Low
	Medium  Level = qrcode.Medium
	High    Level = qrcode.High
	Highest Level = qrcode.Highest
)

// PNG 生成 size×size 的 PNG 图片
func PNG(content string, size int, level Level) ([]byte, error) {
	return qrcode.Encode(content, level, size)
}

// Base64 生成 Base64 编码的 PNG，纠错级别 Medium
func Base64(content string, size int) (string, error) {
	png, err := PNG(content, size, Medium)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// DataURI 生成可直接放入 <img src> 的 data URI
func DataURI(content string, size int) (string, error) {
	b64, err := Base64(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + b64, nil
}
