package mfa

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kochabx/authgate/core/util/qrcode"
)

const (
	DefaultSecretSize = 20
	DefaultPeriod     = 30
	DefaultDigits     = 6
	DefaultSkew       = 1
	DefaultQRSize     = 256

	totpScheme = "otpauth://totp/"
)

var (
	ErrEmptySecret = errors.New("mfa: secret cannot be empty")
	ErrEmptyLabel  = errors.New("mfa: label cannot be empty")
	ErrEmptyIssuer = errors.New("mfa: issuer cannot be empty")
	ErrBadSecret   = errors.New("mfa: secret is not valid base32")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTP 基于时间的一次性密码（RFC 6238，HMAC-SHA1），兼容 Google Authenticator
type TOTP struct {
	secretSize int
	period     int64
	digits     int
	mod        uint32
	skew       int
	qrSize     int
	now        func() time.Time
}

// TOTPOption TOTP 选项
type TOTPOption func(*TOTP)

// WithSecretSize 密钥字节数，8~128
func WithSecretSize(n int) TOTPOption {
	return func(t *TOTP) {
		if n >= 8 && n <= 128 {
			t.secretSize = n
		}
	}
}

// WithPeriod 时间步长（秒）
func WithPeriod(seconds int) TOTPOption {
	return func(t *TOTP) {
		if seconds > 0 {
			t.period = int64(seconds)
		}
	}
}

// WithDigits 验证码位数，6~8
func WithDigits(n int) TOTPOption {
	return func(t *TOTP) {
		if n >= 6 && n <= 8 {
			t.digits = n
		}
	}
}

// WithSkew 校验时前后容忍的时间步数，0~10
func WithSkew(steps int) TOTPOption {
	return func(t *TOTP) {
		if steps >= 0 && steps <= 10 {
			t.skew = steps
		}
	}
}

// WithQRSize 二维码边长（像素）
func WithQRSize(px int) TOTPOption {
	return func(t *TOTP) {
		if px > 0 {
			t.qrSize = px
		}
	}
}

// WithTOTPClock 替换时间源
func WithTOTPClock(now func() time.Time) TOTPOption {
	return func(t *TOTP) { t.now = now }
}

// NewTOTP 创建 TOTP
func NewTOTP(opts ...TOTPOption) *TOTP {
	t := &TOTP{
		secretSize: DefaultSecretSize,
		period:     DefaultPeriod,
		digits:     DefaultDigits,
		skew:       DefaultSkew,
		qrSize:     DefaultQRSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.mod = pow10(t.digits)
	return t
}

// GenerateSecret 生成 base32 编码的随机密钥
func (t *TOTP) GenerateSecret() (string, error) {
	buf := make([]byte, t.secretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("mfa: read random: %w", err)
	}
	return b32.EncodeToString(buf), nil
}

// GenerateCode 当前时间步的验证码
func (t *TOTP) GenerateCode(secret string) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return t.codeAt(key, t.now().Unix()/t.period), nil
}

// ValidateCode 在 ±skew 个时间步内校验验证码，比较为常量时间
func (t *TOTP) ValidateCode(secret, code string) (bool, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}
	if len(code) != t.digits {
		return false, nil
	}

	counter := t.now().Unix() / t.period
	ok := 0
	for i := -t.skew; i <= t.skew; i++ {
		ok |= subtle.ConstantTimeCompare([]byte(t.codeAt(key, counter+int64(i))), []byte(code))
	}
	return ok == 1, nil
}

// ProvisioningURI otpauth:// URI
func (t *TOTP) ProvisioningURI(label, issuer, secret string) (string, error) {
	switch {
	case label == "":
		return "", ErrEmptyLabel
	case issuer == "":
		return "", ErrEmptyIssuer
	case secret == "":
		return "", ErrEmptySecret
	}

	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", issuer)
	params.Set("algorithm", "SHA1")
	params.Set("digits", strconv.Itoa(t.digits))
	params.Set("period", strconv.FormatInt(t.period, 10))

	return totpScheme + url.PathEscape(issuer+":"+label) + "?" + params.Encode(), nil
}

// ProvisioningQRCode Base64 编码的 PNG 二维码
func (t *TOTP) ProvisioningQRCode(label, issuer, secret string) (string, error) {
	uri, err := t.ProvisioningURI(label, issuer, secret)
	if err != nil {
		return "", err
	}
	png, err := qrcode.Base64(uri, t.qrSize)
	if err != nil {
		return "", fmt.Errorf("mfa: generate qr code: %w", err)
	}
	return png, nil
}

func (t *TOTP) codeAt(key []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// RFC 4226 动态截断
	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%0*d", t.digits, bin%t.mod)
}

func decodeSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key, err := b32.DecodeString(strings.TrimRight(strings.ToUpper(secret), "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSecret, err)
	}
	return key, nil
}

func pow10(n int) uint32 {
	m := uint32(1)
	for range n {
		m *= 10
	}
	return m
}
