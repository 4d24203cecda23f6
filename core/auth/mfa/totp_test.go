package mfa

import (
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 附录 B 的 SHA1 密钥 "12345678901234567890"
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestTOTPVectors(t *testing.T) {
	cases := []struct {
		unix int64
		want string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
	}
	for _, c := range cases {
		totp := NewTOTP(WithDigits(8), WithTOTPClock(func() time.Time { return time.Unix(c.unix, 0) }))
		code, err := totp.GenerateCode(rfcSecret)
		require.NoError(t, err)
		assert.Equal(t, c.want, code, "t=%d", c.unix)
	}
}

func TestTOTPValidateWithSkew(t *testing.T) {
	now := time.Unix(1234567890, 0)
	totp := NewTOTP(WithTOTPClock(func() time.Time { return now }))

	secret, err := totp.GenerateSecret()
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	now = now.Add(30 * time.Second)
	ok, err := totp.ValidateCode(secret, code)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(60 * time.Second)
	ok, err = totp.ValidateCode(secret, code)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = totp.ValidateCode(secret, "12345")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTOTPSecrets(t *testing.T) {
	totp := NewTOTP()
	seen := make(map[string]struct{})
	for range 50 {
		s, err := totp.GenerateSecret()
		require.NoError(t, err)
		assert.Len(t, s, 32)
		assert.Equal(t, strings.ToUpper(s), s)
		seen[s] = struct{}{}
	}
	assert.Len(t, seen, 50)

	_, err := totp.GenerateCode("")
	assert.ErrorIs(t, err, ErrEmptySecret)
	_, err = totp.GenerateCode("not base32!")
	assert.ErrorIs(t, err, ErrBadSecret)
}

func TestProvisioning(t *testing.T) {
	totp := NewTOTP()

	uri, err := totp.ProvisioningURI("alice", "authgate", rfcSecret)
	require.NoError(t, err)
	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, "/authgate:alice", u.Path)
	assert.Equal(t, rfcSecret, u.Query().Get("secret"))
	assert.Equal(t, "6", u.Query().Get("digits"))

	qr, err := totp.ProvisioningQRCode("alice", "authgate", rfcSecret)
	require.NoError(t, err)
	_, err = base64.StdEncoding.DecodeString(qr)
	assert.NoError(t, err)

	_, err = totp.ProvisioningURI("", "authgate", rfcSecret)
	assert.ErrorIs(t, err, ErrEmptyLabel)
	_, err = totp.ProvisioningURI("alice", "", rfcSecret)
	assert.ErrorIs(t, err, ErrEmptyIssuer)
}
