package qrcode

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestBase64(t *testing.T) {
	out, err := Base64("otpauth://totp/authgate:alice?secret=ABC", 128)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, pngMagic))
}

func TestDataURI(t *testing.T) {
	out, err := DataURI("hello", 64)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "data:image/png;base64,"))
}

func TestPNGRejectsEmptyContent(t *testing.T) {
	_, err := PNG("", 64, Low)
	assert.Error(t, err)
}
