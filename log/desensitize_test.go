package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/authgate/log/desensitize"
)

func TestAuthRules(t *testing.T) {
	hook := desensitize.NewHook(desensitize.AuthRules()...)

	cases := []struct {
		name, in, want string
	}{
		{"bearer header", "authorization=Bearer s3cr3t-token", "authorization=Bearer ******"},
		{"bare jwt", "token eyJhbGciOi.eyJzdWIi.sig_part ok", "token ****** ok"},
		{"json password", `{"password":"p@ss","user":"a"}`, `{"password":"******","user":"a"}`},
		{"refresh token", `{"refresh_token": "r.t.x"}`, `{"refresh_token":"******"}`},
		{"csrf token", `{"csrf_token":"deadbeef"}`, `{"csrf_token":"******"}`},
		{"otp code", `{"code":"123456"}`, `{"code":"******"}`},
		{"plain", "nothing to hide", "nothing to hide"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, hook.Desensitize(tc.in))
		})
	}
}

func TestHookRuleManagement(t *testing.T) {
	hook := desensitize.NewHook()
	rule, err := desensitize.NewContentRule("digits", `\d{4,}`, "####")
	require.NoError(t, err)

	hook.Add(rule)
	assert.Equal(t, 1, hook.Len())
	assert.Equal(t, "id=####", hook.Desensitize("id=123456"))

	got, ok := hook.Rule("digits")
	require.True(t, ok)
	got.SetEnabled(false)
	assert.Equal(t, "id=123456", hook.Desensitize("id=123456"))

	// same name replaces
	replacement, err := desensitize.NewContentRule("digits", `\d+`, "#")
	require.NoError(t, err)
	hook.Add(replacement)
	assert.Equal(t, 1, hook.Len())
	assert.Equal(t, "id=#", hook.Desensitize("id=123456"))

	assert.True(t, hook.Remove("digits"))
	assert.False(t, hook.Remove("digits"))
	assert.Equal(t, 0, hook.Len())
}

func TestInvalidRules(t *testing.T) {
	_, err := desensitize.NewContentRule("bad", `(`, "")
	assert.Error(t, err)
	_, err = desensitize.NewFieldRule("", "password")
	assert.Error(t, err)
}
