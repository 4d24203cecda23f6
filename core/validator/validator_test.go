package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=8"`
}

type mfaRequest struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code" validate:"required,otp"`
}

func TestValidStruct(t *testing.T) {
	assert.NoError(t, Validate.Struct(&loginRequest{Username: "alice", Password: "correct-horse"}))
	assert.NoError(t, Validate.Struct(&mfaRequest{Username: "alice", Code: "012345"}))
}

func TestNilTarget(t *testing.T) {
	assert.Error(t, New().Struct(nil))
}

func TestValidationErrors(t *testing.T) {
	err := New().Struct(&loginRequest{Username: "a b", Password: "short"})
	require.Error(t, err)

	var verrs *ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs.Fields, 2)
	assert.True(t, verrs.Has("Username"))
	assert.True(t, verrs.Has("Password"))
	assert.False(t, verrs.Has("Code"))
}

func TestCustomRuleTranslations(t *testing.T) {
	req := &mfaRequest{Username: "alice", Code: "12ab56"}

	err := New().Struct(req)
	require.Error(t, err)
	assert.Equal(t, "Code must be a 6-digit code", err.Error())

	err = New(WithLanguage("zh")).Struct(req)
	require.Error(t, err)
	assert.Equal(t, "Code必须是6位数字验证码", err.Error())
}

func TestUnknownLanguageFallsBackToEnglish(t *testing.T) {
	err := New(WithLanguage("fr")).Struct(&mfaRequest{Username: "alice", Code: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "6-digit")
}
