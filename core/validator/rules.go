package validator

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

var (
	otpPattern      = regexp.MustCompile(`^[0-9]{6}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]{3,64}$`)
)

type rule struct {
	tag  string
	fn   validator.Func
	msgs map[string]string
}

var rules = []rule{
	{
		tag: "otp",
		fn:  func(fl validator.FieldLevel) bool { return otpPattern.MatchString(fl.Field().String()) },
		msgs: map[string]string{
			"en": "{0} must be a 6-digit code",
			"zh": "{0}必须是6位数字验证码",
		},
	},
	{
		tag: "username",
		fn:  func(fl validator.FieldLevel) bool { return usernamePattern.MatchString(fl.Field().String()) },
		msgs: map[string]string{
			"en": "{0} must be 3-64 letters, digits or _.@-",
			"zh": "{0}必须是3到64位字母、数字或_.@-",
		},
	},
}

func (v *Validator) registerRules() {
	for _, r := range rules {
		_ = v.validate.RegisterValidation(r.tag, r.fn)
		for lang, msg := range r.msgs {
			trans, ok := v.translators[lang]
			if !ok {
				continue
			}
			tag, text := r.tag, msg
			_ = v.validate.RegisterTranslation(tag, trans,
				func(ut ut.Translator) error { return ut.Add(tag, text, true) },
				func(ut ut.Translator, fe validator.FieldError) string {
					s, _ := ut.T(tag, fe.Field())
					return s
				},
			)
		}
	}
}
