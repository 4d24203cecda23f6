package validator

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Validate 全局校验器
var Validate = New()

var errNilTarget = errors.New("validation target cannot be nil")

// Validator 带翻译的结构体校验器
type Validator struct {
	validate    *validator.Validate
	translators map[string]ut.Translator
	lang        string
}

// Option 校验器选项
type Option func(*Validator)

// WithLanguage 设置默认错误语言，支持 en 和 zh
func WithLanguage(lang string) Option {
	return func(v *Validator) {
		v.lang = lang
	}
}

// New 创建校验器，注册中英文翻译和自定义规则
func New(opts ...Option) *Validator {
	v := &Validator{
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		translators: make(map[string]ut.Translator, 2),
		lang:        "en",
	}
	for _, opt := range opts {
		opt(v)
	}

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())
	if trans, ok := uni.GetTranslator("en"); ok {
		_ = en_translations.RegisterDefaultTranslations(v.validate, trans)
		v.translators["en"] = trans
	}
	if trans, ok := uni.GetTranslator("zh"); ok {
		_ = zh_translations.RegisterDefaultTranslations(v.validate, trans)
		v.translators["zh"] = trans
	}

	v.registerRules()
	return v
}

// Struct 校验结构体，失败时返回 *ValidationErrors
func (v *Validator) Struct(s any) error {
	return v.StructCtx(context.Background(), s)
}

// StructCtx 带上下文校验结构体
func (v *Validator) StructCtx(ctx context.Context, s any) error {
	if s == nil {
		return errNilTarget
	}
	if err := v.validate.StructCtx(ctx, s); err != nil {
		return v.translate(err, v.lang)
	}
	return nil
}

// Engine 返回底层的 validator 实例
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

func (v *Validator) translate(err error, lang string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	trans, ok := v.translators[lang]
	if !ok {
		trans = v.translators["en"]
	}

	out := &ValidationErrors{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationErrors 校验错误集合
type ValidationErrors struct {
	Fields []FieldError
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Has 判断指定字段是否校验失败
func (e *ValidationErrors) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
