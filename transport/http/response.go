package http

import (
	"maps"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/errors"
)

const (
	// 默认响应消息
	defaultSuccessMsg = "success"
	defaultErrorMsg   = "operation failed"

	// 默认响应码
	successCode = http.StatusOK
)

// Response 表示标准化的 API 响应结构
// 使用泛型 T 来支持任意类型的数据字段
type Response[T any] struct {
	Code int    `json:"code"`           // 业务状态码
	Msg  string `json:"msg,omitempty"`  // 响应消息
	Data T      `json:"data,omitempty"` // 响应数据
}

// GinJSON 写入成功的 JSON 响应
// HTTP 状态码固定为 200，业务码为 200，消息为 "success"
//
// 示例：
//
//	GinJSON(c, gin.H{"user_id": "u1"})
//	// 输出: {"code":200, "msg":"success", "data":{"user_id":"u1"}}
func GinJSON(c *gin.Context, data any) {
	if c == nil {
		return
	}

	c.JSON(http.StatusOK, &Response[any]{
		Code: successCode,
		Msg:  defaultSuccessMsg,
		Data: data,
	})
}

// GinJSONE 写入带有自定义业务码的 JSON 响应，HTTP 状态码固定为 200
//
// data 参数支持多种类型：
//   - error: 自动提取错误消息
//   - string: 直接作为消息使用
//   - nil: 使用默认错误消息
//   - 其他类型: 作为 data 字段返回，消息为空
func GinJSONE(c *gin.Context, code int, data any) {
	if c == nil {
		return
	}

	var msg string
	var respData any

	switch v := data.(type) {
	case error:
		msg = errors.FromError(v).Message
	case string:
		msg = v
	case nil:
		msg = defaultErrorMsg
	default:
		respData = v
	}

	c.JSON(http.StatusOK, &Response[any]{
		Code: code,
		Msg:  msg,
		Data: respData,
	})
}

// GinError 把 err 转换为响应并中止后续处理
//
// *errors.Error 的 Code 同时作为 HTTP 状态码与业务码，Metadata 放入 data；
// 其他错误一律按 500 处理，不向客户端暴露内部原因。
// 带 retry_after 元数据的错误额外写入 Retry-After 头。
//
// 示例：
//
//	GinError(c, errors.AccountLocked(until))
//	// HTTP 423 {"code":423, "msg":"account temporarily locked", "data":{"locked_until":"..."}}
func GinError(c *gin.Context, err error) {
	if c == nil {
		return
	}

	e := errors.FromError(err)
	if e == nil {
		e = errors.New(errors.UnknownCode, defaultErrorMsg)
	}
	if cause := e.GetCause(); cause != nil {
		_ = c.Error(cause)
	}

	if v, ok := e.Metadata[errors.MetaRetryAfter]; ok {
		c.Header("Retry-After", v)
	}

	var data map[string]string
	if len(e.Metadata) > 0 {
		data = maps.Clone(e.Metadata)
	}

	c.AbortWithStatusJSON(httpStatus(e.Code), &Response[map[string]string]{
		Code: e.Code,
		Msg:  e.Message,
		Data: data,
	})
}

func httpStatus(code int) int {
	if code >= http.StatusBadRequest && code <= http.StatusNetworkAuthenticationRequired {
		return code
	}
	return http.StatusInternalServerError
}

// Success 创建成功响应对象（辅助函数）
func Success[T any](data T) *Response[T] {
	return &Response[T]{
		Code: successCode,
		Msg:  defaultSuccessMsg,
		Data: data,
	}
}

// Failure 创建失败响应对象（辅助函数）
func Failure(code int, msg string) *Response[any] {
	return &Response[any]{
		Code: code,
		Msg:  msg,
	}
}
