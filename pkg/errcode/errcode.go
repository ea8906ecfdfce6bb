// Package errcode 定义核心层统一的错误分类。
//
// 业务错误以包级哨兵值的形式声明（*Error），调用方用 errors.Is 判断具体错误，
// 用 KindOf 判断错误类别；HTTP 层据此映射状态码。
package errcode

import "errors"

// Kind 错误类别
type Kind int

const (
	// Internal 未归类错误（存储故障等）
	Internal Kind = iota
	// Validation 参数校验失败，任何写操作之前拒绝
	Validation
	// Conflict 调用方状态与当前状态不一致，重新读取后可重试
	Conflict
	// Forbidden 授权失败，原样返回给调用方
	Forbidden
	// NotFound 引用的实体不存在
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error 带类别和机器可读码的业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// New 创建一个哨兵错误
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string { return e.Message }

// KindOf 返回错误链上第一个 *Error 的类别，找不到时为 Internal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf 返回错误链上第一个 *Error 的 Code，找不到时为 "INTERNAL"。
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}
