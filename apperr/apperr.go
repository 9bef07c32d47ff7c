// Package apperr 定義服務層共用的錯誤分類，HTTP 層依 Kind 轉成狀態碼。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 錯誤分類
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindCapacity
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindCapacity:
		return "capacity"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error 帶分類的錯誤。Message 會回傳給客戶端，Err 只寫進日誌。
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is 讓 errors.Is 以 Kind 比對
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// 只有 Kind 的哨兵值，用於 errors.Is(err, apperr.ErrNotFound)
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrCapacity     = &Error{Kind: KindCapacity}
	ErrConflict     = &Error{Kind: KindConflict}
)

func Validation(msg string) error   { return &Error{Kind: KindValidation, Message: msg} }
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func Capacity(msg string) error     { return &Error{Kind: KindCapacity, Message: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Message: msg} }

// Internal 包裝非預期錯誤，訊息不外洩
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf 取出錯誤分類，未分類的錯誤視為 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf 回傳可以給客戶端看的訊息
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}

// HTTPStatus 分類對應的 HTTP 狀態碼
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindCapacity:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
