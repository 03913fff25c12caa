// Package apperr carries the small fixed set of error kinds the API exposes,
// their HTTP status codes and the localized text shown to users.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	NotFound     Kind = "not_found"
	Invalid      Kind = "invalid_request"
	Conflict     Kind = "conflict"
	Internal     Kind = "server_error"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrNotFound) works
// for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrUnauthorized = &Error{Kind: Unauthorized}
	ErrForbidden    = &Error{Kind: Forbidden}
	ErrNotFound     = &Error{Kind: NotFound}
	ErrInvalid      = &Error{Kind: Invalid}
	ErrConflict     = &Error{Kind: Conflict}
)

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Msg: msg, Err: err} }

func Invalidf(format string, args ...any) *Error {
	return &Error{Kind: Invalid, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err; anything unclassified is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Status(k Kind) int {
	switch k {
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Invalid:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var messages = map[string]map[Kind]string{
	"ko": {
		Unauthorized: "로그인이 필요합니다.",
		Forbidden:    "접근 권한이 없습니다.",
		NotFound:     "요청한 정보를 찾을 수 없습니다.",
		Invalid:      "잘못된 요청입니다.",
		Conflict:     "이미 처리되었거나 상태가 변경되었습니다. 새로고침 후 다시 시도해 주세요.",
		Internal:     "서버 오류가 발생했습니다. 잠시 후 다시 시도해 주세요.",
	},
	"en": {
		Unauthorized: "Please sign in to continue.",
		Forbidden:    "You do not have access to this resource.",
		NotFound:     "The requested item was not found.",
		Invalid:      "The request is invalid.",
		Conflict:     "This was already processed or has changed. Refresh and try again.",
		Internal:     "Something went wrong. Please try again.",
	},
}

const DefaultLang = "ko"

// Lang picks a supported language from an Accept-Language header value.
func Lang(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		if tag == "" {
			continue
		}
		base := strings.SplitN(tag, "-", 2)[0]
		if _, ok := messages[base]; ok {
			return base
		}
	}
	return DefaultLang
}

func Message(k Kind, lang string) string {
	m, ok := messages[lang]
	if !ok {
		m = messages[DefaultLang]
	}
	if s, ok := m[k]; ok {
		return s
	}
	return m[Internal]
}
