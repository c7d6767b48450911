package errs

import (
	"errors"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

var DefaultCodeRelation = newCodeRelation()

type CodeErrorI interface {
	ECode() int
	EMsg() string
	DDetail() string
	error
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e *CodeError) ECode() int      { return e.Code }
func (e *CodeError) EMsg() string    { return e.Msg }
func (e *CodeError) DDetail() string { return e.Detail }

func (e *CodeError) WithDetail(detail string) *CodeError {
	retErr := e.clone()
	if retErr.Detail == "" {
		retErr.Detail = detail
	} else {
		retErr.Detail += ", " + detail
	}
	return retErr
}

// Wrap attaches a stack trace to the sentinel.
func (e *CodeError) Wrap() error {
	return pkgerrors.WithStack(e)
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: e.Detail,
	}
}

func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	retErr := e.clone()
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if retErr.Detail == "" {
			retErr.Detail = detail
		} else {
			retErr.Detail += ", " + detail
		}
	}
	return pkgerrors.WithStack(retErr)
}

// WrapCause 带上错误码同时保留底层 cause，errors.Is/As 两边都能匹配
func (e *CodeError) WrapCause(cause error, msg string, kv ...any) error {
	if cause == nil {
		return e.WrapMsg(msg, kv...)
	}
	retErr := e.clone()
	if msg != "" || len(kv) > 0 {
		retErr.Detail = toString(msg, kv)
	}
	return pkgerrors.WithStack(&causeError{CodeError: retErr, cause: cause})
}

type causeError struct {
	*CodeError
	cause error
}

func (c *causeError) Error() string   { return c.CodeError.Error() + ": " + c.cause.Error() }
func (c *causeError) Unwrap() []error { return []error{c.CodeError, c.cause} }

// Is lets errors.Is match a CodeError against a sentinel of the same code or
// of a parent code registered in DefaultCodeRelation.
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	if e == nil || t == nil {
		return e == t
	}
	return DefaultCodeRelation.Is(t.Code, e.Code)
}

const initialCapacity = 3

func (e *CodeError) Error() string {
	v := make([]string, 0, initialCapacity)
	v = append(v, strconv.Itoa(e.Code), e.Msg)

	if e.Detail != "" {
		v = append(v, e.Detail)
	}

	return strings.Join(v, " ")
}

// AsCode returns the first CodeError in err's chain.
func AsCode(err error) (*CodeError, bool) {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr, true
	}
	return nil, false
}

func Unwrap(err error) error {
	for err != nil {
		unwrap, ok := err.(interface {
			error
			Unwrap() error
		})
		if !ok {
			break
		}
		err = unwrap.Unwrap()
		if err == nil {
			return unwrap
		}
	}
	return err
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(NewErrorWrapper(err, toString(msg, kv)))
}

type CodeRelation interface {
	Add(codes ...int) error
	Is(parent, child int) bool
}

func newCodeRelation() CodeRelation {
	return &codeRelation{m: make(map[int]map[int]struct{})}
}

// codeRelation is written only during package init.
type codeRelation struct {
	m map[int]map[int]struct{}
}

const minimumCodesLength = 2

func (r *codeRelation) Add(codes ...int) error {
	if len(codes) < minimumCodesLength {
		return New("codes length must be greater than 2", "codes", codes)
	}
	for i := 1; i < len(codes); i++ {
		parent := codes[i-1]
		s, ok := r.m[parent]
		if !ok {
			s = make(map[int]struct{})
			r.m[parent] = s
		}
		for _, code := range codes[i:] {
			s[code] = struct{}{}
		}
	}
	return nil
}

func (r *codeRelation) Is(parent, child int) bool {
	if parent == child {
		return true
	}
	s, ok := r.m[parent]
	if !ok {
		return false
	}
	_, ok = s[child]
	return ok
}
