package errs

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// New returns a plain error carrying a message and key/value detail pairs.
func New(msg string, kv ...any) error {
	return pkgerrors.New(toString(msg, kv))
}

// ErrWrapper keeps the original error reachable through errors.Is/As while
// prefixing it with context.
type ErrWrapper struct {
	err error
	msg string
}

func NewErrorWrapper(err error, msg string) *ErrWrapper {
	return &ErrWrapper{err: err, msg: msg}
}

func (e *ErrWrapper) Error() string {
	if e.msg == "" {
		return e.err.Error()
	}
	return e.msg + ": " + e.err.Error()
}

func (e *ErrWrapper) Unwrap() error { return e.err }

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			sb.WriteString("MISSING")
		}
	}
	return sb.String()
}
