package safe

import (
	"fmt"
	"reflect"

	"PPSocial/logger"
	"PPSocial/tools/errs"

	"go.uber.org/zap"
)

// MustNotNil panics if the given value is nil.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// Go starts f on its own goroutine; a panic is logged instead of crashing
// the process.
func Go(name string, f func()) {
	go func() {
		_ = Run(name, f)
	}()
}

// Run calls f synchronously and converts a panic into an error.
func Run(name string, f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.ErrPanic(r)
			logger.Error("panic recovered", zap.String("where", name), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	f()
	return nil
}
