// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

import (
	"reflect"

	"github.com/samber/oops"
)

// Caller is implemented by interfaces that dispatch calls by method name,
// such as Lua plugin tables.
type Caller interface {
	Call(method string, args ...any) ([]any, error)
}

var errorType = reflect.TypeFor[error]()

// Invoke calls method on iface with args. Caller implementations are used
// directly; any other value is called through reflection, converting each
// argument to the parameter type. A trailing error result is returned as
// the error and dropped from the results.
func Invoke(iface any, method string, args []any) ([]any, error) {
	if iface == nil {
		return nil, oops.In("host").With("method", method).Errorf("plugin has not registered an interface")
	}
	if c, ok := iface.(Caller); ok {
		return c.Call(method, args...)
	}

	m := reflect.ValueOf(iface).MethodByName(method)
	if !m.IsValid() {
		return nil, oops.In("host").
			With("method", method).
			With("type", reflect.TypeOf(iface).String()).
			Errorf("%T has no method %s", iface, method)
	}

	mt := m.Type()
	if mt.IsVariadic() || mt.NumIn() != len(args) {
		return nil, oops.In("host").
			With("method", method).
			Errorf("method %s takes %d arguments, got %d", method, mt.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		want := mt.In(i)
		if arg == nil {
			in[i] = reflect.Zero(want)
			continue
		}
		v := reflect.ValueOf(arg)
		if !convertible(v.Type(), want) {
			return nil, oops.In("host").
				With("method", method).
				With("argument", i).
				Errorf("argument %d: cannot use %T as %s", i, arg, want)
		}
		in[i] = v.Convert(want)
	}

	out := m.Call(in)
	if n := len(out); n > 0 && mt.Out(n-1) == errorType {
		last := out[n-1]
		out = out[:n-1]
		if !last.IsNil() {
			err, _ := last.Interface().(error)
			return values(out), err
		}
	}
	return values(out), nil
}

// convertible is reflect's ConvertibleTo without integer to string, which
// would turn 100 into "d".
func convertible(from, to reflect.Type) bool {
	if to.Kind() == reflect.String && isInteger(from.Kind()) {
		return false
	}
	return from.ConvertibleTo(to)
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}

func values(vs []reflect.Value) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v.Interface()
	}
	return out
}
