// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/hotswap/pkg/errutil"
)

type calc struct{ factor int }

func (c calc) Add(a, b int) int { return a + b*c.factor }

func (c calc) Div(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

func (c calc) Reset() {}

func (c calc) Label(name string) string { return "calc:" + name }

type echoCaller struct{}

func (echoCaller) Call(method string, args ...any) ([]any, error) {
	return append([]any{method}, args...), nil
}

func TestInvoke(t *testing.T) {
	tests := []struct {
		name    string
		iface   any
		method  string
		args    []any
		want    []any
		wantErr string
	}{
		{"converts yaml numbers", calc{factor: 18}, "Add", []any{100, 200}, []any{3700}, ""},
		{"converts floats to int", calc{factor: 6}, "Add", []any{float64(1), float64(2)}, []any{13}, ""},
		{"strips nil error", calc{}, "Div", []any{9, 3}, []any{float64(3)}, ""},
		{"returns error result", calc{}, "Div", []any{1, 0}, nil, "division by zero"},
		{"no results", calc{}, "Reset", nil, []any{}, ""},
		{"caller dispatch", echoCaller{}, "add", []any{1}, []any{"add", 1}, ""},
		{"unknown method", calc{}, "Mul", nil, nil, "no method Mul"},
		{"wrong arity", calc{}, "Add", []any{1}, nil, "takes 2 arguments"},
		{"inconvertible argument", calc{}, "Add", []any{1, []int{2}}, nil, "cannot use"},
		{"string argument", calc{}, "Label", []any{"tail"}, []any{"calc:tail"}, ""},
		{"integer is not a string", calc{}, "Label", []any{100}, nil, "cannot use int as string"},
		{"unsigned is not a string", calc{}, "Label", []any{uint64(100)}, nil, "cannot use uint64 as string"},
		{"nil interface", nil, "Add", nil, nil, "not registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Invoke(tt.iface, tt.method, tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvoke_RejectsIntegerForStringParameter(t *testing.T) {
	_, err := Invoke(calc{}, "Label", []any{100})

	errutil.AssertErrorDomain(t, err, "host")
	errutil.AssertErrorContext(t, err, "argument", 0)
}
