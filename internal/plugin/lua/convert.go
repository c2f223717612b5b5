// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// toLValue converts a Go argument into a Lua value.
func toLValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []any:
		tbl := L.NewTable()
		for _, item := range val {
			tbl.Append(toLValue(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, toLValue(L, item))
		}
		return tbl
	default:
		if rv := reflect.ValueOf(val); isStructPointer(rv) {
			return newStructProxy(L, rv)
		}
		return lua.LString(fmt.Sprint(val))
	}
}

// fromLValue converts a Lua result into a Go value. Numbers become
// float64; tables with only a sequence part become []any, other tables
// map[string]any. Struct proxies hand back the Go pointer they wrap.
func fromLValue(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		return fromTable(val)
	case *lua.LUserData:
		return val.Value
	default:
		return val.String()
	}
}

func fromTable(tbl *lua.LTable) any {
	n := tbl.MaxN()
	entries := 0
	tbl.ForEach(func(lua.LValue, lua.LValue) { entries++ })

	if n > 0 && entries == n {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, fromLValue(tbl.RawGetInt(i)))
		}
		return out
	}

	out := make(map[string]any, entries)
	tbl.ForEach(func(k, v lua.LValue) {
		out[k.String()] = fromLValue(v)
	})
	return out
}
