// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"math"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// structProxyType names the metatable shared by struct proxies in a state.
const structProxyType = "hotswap.struct"

// isStructPointer reports whether v can be lent to scripts as a proxy.
func isStructPointer(v reflect.Value) bool {
	return v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Kind() == reflect.Struct
}

// newStructProxy lends a Go struct pointer to scripts. Reading or assigning
// an exported field goes straight to the Go struct, so the host sees every
// write and nothing is copied into the state.
func newStructProxy(L *lua.LState, ptr reflect.Value) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = ptr.Interface()
	L.SetMetatable(ud, structProxyMetatable(L))
	return ud
}

func structProxyMetatable(L *lua.LState) lua.LValue {
	if mt := L.GetTypeMetatable(structProxyType); mt != lua.LNil {
		return mt
	}
	mt := L.NewTypeMetatable(structProxyType)
	L.SetField(mt, "__index", L.NewFunction(proxyIndex))
	L.SetField(mt, "__newindex", L.NewFunction(proxyNewIndex))
	return mt
}

// proxyField resolves the field named by argument 2 of a proxy metamethod.
func proxyField(L *lua.LState) reflect.Value {
	ud := L.CheckUserData(1)
	name := L.CheckString(2)

	ptr := reflect.ValueOf(ud.Value)
	if !isStructPointer(ptr) {
		L.ArgError(1, "not a struct proxy")
		return reflect.Value{}
	}
	sf, ok := ptr.Elem().Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		L.ArgError(2, "no field "+name)
		return reflect.Value{}
	}
	return ptr.Elem().FieldByIndex(sf.Index)
}

func proxyIndex(L *lua.LState) int {
	field := proxyField(L)
	L.Push(toLValue(L, field.Interface()))
	return 1
}

func proxyNewIndex(L *lua.LState) int {
	field := proxyField(L)
	v, ok := assignValue(fromLValue(L.Get(3)), field.Type())
	if !ok {
		L.ArgError(3, "cannot assign "+L.Get(3).Type().String()+" to "+field.Type().String())
		return 0
	}
	field.Set(v)
	return 0
}

// assignValue converts a value coming out of Lua to t. Lua numbers only
// fill integer fields when they hold a whole number.
func assignValue(v any, t reflect.Type) (reflect.Value, bool) {
	if v == nil {
		return reflect.Zero(t), true
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, true
	}
	f, isNumber := v.(float64)
	if !isNumber {
		return reflect.Value{}, false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f != math.Trunc(f) {
			return reflect.Value{}, false
		}
		if rv.Convert(t).Convert(rv.Type()).Float() != f {
			// out of range for t
			return reflect.Value{}, false
		}
		return rv.Convert(t), true
	case reflect.Float32, reflect.Float64:
		return rv.Convert(t), true
	default:
		return reflect.Value{}, false
	}
}
