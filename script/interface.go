package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// FunctionInterface is the view a bound native function gets of its Lua
// call: 1-based typed argument getters and return pushers. It is valid
// only for the duration of the call and holds no state that needs
// releasing.
//
// Errors raised through RaiseError are deferred: the native function runs
// to completion, then the trampoline converts the recorded error into a
// Lua error unwind. Native code never longjmps.
type FunctionInterface struct {
	l      *lua.LState
	argc   int
	pushed int

	hasError   bool
	errMessage string
	errArg     int
}

// trampoline wraps a NativeFunc as a gopher-lua function. All bound Go
// functions enter Lua through here.
func (vm *Vm) trampoline(fn NativeFunc) lua.LGFunction {
	return func(l *lua.LState) int {
		if vm.interrupted.Load() {
			l.RaiseError("vm %s interrupted", vm.settings.Name)
			return 0
		}
		fi := &FunctionInterface{l: l, argc: l.GetTop(), errArg: -1}
		fn(fi)
		return fi.onCFuncExit()
	}
}

// onCFuncExit finishes the native call: raises the deferred error if one
// was recorded, otherwise reports how many returns were pushed.
func (fi *FunctionInterface) onCFuncExit() int {
	if fi.hasError {
		msg := fi.errMessage
		if fi.errArg >= 0 {
			msg = fmt.Sprintf("bad argument #%d: %s", fi.errArg, msg)
		}
		fi.l.RaiseError("%s", msg)
		return 0
	}
	return fi.pushed
}

// GetArgumentCount returns the number of arguments the Lua caller passed.
func (fi *FunctionInterface) GetArgumentCount() int { return fi.argc }

func (fi *FunctionInterface) arg(i int) lua.LValue {
	if i < 1 || i > fi.argc {
		return lua.LNil
	}
	return fi.l.Get(i)
}

// GetBoolean reads argument i as a boolean.
func (fi *FunctionInterface) GetBoolean(i int) (bool, bool) {
	if v, ok := fi.arg(i).(lua.LBool); ok {
		return bool(v), true
	}
	return false, false
}

// GetInteger reads argument i as an integer, failing on fractional values.
func (fi *FunctionInterface) GetInteger(i int) (int64, bool) {
	v, ok := fi.arg(i).(lua.LNumber)
	if !ok {
		return 0, false
	}
	f := float64(v)
	n := int64(f)
	if float64(n) != f {
		return 0, false
	}
	return n, true
}

// GetUInt32 reads argument i as a non-negative integer fitting in 32 bits.
func (fi *FunctionInterface) GetUInt32(i int) (uint32, bool) {
	n, ok := fi.GetInteger(i)
	if !ok || n < 0 || n > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(n), true
}

// GetNumber reads argument i as a float.
func (fi *FunctionInterface) GetNumber(i int) (float64, bool) {
	if v, ok := fi.arg(i).(lua.LNumber); ok {
		return float64(v), true
	}
	return 0, false
}

// GetString reads argument i as a string. Numbers do not coerce.
func (fi *FunctionInterface) GetString(i int) (string, bool) {
	if v, ok := fi.arg(i).(lua.LString); ok {
		return string(v), true
	}
	return "", false
}

// GetUserData reads argument i as a bound native instance. Returns false
// for non-userdata and for weak bindings severed by the native side.
func (fi *FunctionInterface) GetUserData(i int) (any, bool) {
	ud, ok := fi.arg(i).(*lua.LUserData)
	if !ok || ud.Value == nil {
		return nil, false
	}
	return ud.Value, true
}

// GetSelf reads the method receiver (argument 1).
func (fi *FunctionInterface) GetSelf() (any, bool) {
	return fi.GetUserData(1)
}

// GetNode reads argument i as a data node tree.
func (fi *FunctionInterface) GetNode(i int) (*Node, bool) {
	n, err := fromLua(fi.arg(i), 0)
	if err != nil {
		return nil, false
	}
	return n, true
}

// PushReturnBool pushes a boolean return value.
func (fi *FunctionInterface) PushReturnBool(v bool) {
	fi.l.Push(lua.LBool(v))
	fi.pushed++
}

// PushReturnInteger pushes an integer return value. Magnitudes beyond the
// exact Lua range record a deferred error instead.
func (fi *FunctionInterface) PushReturnInteger(v int64) {
	if v > LargestExactLuaInteger || v < -LargestExactLuaInteger {
		fi.RaiseError(-1, "integer return %d exceeds exact Lua range", v)
		return
	}
	fi.l.Push(lua.LNumber(v))
	fi.pushed++
}

// PushReturnNumber pushes a float return value.
func (fi *FunctionInterface) PushReturnNumber(v float64) {
	fi.l.Push(lua.LNumber(v))
	fi.pushed++
}

// PushReturnString pushes a string return value.
func (fi *FunctionInterface) PushReturnString(v string) {
	fi.l.Push(lua.LString(v))
	fi.pushed++
}

// PushReturnNil pushes a nil return value.
func (fi *FunctionInterface) PushReturnNil() {
	fi.l.Push(lua.LNil)
	fi.pushed++
}

// PushReturnNode pushes a data node tree as a return value. Trees that
// cannot be represented record a deferred error.
func (fi *FunctionInterface) PushReturnNode(n *Node) {
	v, err := toLua(fi.l, n)
	if err != nil {
		fi.RaiseError(-1, "%s", err.Error())
		return
	}
	fi.l.Push(v)
	fi.pushed++
}

// RaiseError records an error to be raised when the native function
// returns. arg identifies the offending argument (1-based), or -1 when the
// error is not tied to one. The first recorded error wins.
func (fi *FunctionInterface) RaiseError(arg int, format string, args ...any) {
	if fi.hasError {
		return
	}
	fi.hasError = true
	fi.errArg = arg
	fi.errMessage = fmt.Sprintf(format, args...)
}

// HasError reports whether a deferred error has been recorded.
func (fi *FunctionInterface) HasError() bool { return fi.hasError }

// GetInvalidArgument returns the argument index recorded with the deferred
// error, or -1.
func (fi *FunctionInterface) GetInvalidArgument() int {
	if !fi.hasError {
		return -1
	}
	return fi.errArg
}
