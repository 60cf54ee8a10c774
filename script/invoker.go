package script

import (
	lua "github.com/yuin/gopher-lua"
)

// FunctionInvoker is a scoped call from Go into Lua. Construction locks
// the VM's call mutex and records the stack top; Close restores the stack
// and releases the mutex, on every path. The usual shape is
//
//	inv := script.NewInvoker(vm, "OnSessionStart")
//	defer inv.Close()
//	if inv.IsValid() {
//	    inv.PushString("us-east")
//	    if inv.TryInvoke() {
//	        ok, _ := inv.GetBoolean(0)
//	        ...
//	    }
//	}
//
// Because the mutex is held from construction to Close, creating a second
// invoker on the same VM from inside an active invocation deadlocks. That
// is deliberate: reentry would corrupt the shared stack.
type FunctionInvoker struct {
	vm       *Vm
	topStart int
	valid    bool
	closed   bool
	returns  int
}

// NewInvoker prepares a call to the named global function. The invoker is
// invalid (and the stack untouched) when the global is missing or not a
// function; callers check IsValid before pushing arguments.
func NewInvoker(vm *Vm, global string) *FunctionInvoker {
	vm.mu.Lock()
	inv := &FunctionInvoker{vm: vm, topStart: vm.l.GetTop()}
	if vm.closed.Load() || vm.interrupted.Load() {
		return inv
	}
	fn := vm.l.GetGlobal(global)
	if fn.Type() != lua.LTFunction {
		return inv
	}
	vm.l.Push(fn)
	inv.valid = true
	return inv
}

// NewObjectInvoker prepares a method call on a referenced Lua object. The
// receiver is bound as the implicit first argument. Invalid when the
// object's VM is gone or the named field is not a function.
func NewObjectInvoker(obj *VmObject, method string) *FunctionInvoker {
	self, vm := obj.value()
	if vm == nil {
		// No VM to lock; produce a permanently invalid invoker with a
		// no-op Close.
		return &FunctionInvoker{closed: true}
	}
	vm.mu.Lock()
	inv := &FunctionInvoker{vm: vm, topStart: vm.l.GetTop()}
	if vm.closed.Load() || vm.interrupted.Load() {
		return inv
	}
	fn := vm.l.GetField(self, method)
	if fn.Type() != lua.LTFunction {
		return inv
	}
	vm.l.Push(fn)
	vm.l.Push(self)
	inv.valid = true
	return inv
}

// IsValid reports whether the target resolved to a callable function.
func (inv *FunctionInvoker) IsValid() bool { return inv.valid && !inv.closed }

// PushBool appends a boolean argument.
func (inv *FunctionInvoker) PushBool(v bool) {
	if !inv.IsValid() {
		return
	}
	inv.vm.l.Push(lua.LBool(v))
}

// PushInteger appends an integer argument. Magnitudes beyond the exact Lua
// range invalidate the invoker rather than losing precision.
func (inv *FunctionInvoker) PushInteger(v int64) {
	if !inv.IsValid() {
		return
	}
	if v > LargestExactLuaInteger || v < -LargestExactLuaInteger {
		inv.valid = false
		return
	}
	inv.vm.l.Push(lua.LNumber(v))
}

// PushUInt32 appends an unsigned integer argument.
func (inv *FunctionInvoker) PushUInt32(v uint32) {
	inv.PushInteger(int64(v))
}

// PushNumber appends a float argument.
func (inv *FunctionInvoker) PushNumber(v float64) {
	if !inv.IsValid() {
		return
	}
	inv.vm.l.Push(lua.LNumber(v))
}

// PushString appends a string argument.
func (inv *FunctionInvoker) PushString(v string) {
	if !inv.IsValid() {
		return
	}
	inv.vm.l.Push(lua.LString(v))
}

// PushBytes appends a binary string argument.
func (inv *FunctionInvoker) PushBytes(v []byte) {
	inv.PushString(string(v))
}

// PushLightUserData appends an opaque Go value as a userdata argument.
// The value has no metatable; Lua can only carry it back to native code.
func (inv *FunctionInvoker) PushLightUserData(v any) {
	if !inv.IsValid() {
		return
	}
	ud := inv.vm.l.NewUserData()
	ud.Value = v
	inv.vm.l.Push(ud)
}

// PushArrayIndex appends a zero-based index as a one-based Lua index.
func (inv *FunctionInvoker) PushArrayIndex(i uint32) {
	inv.PushInteger(int64(i) + 1)
}

// PushNil appends a nil argument.
func (inv *FunctionInvoker) PushNil() {
	if !inv.IsValid() {
		return
	}
	inv.vm.l.Push(lua.LNil)
}

// PushObject appends a referenced Lua object as an argument. Objects from
// another VM invalidate the invoker.
func (inv *FunctionInvoker) PushObject(obj *VmObject) {
	if !inv.IsValid() {
		return
	}
	v, vm := obj.value()
	if v == nil || vm != inv.vm {
		inv.valid = false
		return
	}
	inv.vm.l.Push(v)
}

// PushNode appends a data node tree as an argument. Trees that cannot be
// represented invalidate the invoker.
func (inv *FunctionInvoker) PushNode(n *Node) {
	if !inv.IsValid() {
		return
	}
	v, err := toLua(inv.vm.l, n)
	if err != nil {
		inv.valid = false
		return
	}
	inv.vm.l.Push(v)
}

// TryInvoke calls the function with the pushed arguments. On success the
// return values are readable through the Get accessors. On failure the
// error and traceback are routed to the VM's error handler and the stack
// is restored; the invoker is then invalid.
func (inv *FunctionInvoker) TryInvoke() bool {
	if !inv.IsValid() {
		return false
	}
	l := inv.vm.l

	// Everything above the function slot is an argument, the bound
	// receiver included.
	argc := l.GetTop() - inv.topStart - 1
	if err := l.PCall(argc, lua.MultRet, nil); err != nil {
		message, traceback := splitError(err)
		inv.vm.reportError(message, traceback)
		l.SetTop(inv.topStart)
		inv.valid = false
		return false
	}
	inv.returns = l.GetTop() - inv.topStart
	return true
}

// ReturnCount returns the number of values the call produced.
func (inv *FunctionInvoker) ReturnCount() int { return inv.returns }

// ret returns the i'th return value, 0-based.
func (inv *FunctionInvoker) ret(i int) lua.LValue {
	if i < 0 || i >= inv.returns {
		return lua.LNil
	}
	return inv.vm.l.Get(inv.topStart + 1 + i)
}

// GetBoolean reads return value i as a boolean.
func (inv *FunctionInvoker) GetBoolean(i int) (bool, bool) {
	if v, ok := inv.ret(i).(lua.LBool); ok {
		return bool(v), true
	}
	return false, false
}

// GetInteger reads return value i as an integer, failing on fractional
// values and magnitudes beyond the exact range.
func (inv *FunctionInvoker) GetInteger(i int) (int64, bool) {
	v, ok := inv.ret(i).(lua.LNumber)
	if !ok {
		return 0, false
	}
	f := float64(v)
	n := int64(f)
	if float64(n) != f || n > LargestExactLuaInteger || n < -LargestExactLuaInteger {
		return 0, false
	}
	return n, true
}

// GetUInt32 reads return value i as a non-negative 32-bit integer.
func (inv *FunctionInvoker) GetUInt32(i int) (uint32, bool) {
	n, ok := inv.GetInteger(i)
	if !ok || n < 0 || n > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(n), true
}

// GetNumber reads return value i as a float.
func (inv *FunctionInvoker) GetNumber(i int) (float64, bool) {
	if v, ok := inv.ret(i).(lua.LNumber); ok {
		return float64(v), true
	}
	return 0, false
}

// GetString reads return value i as a string.
func (inv *FunctionInvoker) GetString(i int) (string, bool) {
	if v, ok := inv.ret(i).(lua.LString); ok {
		return string(v), true
	}
	return "", false
}

// GetObject wraps return value i (a table, function or userdata) in a
// strong reference that survives past Close.
func (inv *FunctionInvoker) GetObject(i int) (*VmObject, bool) {
	v := inv.ret(i)
	switch v.Type() {
	case lua.LTTable, lua.LTFunction, lua.LTUserData:
		return newVmObject(inv.vm, v), true
	default:
		return nil, false
	}
}

// GetFunction wraps return value i in a strong reference when it is a
// function.
func (inv *FunctionInvoker) GetFunction(i int) (*VmObject, bool) {
	if v := inv.ret(i); v.Type() == lua.LTFunction {
		return newVmObject(inv.vm, v), true
	}
	return nil, false
}

// GetTable wraps return value i in a strong reference when it is a table.
func (inv *FunctionInvoker) GetTable(i int) (*VmObject, bool) {
	if v := inv.ret(i); v.Type() == lua.LTTable {
		return newVmObject(inv.vm, v), true
	}
	return nil, false
}

// GetUserData reads the Go value carried by return value i.
func (inv *FunctionInvoker) GetUserData(i int) (any, bool) {
	if ud, ok := inv.ret(i).(*lua.LUserData); ok && ud.Value != nil {
		return ud.Value, true
	}
	return nil, false
}

// GetEnum reads return value i as a small integer suitable for an
// enumerated type.
func (inv *FunctionInvoker) GetEnum(i int) (int, bool) {
	n, ok := inv.GetInteger(i)
	if !ok || n < -2147483648 || n > 2147483647 {
		return 0, false
	}
	return int(n), true
}

// GetNode reads return value i as a data node tree.
func (inv *FunctionInvoker) GetNode(i int) (*Node, bool) {
	n, err := fromLua(inv.ret(i), 0)
	if err != nil {
		return nil, false
	}
	return n, true
}

// Close restores the VM stack to its depth at construction and releases
// the call mutex. Idempotent. Every NewInvoker/NewObjectInvoker must be
// paired with a Close.
func (inv *FunctionInvoker) Close() {
	if inv.closed {
		return
	}
	inv.closed = true
	inv.vm.l.SetTop(inv.topStart)
	inv.vm.mu.Unlock()
}
