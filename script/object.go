package script

import (
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// VmObject is a strong reference to a Lua value (usually a table) that
// native code holds across invocations. It refers to its VM through a weak
// handle, so it may safely outlive the VM: operations on an object whose
// VM is gone fail quietly instead of touching freed state.
//
// Release with ReleaseRef when done; the referenced Lua value is otherwise
// kept alive for the VM's lifetime.
type VmObject struct {
	handle   VmHandle
	slot     int
	released atomic.Bool
}

func newVmObject(vm *Vm, v lua.LValue) *VmObject {
	return &VmObject{handle: vm.handle, slot: vm.ref(v)}
}

// Vm resolves the owning VM, or nil if it has been closed.
func (o *VmObject) Vm() *Vm { return o.handle.Ptr() }

// IsAlive reports whether the object still resolves to a live reference.
func (o *VmObject) IsAlive() bool {
	return !o.released.Load() && o.handle.Ptr() != nil
}

// value resolves the referenced Lua value, or nil.
func (o *VmObject) value() (lua.LValue, *Vm) {
	if o.released.Load() {
		return nil, nil
	}
	vm := o.handle.Ptr()
	if vm == nil {
		return nil, nil
	}
	v := vm.refValue(o.slot)
	if v == lua.LNil {
		return nil, nil
	}
	return v, vm
}

// ReleaseRef drops the strong reference. Idempotent; safe to call from
// inside an invocation scope and after the VM is closed.
func (o *VmObject) ReleaseRef() {
	if !o.released.CompareAndSwap(false, true) {
		return
	}
	if vm := o.handle.Ptr(); vm != nil {
		vm.unref(o.slot)
	}
}

// SetWeakBindingToNil severs the native side of the referenced userdata,
// if the object refers to one. Method calls on the binding then fail
// cleanly.
func (o *VmObject) SetWeakBindingToNil() {
	v, _ := o.value()
	if ud, ok := v.(*lua.LUserData); ok {
		ud.Value = nil
	}
}

// ToDataStore marshals the referenced value into a data node tree. Must
// not be called from inside an active invocation on the same VM.
func (o *VmObject) ToDataStore() (*Node, bool) {
	v, vm := o.value()
	if v == nil {
		return nil, false
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	n, err := fromLua(v, 0)
	if err != nil {
		return nil, false
	}
	return n, true
}
