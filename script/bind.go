package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// NativeFunc is a Go function callable from Lua. It reads arguments and
// pushes returns exclusively through the FunctionInterface.
type NativeFunc func(*FunctionInterface)

// TypeBinding declares a native type's Lua surface. Bindings are explicit
// registration tables; every exposed method is listed by name.
type TypeBinding struct {
	// Name is the metatable name, conventionally the native type name.
	Name string

	// New constructs a fresh instance when Lua calls TypeName.new().
	// Optional; nil makes the type non-constructible from Lua.
	New func() any

	// Methods are invoked with the bound instance as argument 1.
	Methods map[string]NativeFunc
}

// BindType registers a type binding with the VM, creating its metatable.
// Instances are then bound with BindStrongInstance or BindWeakInstance.
func (vm *Vm) BindType(binding TypeBinding) error {
	if binding.Name == "" {
		return fmt.Errorf("script: BindType: empty type name")
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed.Load() {
		return fmt.Errorf("script: vm %q is closed", vm.settings.Name)
	}
	if _, dup := vm.bindings[binding.Name]; dup {
		return fmt.Errorf("script: type %q already bound", binding.Name)
	}

	mt := vm.l.NewTypeMetatable(binding.Name)
	methods := vm.l.CreateTable(0, len(binding.Methods))
	for name, fn := range binding.Methods {
		methods.RawSetString(name, vm.l.NewFunction(vm.trampoline(fn)))
	}
	vm.l.SetField(mt, "__index", methods)

	if binding.New != nil {
		typeTable := vm.l.CreateTable(0, 1)
		ctor := binding
		typeTable.RawSetString("new", vm.l.NewFunction(func(l *lua.LState) int {
			ud := l.NewUserData()
			ud.Value = ctor.New()
			l.SetMetatable(ud, mt)
			l.Push(ud)
			return 1
		}))
		vm.l.SetGlobal(binding.Name, typeTable)
	}

	vm.bindings[binding.Name] = &binding
	return nil
}

// bindInstance creates userdata for instance with typeName's metatable and
// assigns it to the named global. Call mutex held.
func (vm *Vm) bindInstance(globalName, typeName string, instance any) (*lua.LUserData, error) {
	if _, ok := vm.bindings[typeName]; !ok {
		return nil, fmt.Errorf("script: type %q is not bound", typeName)
	}
	ud := vm.l.NewUserData()
	ud.Value = instance
	vm.l.SetMetatable(ud, vm.l.GetTypeMetatable(typeName))
	vm.l.SetGlobal(globalName, ud)
	return ud, nil
}

// BindStrongInstance exposes instance as a global. The VM keeps the
// instance alive for its own lifetime.
func (vm *Vm) BindStrongInstance(globalName, typeName string, instance any) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed.Load() {
		return fmt.Errorf("script: vm %q is closed", vm.settings.Name)
	}
	_, err := vm.bindInstance(globalName, typeName, instance)
	return err
}

// BindWeakInstance exposes instance as a global without extending its
// lifetime guarantees: when the native side dies first it calls
// SetWeakBindingToNil, and method calls on the stale binding fail cleanly
// instead of touching freed state.
func (vm *Vm) BindWeakInstance(globalName, typeName string, instance any) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed.Load() {
		return fmt.Errorf("script: vm %q is closed", vm.settings.Name)
	}
	ud, err := vm.bindInstance(globalName, typeName, instance)
	if err != nil {
		return err
	}
	vm.weakMu.Lock()
	vm.weak = append(vm.weak, ud)
	vm.weakMu.Unlock()
	return nil
}

// SetWeakBindingToNil severs every weak binding to instance. Lua keeps the
// userdata but its native side is gone.
func (vm *Vm) SetWeakBindingToNil(instance any) {
	vm.weakMu.Lock()
	defer vm.weakMu.Unlock()
	for _, ud := range vm.weak {
		if ud.Value == instance {
			ud.Value = nil
		}
	}
}

// BindStrongTable exposes a table of free functions as a global module.
func (vm *Vm) BindStrongTable(globalName string, funcs map[string]NativeFunc) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed.Load() {
		return fmt.Errorf("script: vm %q is closed", vm.settings.Name)
	}
	t := vm.l.CreateTable(0, len(funcs))
	for name, fn := range funcs {
		t.RawSetString(name, vm.l.NewFunction(vm.trampoline(fn)))
	}
	vm.l.SetGlobal(globalName, t)
	return nil
}
