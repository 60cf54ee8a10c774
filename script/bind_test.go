package script

import (
	"strings"
	"testing"
)

type counter struct {
	value int
}

func counterBinding() TypeBinding {
	return TypeBinding{
		Name: "Counter",
		New:  func() any { return &counter{} },
		Methods: map[string]NativeFunc{
			"Add": func(fi *FunctionInterface) {
				self, ok := fi.GetSelf()
				if !ok {
					fi.RaiseError(1, "counter is gone")
					return
				}
				n, ok := fi.GetInteger(2)
				if !ok {
					fi.RaiseError(2, "expected an integer")
					return
				}
				c := self.(*counter)
				c.value += int(n)
				fi.PushReturnInteger(int64(c.value))
			},
		},
	}
}

func TestBindTypeAndInstance(t *testing.T) {
	vm := newTestVm(t)
	if err := vm.BindType(counterBinding()); err != nil {
		t.Fatalf("BindType() error: %v", err)
	}
	if err := vm.BindType(counterBinding()); err == nil {
		t.Error("duplicate BindType should fail")
	}

	c := &counter{value: 100}
	if err := vm.BindStrongInstance("hits", "Counter", c); err != nil {
		t.Fatalf("BindStrongInstance() error: %v", err)
	}
	if err := vm.BindStrongInstance("x", "Unbound", c); err == nil {
		t.Error("binding an unregistered type should fail")
	}

	if err := vm.RunCode(`total = hits:Add(5)`); err != nil {
		t.Fatalf("RunCode() error: %v", err)
	}
	if c.value != 105 {
		t.Errorf("native value = %d, want 105", c.value)
	}
	if n, ok := vm.TryGetGlobal("total"); !ok || n.Int != 105 {
		t.Errorf("total = %+v, %v, want 105", n, ok)
	}

	// Constructor exposed as Counter.new().
	if err := vm.RunCode(`fresh = Counter.new(); first = fresh:Add(1)`); err != nil {
		t.Fatalf("constructor error: %v", err)
	}
	if n, ok := vm.TryGetGlobal("first"); !ok || n.Int != 1 {
		t.Errorf("first = %+v, %v, want 1", n, ok)
	}
}

func TestDeferredRaiseErrorBecomesLuaError(t *testing.T) {
	var handled string
	vm, err := NewVm(VmSettings{
		Name:         "raise",
		ErrorHandler: func(message, _ string) { handled = message },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer vm.Close()

	if err := vm.BindType(counterBinding()); err != nil {
		t.Fatal(err)
	}
	if err := vm.BindStrongInstance("hits", "Counter", &counter{}); err != nil {
		t.Fatal(err)
	}

	// Wrong argument type: the native func records the error, the
	// trampoline raises it after the func returns.
	if err := vm.RunCode(`hits:Add("not a number")`); err == nil {
		t.Fatal("mistyped call should produce a Lua error")
	}
	if !strings.Contains(handled, "bad argument #2") {
		t.Errorf("handler message = %q, want bad argument #2", handled)
	}

	// pcall on the Lua side contains the error.
	if err := vm.RunCode(`ok, msg = pcall(function() hits:Add({}) end)`); err != nil {
		t.Fatalf("pcall wrapper error: %v", err)
	}
	if n, _ := vm.TryGetGlobal("ok"); n == nil || n.Bool {
		t.Error("pcall should report failure")
	}
}

func TestWeakBindingSevered(t *testing.T) {
	var handled string
	vm, err := NewVm(VmSettings{
		Name:         "weak",
		ErrorHandler: func(message, _ string) { handled = message },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer vm.Close()

	if err := vm.BindType(counterBinding()); err != nil {
		t.Fatal(err)
	}
	c := &counter{}
	if err := vm.BindWeakInstance("transient", "Counter", c); err != nil {
		t.Fatalf("BindWeakInstance() error: %v", err)
	}

	if err := vm.RunCode(`transient:Add(1)`); err != nil {
		t.Fatalf("call before severing: %v", err)
	}

	vm.SetWeakBindingToNil(c)
	if err := vm.RunCode(`transient:Add(1)`); err == nil {
		t.Fatal("call on a severed binding should fail")
	}
	if !strings.Contains(handled, "gone") {
		t.Errorf("handler message = %q, want the native-gone error", handled)
	}
	if c.value != 1 {
		t.Errorf("native value = %d, want 1 (severed call must not mutate)", c.value)
	}
}

func TestBindStrongTable(t *testing.T) {
	vm := newTestVm(t)

	var logged []string
	err := vm.BindStrongTable("Engine", map[string]NativeFunc{
		"Log": func(fi *FunctionInterface) {
			s, ok := fi.GetString(1)
			if !ok {
				fi.RaiseError(1, "expected a string")
				return
			}
			logged = append(logged, s)
		},
		"Version": func(fi *FunctionInterface) {
			fi.PushReturnString("1.0")
			fi.PushReturnInteger(1)
		},
	})
	if err != nil {
		t.Fatalf("BindStrongTable() error: %v", err)
	}

	if err := vm.RunCode(`
		Engine.Log("starting")
		v, n = Engine.Version()
	`); err != nil {
		t.Fatalf("RunCode() error: %v", err)
	}
	if len(logged) != 1 || logged[0] != "starting" {
		t.Errorf("logged = %v", logged)
	}
	if s, ok := vm.TryGetGlobal("v"); !ok || s.Str != "1.0" {
		t.Errorf("v = %+v, %v", s, ok)
	}
	if n, ok := vm.TryGetGlobal("n"); !ok || n.Int != 1 {
		t.Errorf("n = %+v, %v", n, ok)
	}
}
