package script

import (
	"strings"
	"testing"
	"time"
)

func TestInvokerMissingGlobal(t *testing.T) {
	vm := newTestVm(t)

	depthBefore := vm.l.GetTop()
	inv := NewInvoker(vm, "NoSuchFunction")
	if inv.IsValid() {
		t.Error("invoker for a missing global should be invalid")
	}
	inv.Close()
	if got := vm.l.GetTop(); got != depthBefore {
		t.Errorf("stack depth after Close = %d, want %d", got, depthBefore)
	}
}

func TestInvokerNotAFunction(t *testing.T) {
	vm := newTestVm(t)
	if err := vm.RunCode(`NotAFunction = 5`); err != nil {
		t.Fatal(err)
	}

	inv := NewInvoker(vm, "NotAFunction")
	defer inv.Close()
	if inv.IsValid() {
		t.Error("invoker for a non-function global should be invalid")
	}
}

func TestInvokerCallWithArgsAndReturns(t *testing.T) {
	vm := newTestVm(t)
	err := vm.RunCode(`
		function Combine(a, b, flag, label)
			if flag then
				return a + b, label .. "!", true
			end
			return 0
		end
	`)
	if err != nil {
		t.Fatal(err)
	}

	inv := NewInvoker(vm, "Combine")
	defer inv.Close()
	if !inv.IsValid() {
		t.Fatal("invoker should be valid")
	}

	inv.PushInteger(40)
	inv.PushNumber(2)
	inv.PushBool(true)
	inv.PushString("done")
	if !inv.TryInvoke() {
		t.Fatal("TryInvoke() failed")
	}

	if inv.ReturnCount() != 3 {
		t.Fatalf("ReturnCount() = %d, want 3", inv.ReturnCount())
	}
	if n, ok := inv.GetInteger(0); !ok || n != 42 {
		t.Errorf("GetInteger(0) = %d, %v, want 42", n, ok)
	}
	if s, ok := inv.GetString(1); !ok || s != "done!" {
		t.Errorf("GetString(1) = %q, %v, want \"done!\"", s, ok)
	}
	if b, ok := inv.GetBoolean(2); !ok || !b {
		t.Errorf("GetBoolean(2) = %v, %v, want true", b, ok)
	}

	// Out-of-range and mistyped reads fail closed.
	if _, ok := inv.GetInteger(5); ok {
		t.Error("GetInteger(5) should fail")
	}
	if _, ok := inv.GetBoolean(0); ok {
		t.Error("GetBoolean on a number return should fail")
	}
}

func TestInvokerRuntimeErrorRestoresStack(t *testing.T) {
	var handled string
	vm, err := NewVm(VmSettings{
		Name:         "errinvoke",
		ErrorHandler: func(message, _ string) { handled = message },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer vm.Close()

	if err := vm.RunCode(`function Explode() error("kaput") end`); err != nil {
		t.Fatal(err)
	}

	depthBefore := vm.l.GetTop()
	inv := NewInvoker(vm, "Explode")
	if !inv.IsValid() {
		t.Fatal("invoker should be valid")
	}
	if inv.TryInvoke() {
		t.Error("TryInvoke() should fail for a raising function")
	}
	if !strings.Contains(handled, "kaput") {
		t.Errorf("handler message = %q, want to contain \"kaput\"", handled)
	}
	inv.Close()
	if got := vm.l.GetTop(); got != depthBefore {
		t.Errorf("stack depth = %d, want %d", got, depthBefore)
	}
}

func TestObjectInvoker(t *testing.T) {
	vm := newTestVm(t)
	err := vm.RunCode(`
		counter = { value = 10 }
		function counter:AddAndGet(n)
			self.value = self.value + n
			return self.value
		end
	`)
	if err != nil {
		t.Fatal(err)
	}

	var obj *VmObject
	if err := vm.RunCode(`function GetCounter() return counter end`); err != nil {
		t.Fatal(err)
	}
	func() {
		inv := NewInvoker(vm, "GetCounter")
		defer inv.Close()
		if !inv.TryInvoke() {
			t.Fatal("GetCounter failed")
		}
		var ok bool
		obj, ok = inv.GetObject(0)
		if !ok {
			t.Fatal("GetObject(0) failed")
		}
	}()
	defer obj.ReleaseRef()

	minv := NewObjectInvoker(obj, "AddAndGet")
	if !minv.IsValid() {
		t.Fatal("object invoker should be valid")
	}
	minv.PushInteger(5)
	if !minv.TryInvoke() {
		t.Fatal("method invoke failed")
	}
	if n, ok := minv.GetInteger(0); !ok || n != 15 {
		t.Errorf("AddAndGet = %d, %v, want 15", n, ok)
	}
	minv.Close()

	badinv := NewObjectInvoker(obj, "NoSuchMethod")
	if badinv.IsValid() {
		t.Error("invoker for a missing method should be invalid")
	}
	badinv.Close()
}

func TestObjectOutlivesVm(t *testing.T) {
	vm, err := NewVm(VmSettings{Name: "dying"})
	if err != nil {
		t.Fatal(err)
	}
	if err := vm.RunCode(`function GetThing() return { x = 1 } end`); err != nil {
		t.Fatal(err)
	}

	var obj *VmObject
	func() {
		inv := NewInvoker(vm, "GetThing")
		defer inv.Close()
		if !inv.TryInvoke() {
			t.Fatal("GetThing failed")
		}
		obj, _ = inv.GetObject(0)
	}()

	if node, ok := obj.ToDataStore(); !ok || node.Table["x"].Int != 1 {
		t.Fatalf("ToDataStore() = %+v, %v", node, ok)
	}

	vm.Close()
	if obj.IsAlive() {
		t.Error("object should not be alive after its VM closed")
	}
	if _, ok := obj.ToDataStore(); ok {
		t.Error("ToDataStore on a dead VM should fail")
	}
	obj.ReleaseRef() // must not panic

	inv := NewObjectInvoker(obj, "anything")
	if inv.IsValid() {
		t.Error("object invoker on a dead VM should be invalid")
	}
	inv.Close()
}

func TestNestedInvocationBlocks(t *testing.T) {
	vm := newTestVm(t)
	if err := vm.RunCode(`function Outer() return 1 end`); err != nil {
		t.Fatal(err)
	}

	inv := NewInvoker(vm, "Outer")
	defer inv.Close()

	// A second invoker on the same VM must block until the first closes.
	acquired := make(chan struct{})
	go func() {
		inner := NewInvoker(vm, "Outer")
		close(acquired)
		inner.Close()
	}()

	select {
	case <-acquired:
		t.Fatal("second invoker acquired the VM while the first was open")
	case <-time.After(50 * time.Millisecond):
	}

	inv.Close()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second invoker never acquired the VM after the first closed")
	}
}

func TestPushIntegerPrecisionFailClosed(t *testing.T) {
	vm := newTestVm(t)
	if err := vm.RunCode(`function Echo(n) return n end`); err != nil {
		t.Fatal(err)
	}

	inv := NewInvoker(vm, "Echo")
	inv.PushInteger(LargestExactLuaInteger + 1)
	if inv.IsValid() {
		t.Error("pushing 2^53+1 should invalidate the invoker")
	}
	if inv.TryInvoke() {
		t.Error("TryInvoke after an invalid push should fail")
	}
	inv.Close()

	inv = NewInvoker(vm, "Echo")
	defer inv.Close()
	inv.PushInteger(LargestExactLuaInteger)
	if !inv.TryInvoke() {
		t.Fatal("2^53 exactly should invoke fine")
	}
	if n, ok := inv.GetInteger(0); !ok || n != LargestExactLuaInteger {
		t.Errorf("Echo(2^53) = %d, %v", n, ok)
	}
}

func TestTypedReturnAccessors(t *testing.T) {
	vm := newTestVm(t)
	if err := vm.RunCode(`
		function Mixed()
			return function() end, {kind = "table"}, 7, "str"
		end
	`); err != nil {
		t.Fatal(err)
	}

	inv := NewInvoker(vm, "Mixed")
	defer inv.Close()
	if !inv.TryInvoke() {
		t.Fatal("TryInvoke failed")
	}

	if fn, ok := inv.GetFunction(0); !ok || fn == nil {
		t.Error("GetFunction(0) failed on a function return")
	}
	if _, ok := inv.GetFunction(1); ok {
		t.Error("GetFunction(1) succeeded on a table return")
	}
	if tbl, ok := inv.GetTable(1); !ok || tbl == nil {
		t.Error("GetTable(1) failed on a table return")
	}
	if _, ok := inv.GetTable(2); ok {
		t.Error("GetTable(2) succeeded on a number return")
	}
	if e, ok := inv.GetEnum(2); !ok || e != 7 {
		t.Errorf("GetEnum(2) = %d, %v, want 7, true", e, ok)
	}
	if _, ok := inv.GetEnum(3); ok {
		t.Error("GetEnum(3) succeeded on a string return")
	}
}

func TestLightUserDataRoundTrip(t *testing.T) {
	vm := newTestVm(t)
	if err := vm.RunCode(`function Carry(v) return v end`); err != nil {
		t.Fatal(err)
	}

	type payload struct{ n int }
	want := &payload{n: 42}

	inv := NewInvoker(vm, "Carry")
	defer inv.Close()
	inv.PushLightUserData(want)
	if !inv.TryInvoke() {
		t.Fatal("TryInvoke failed")
	}
	got, ok := inv.GetUserData(0)
	if !ok {
		t.Fatal("GetUserData(0) failed")
	}
	if got != want {
		t.Errorf("GetUserData(0) = %p, want %p", got, want)
	}
}

func TestPushArrayIndexIsOneBased(t *testing.T) {
	vm := newTestVm(t)
	if err := vm.RunCode(`
		items = {"a", "b", "c"}
		function At(i) return items[i] end
	`); err != nil {
		t.Fatal(err)
	}

	inv := NewInvoker(vm, "At")
	defer inv.Close()
	inv.PushArrayIndex(0)
	if !inv.TryInvoke() {
		t.Fatal("TryInvoke failed")
	}
	if s, ok := inv.GetString(0); !ok || s != "a" {
		t.Errorf("At(index 0) = %q, %v, want \"a\"", s, ok)
	}
}
