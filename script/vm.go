package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	kestrel "github.com/kestrel-engine/kestrel"
)

// Vm is one embedded Lua interpreter. Create with NewVm, dispose with
// Close.
//
// The call mutex serializes all interpreter access: FunctionInvoker and
// the native-call trampoline hold it for their whole scope. Methods on Vm
// that touch the interpreter take it themselves and must not be called
// from inside an active invocation.
type Vm struct {
	settings VmSettings

	// mu is the call mutex.
	mu sync.Mutex
	l  *lua.LState

	handle VmHandle

	cancel context.CancelFunc

	// regMu guards the strong reference registry. Separate from the call
	// mutex so ReleaseRef is safe from inside an invocation scope.
	regMu    sync.Mutex
	refs     []lua.LValue
	freeRefs []int

	weakMu   sync.Mutex
	weak     []*lua.LUserData
	bindings map[string]*TypeBinding

	depMu     sync.Mutex
	deps      map[string]struct{}
	outOfDate atomic.Bool

	interrupted atomic.Bool
	closed      atomic.Bool

	gcSteps    atomic.Uint64
	gcFullRuns atomic.Uint64
	scriptsRun atomic.Uint64
}

// NewVm creates a Lua interpreter configured by settings and runs no code.
func NewVm(settings VmSettings) (*Vm, error) {
	vm := &Vm{
		settings: settings,
		bindings: make(map[string]*TypeBinding),
		deps:     make(map[string]struct{}),
	}
	vm.l = lua.NewState(lua.Options{
		IncludeGoStackTrace: settings.EnableDebuggerHooks,
	})

	ctx, cancel := context.WithCancel(context.Background())
	vm.cancel = cancel
	vm.l.SetContext(ctx)

	vm.l.SetGlobal("print", vm.l.NewFunction(vm.luaPrint))

	vm.handle = handles.acquire(vm)
	kestrel.Logger().Info("script vm created", "vm", settings.Name)
	return vm, nil
}

// Name returns the VM's configured name.
func (vm *Vm) Name() string { return vm.settings.Name }

// Handle returns a weak handle to this VM.
func (vm *Vm) Handle() VmHandle { return vm.handle }

func (vm *Vm) luaPrint(l *lua.LState) int {
	n := l.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, l.Get(i).String())
	}
	line := strings.Join(parts, "\t")
	if vm.settings.StandardOutput != nil {
		vm.settings.StandardOutput(line)
	} else {
		kestrel.Logger().Info("script output", "vm", vm.settings.Name, "line", line)
	}
	return 0
}

// reportError routes a runtime error to the configured handler.
func (vm *Vm) reportError(message, traceback string) {
	if vm.settings.ErrorHandler != nil {
		vm.settings.ErrorHandler(message, traceback)
		return
	}
	kestrel.Logger().Error("script error",
		"vm", vm.settings.Name, "message", message, "traceback", traceback)
}

// splitError separates a gopher-lua error into message and traceback.
func splitError(err error) (message, traceback string) {
	if apiErr, ok := err.(*lua.ApiError); ok {
		return apiErr.Object.String(), apiErr.StackTrace
	}
	return err.Error(), ""
}

// RunCode compiles and executes a chunk of Lua source.
func (vm *Vm) RunCode(code string) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed.Load() {
		return fmt.Errorf("script: vm %q is closed", vm.settings.Name)
	}

	vm.scriptsRun.Add(1)
	if err := vm.l.DoString(code); err != nil {
		message, traceback := splitError(err)
		vm.reportError(message, traceback)
		return fmt.Errorf("script: vm %q: %s", vm.settings.Name, message)
	}
	return nil
}

// RunScript resolves path against the configured base paths, executes the
// file, and registers it as a data dependency for hot loading.
func (vm *Vm) RunScript(path string) error {
	resolved, err := vm.resolvePath(path)
	if err != nil {
		return err
	}
	vm.AddDataDependency(resolved)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed.Load() {
		return fmt.Errorf("script: vm %q is closed", vm.settings.Name)
	}

	vm.scriptsRun.Add(1)
	if err := vm.l.DoFile(resolved); err != nil {
		message, traceback := splitError(err)
		vm.reportError(message, traceback)
		return fmt.Errorf("script: vm %q: %s: %s", vm.settings.Name, path, message)
	}
	return nil
}

// resolvePath finds path under the configured base paths. Absolute paths
// and paths that exist as given pass through.
func (vm *Vm) resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	for _, base := range vm.settings.BasePaths {
		candidate := filepath.Join(base, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("script: vm %q: script %q not found under base paths", vm.settings.Name, path)
}

// HasGlobal reports whether the named global is set to a non-nil value.
func (vm *Vm) HasGlobal(name string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed.Load() {
		return false
	}
	return vm.l.GetGlobal(name) != lua.LNil
}

// TryGetGlobal reads the named global into a data node tree. Returns false
// if the global is unset or holds a value that cannot be marshaled.
func (vm *Vm) TryGetGlobal(name string) (*Node, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed.Load() {
		return nil, false
	}
	v := vm.l.GetGlobal(name)
	if v == lua.LNil {
		return nil, false
	}
	node, err := fromLua(v, 0)
	if err != nil {
		return nil, false
	}
	return node, true
}

// TrySetGlobal writes a data node tree to the named global. Returns false
// if the tree cannot be represented in Lua.
func (vm *Vm) TrySetGlobal(name string, node *Node) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed.Load() {
		return false
	}
	v, err := toLua(vm.l, node)
	if err != nil {
		return false
	}
	vm.l.SetGlobal(name, v)
	return true
}

// ref stores v in the strong reference registry and returns its slot.
func (vm *Vm) ref(v lua.LValue) int {
	vm.regMu.Lock()
	defer vm.regMu.Unlock()
	if n := len(vm.freeRefs); n > 0 {
		slot := vm.freeRefs[n-1]
		vm.freeRefs = vm.freeRefs[:n-1]
		vm.refs[slot] = v
		return slot
	}
	vm.refs = append(vm.refs, v)
	return len(vm.refs) - 1
}

func (vm *Vm) unref(slot int) {
	vm.regMu.Lock()
	defer vm.regMu.Unlock()
	if slot < 0 || slot >= len(vm.refs) || vm.refs[slot] == nil {
		return
	}
	vm.refs[slot] = nil
	vm.freeRefs = append(vm.freeRefs, slot)
}

func (vm *Vm) refValue(slot int) lua.LValue {
	vm.regMu.Lock()
	defer vm.regMu.Unlock()
	if slot < 0 || slot >= len(vm.refs) || vm.refs[slot] == nil {
		return lua.LNil
	}
	return vm.refs[slot]
}

// StepGarbageCollector performs one bounded unit of collection work. The
// interpreter's memory is managed by the Go runtime, which collects
// concurrently on its own schedule; stepping here is accounting that feeds
// GcStats and keeps callers' per-frame budgets meaningful.
func (vm *Vm) StepGarbageCollector() {
	vm.gcSteps.Add(uint64(vm.settings.gcStepSize()))
}

// GcFull runs a full garbage collection unless the configured hook vetoes
// it. Returns true if a collection ran.
func (vm *Vm) GcFull() bool {
	if hook := vm.settings.PreCollectionHook; hook != nil && !hook() {
		return false
	}
	runtime.GC()
	vm.gcFullRuns.Add(1)
	return true
}

// GcStats returns the number of incremental steps and full collections
// performed.
func (vm *Vm) GcStats() (steps, fullRuns uint64) {
	return vm.gcSteps.Load(), vm.gcFullRuns.Load()
}

// ScriptsRun returns the number of chunks executed through RunCode and
// RunScript.
func (vm *Vm) ScriptsRun() uint64 { return vm.scriptsRun.Load() }

// RaiseInterrupt aborts script execution at the next interpreter boundary.
// The VM cannot run further code afterwards; interrupt is a shutdown or
// hot-load abort signal, not a pause.
func (vm *Vm) RaiseInterrupt() {
	if vm.interrupted.CompareAndSwap(false, true) {
		vm.cancel()
		kestrel.Logger().Warn("script vm interrupted", "vm", vm.settings.Name)
	}
}

// Interrupted reports whether RaiseInterrupt has been called.
func (vm *Vm) Interrupted() bool { return vm.interrupted.Load() }

// AddDataDependency registers a script file whose change makes this VM
// out of date.
func (vm *Vm) AddDataDependency(path string) {
	vm.depMu.Lock()
	vm.deps[filepath.Clean(path)] = struct{}{}
	vm.depMu.Unlock()
}

// AddGeneralDependency registers any file (config, data) whose change makes
// this VM out of date.
func (vm *Vm) AddGeneralDependency(path string) {
	vm.AddDataDependency(path)
}

// OnFileChange notifies the VM that a file changed on disk. If the file is
// a registered dependency, the VM flags itself out of date.
func (vm *Vm) OnFileChange(path string) {
	vm.depMu.Lock()
	_, hit := vm.deps[filepath.Clean(path)]
	vm.depMu.Unlock()
	if hit {
		vm.outOfDate.Store(true)
		kestrel.Logger().Info("script vm out of date", "vm", vm.settings.Name, "file", path)
	}
}

// IsOutOfDate reports whether a registered dependency changed since the VM
// loaded it.
func (vm *Vm) IsOutOfDate() bool { return vm.outOfDate.Load() }

// ClearOutOfDate resets the out-of-date flag, typically after a failed
// reload keeps the current VM in service.
func (vm *Vm) ClearOutOfDate() { vm.outOfDate.Store(false) }

// Close shuts the interpreter down and invalidates all handles to this VM.
// Safe to call more than once.
func (vm *Vm) Close() {
	if !vm.closed.CompareAndSwap(false, true) {
		return
	}
	handles.release(vm.handle)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.cancel()
	vm.l.Close()

	vm.regMu.Lock()
	vm.refs = nil
	vm.freeRefs = nil
	vm.regMu.Unlock()

	kestrel.Logger().Info("script vm closed", "vm", vm.settings.Name)
}
