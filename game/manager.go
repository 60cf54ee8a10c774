// Package game owns the application's scripting lifecycle: one live VM,
// background construction of replacement VMs, hot-load swaps when script
// files change on disk, and the global gameplay hooks the engine calls
// into Lua.
package game

import (
	"fmt"

	kestrel "github.com/kestrel-engine/kestrel"
	"github.com/kestrel-engine/kestrel/script"
)

// Global handler names the engine looks up in script.
const (
	handlerOnSessionStart          = "HANDLER_GlobalOnSessionStart"
	handlerCanHandlePurchasedItems = "HANDLER_GlobalCanHandlePurchasedItems"
	handlerOnItemPurchased         = "HANDLER_GlobalOnItemPurchased"
	handlerOnHotload               = "HANDLER_GlobalOnHotload"
	handlerPostHotload             = "HANDLER_GlobalPostHotload"
)

// ManagerSettings configures a ScriptManager.
type ManagerSettings struct {
	// VmSettings is the template for every VM the manager creates.
	VmSettings script.VmSettings

	// MainScript is executed in each new VM.
	MainScript string

	// Prepare runs in each new VM before its main script, for binding
	// native types and instances. Optional.
	Prepare func(*script.Vm) error
}

// ScriptManager owns the current VM and replaces it when its scripts
// change. All methods run on the main goroutine; only VM construction
// happens in the background.
type ScriptManager struct {
	settings ManagerSettings

	vm  *script.Vm
	job *VmCreateJob
}

// NewScriptManager creates a manager and starts loading the initial VM in
// the background. The first Tick that sees the load finished installs it.
func NewScriptManager(settings ManagerSettings) *ScriptManager {
	m := &ScriptManager{settings: settings}
	m.LoadNewVm()
	return m
}

// Vm returns the current VM, or nil before the initial load completes.
func (m *ScriptManager) Vm() *script.Vm { return m.vm }

// IsLoading reports whether a replacement VM is being built.
func (m *ScriptManager) IsLoading() bool { return m.job != nil }

// LoadNewVm starts building a replacement VM. No-op while a build is
// already running.
func (m *ScriptManager) LoadNewVm() {
	if m.job != nil {
		return
	}
	m.job = StartVmCreateJob(m.settings.VmSettings, m.settings.MainScript, m.settings.Prepare)
}

// Tick drives the manager: finalizes a finished background load, then
// kicks off a reload if the current VM has gone out of date.
func (m *ScriptManager) Tick() {
	if m.job != nil && m.job.IsDone() {
		m.finalizeJob()
	}
	if m.job == nil && m.vm != nil && m.vm.IsOutOfDate() {
		m.LoadNewVm()
	}
}

// finalizeJob installs the VM a finished job produced, running the
// hot-load handshake when an old VM is being replaced.
func (m *ScriptManager) finalizeJob() {
	job := m.job
	m.job = nil

	if err := job.Err(); err != nil {
		kestrel.Logger().Error("vm load failed, keeping current vm", "err", err)
		job.Dispose()
		// A failed reload must not retry every Tick.
		if m.vm != nil {
			m.vm.ClearOutOfDate()
		}
		return
	}

	newVm := job.TakeOwnershipOfVm()
	if newVm == nil {
		return
	}

	old := m.vm
	var carried *script.Node
	if old != nil {
		carried = m.invokeOnHotload(old)
	}

	m.vm = newVm

	if old != nil {
		m.invokePostHotload(newVm, carried)
		old.RaiseInterrupt()
		old.Close()
		kestrel.Logger().Info("script vm hot swapped",
			"old", old.Name(), "new", newVm.Name())
	}
}

// invokeOnHotload asks the outgoing VM for state to carry across the swap.
func (m *ScriptManager) invokeOnHotload(vm *script.Vm) *script.Node {
	inv := script.NewInvoker(vm, handlerOnHotload)
	defer inv.Close()
	if !inv.IsValid() || !inv.TryInvoke() {
		return nil
	}
	if n, ok := inv.GetNode(0); ok {
		return n
	}
	return nil
}

// invokePostHotload hands carried state to the incoming VM.
func (m *ScriptManager) invokePostHotload(vm *script.Vm, carried *script.Node) {
	inv := script.NewInvoker(vm, handlerPostHotload)
	defer inv.Close()
	if !inv.IsValid() {
		return
	}
	if carried != nil {
		inv.PushNode(carried)
	} else {
		inv.PushNil()
	}
	inv.TryInvoke()
}

// OnFileChange forwards a file change notification to the current VM.
func (m *ScriptManager) OnFileChange(path string) {
	if m.vm != nil {
		m.vm.OnFileChange(path)
	}
}

// OnSessionStart invokes the optional global session-start handler.
func (m *ScriptManager) OnSessionStart() {
	if m.vm == nil {
		return
	}
	inv := script.NewInvoker(m.vm, handlerOnSessionStart)
	defer inv.Close()
	if !inv.IsValid() {
		return
	}
	inv.TryInvoke()
}

// CanHandlePurchasedItems asks script whether it is ready to process
// purchased items. Defaults to false when no VM or handler exists.
func (m *ScriptManager) CanHandlePurchasedItems() bool {
	if m.vm == nil {
		return false
	}
	inv := script.NewInvoker(m.vm, handlerCanHandlePurchasedItems)
	defer inv.Close()
	if !inv.IsValid() || !inv.TryInvoke() {
		return false
	}
	ok, _ := inv.GetBoolean(0)
	return ok
}

// OnItemPurchased notifies script of a completed purchase.
func (m *ScriptManager) OnItemPurchased(itemID string, quantity int64) error {
	if m.vm == nil {
		return fmt.Errorf("game: no vm to handle purchase of %q", itemID)
	}
	inv := script.NewInvoker(m.vm, handlerOnItemPurchased)
	defer inv.Close()
	if !inv.IsValid() {
		return fmt.Errorf("game: no %s handler", handlerOnItemPurchased)
	}
	inv.PushString(itemID)
	inv.PushInteger(quantity)
	if !inv.TryInvoke() {
		return fmt.Errorf("game: %s failed for %q", handlerOnItemPurchased, itemID)
	}
	return nil
}

// Close tears the manager down: the background job (if any) is disposed
// and the current VM is closed.
func (m *ScriptManager) Close() {
	if m.job != nil {
		m.job.Dispose()
		m.job = nil
	}
	if m.vm != nil {
		m.vm.RaiseInterrupt()
		m.vm.Close()
		m.vm = nil
	}
}
