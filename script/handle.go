package script

import "sync"

// VmHandle is a weak reference to a Vm. Objects that may outlive their VM
// (VmObject in particular) hold handles instead of pointers; after the VM
// is closed, Ptr resolves to nil and the object degrades gracefully.
type VmHandle struct {
	index      uint32
	generation uint32
}

// IsValid reports whether the handle was ever bound to a Vm. It does not
// imply the Vm is still alive.
func (h VmHandle) IsValid() bool { return h.generation != 0 }

// Ptr resolves the handle to its Vm, or nil if the VM has been closed.
func (h VmHandle) Ptr() *Vm {
	return handles.resolve(h)
}

// handleTable maps handle indices to live VMs. Generations distinguish a
// recycled slot from the VM that previously occupied it.
type handleTable struct {
	mu    sync.RWMutex
	slots []handleSlot
	free  []uint32
}

type handleSlot struct {
	vm         *Vm
	generation uint32
}

var handles handleTable

func (t *handleTable) acquire(vm *Vm) VmHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		index = uint32(len(t.slots))
		t.slots = append(t.slots, handleSlot{})
	}
	slot := &t.slots[index]
	slot.vm = vm
	slot.generation++
	return VmHandle{index: index, generation: slot.generation}
}

func (t *handleTable) release(h VmHandle) {
	if !h.IsValid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h.index) >= len(t.slots) {
		return
	}
	slot := &t.slots[h.index]
	if slot.generation != h.generation {
		return
	}
	slot.vm = nil
	t.free = append(t.free, h.index)
}

func (t *handleTable) resolve(h VmHandle) *Vm {
	if !h.IsValid() {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(h.index) >= len(t.slots) {
		return nil
	}
	slot := &t.slots[h.index]
	if slot.generation != h.generation {
		return nil
	}
	return slot.vm
}
