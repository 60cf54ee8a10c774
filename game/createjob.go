package game

import (
	"fmt"

	kestrel "github.com/kestrel-engine/kestrel"
	"github.com/kestrel-engine/kestrel/script"
)

// VmCreateJob builds a VM and runs its main script off the main goroutine.
// Ownership of the finished VM transfers exactly once through
// TakeOwnershipOfVm; a job whose VM is never taken disposes of it itself.
type VmCreateJob struct {
	done chan struct{}

	// Set before done closes, read only after.
	vm  *script.Vm
	err error

	taken bool
}

// StartVmCreateJob begins constructing a VM with the given settings and
// running mainScript in it. prepare, when non-nil, runs after the VM is
// created and before the main script, for type and instance binding.
func StartVmCreateJob(settings script.VmSettings, mainScript string, prepare func(*script.Vm) error) *VmCreateJob {
	job := &VmCreateJob{done: make(chan struct{})}
	go func() {
		defer close(job.done)
		vm, err := script.NewVm(settings)
		if err != nil {
			job.err = fmt.Errorf("game: vm creation failed: %w", err)
			return
		}
		if prepare != nil {
			if err := prepare(vm); err != nil {
				vm.Close()
				job.err = fmt.Errorf("game: vm prepare failed: %w", err)
				return
			}
		}
		if mainScript != "" {
			if err := vm.RunScript(mainScript); err != nil {
				vm.Close()
				job.err = err
				return
			}
		}
		job.vm = vm
	}()
	return job
}

// IsDone reports whether the job has finished, successfully or not.
func (j *VmCreateJob) IsDone() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the job finishes.
func (j *VmCreateJob) Wait() {
	<-j.done
}

// Err returns the job's failure, if any. Valid once IsDone.
func (j *VmCreateJob) Err() error {
	if !j.IsDone() {
		return nil
	}
	return j.err
}

// TakeOwnershipOfVm transfers the finished VM to the caller. Returns nil
// if the job failed or ownership was already taken. The job must be done.
func (j *VmCreateJob) TakeOwnershipOfVm() *script.Vm {
	if !j.IsDone() || j.taken || j.vm == nil {
		return nil
	}
	j.taken = true
	return j.vm
}

// Dispose cleans up after a job whose VM was never taken.
func (j *VmCreateJob) Dispose() {
	j.Wait()
	if !j.taken && j.vm != nil {
		kestrel.Logger().Warn("vm create job disposed untaken", "vm", j.vm.Name())
		j.vm.Close()
		j.vm = nil
	}
}
