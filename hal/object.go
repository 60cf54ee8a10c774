// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"
	"sync/atomic"
)

// ObjectState is the lifecycle state of a GPU resource.
//
// Valid transitions are Destroyed -> Created (device creation),
// Created -> Reset (device usable), and Reset -> Created (device lost).
// A resource must be in Created or Destroyed state when it is finally
// destroyed.
type ObjectState int32

const (
	// ObjectDestroyed is the initial state: no GPU-side storage exists.
	ObjectDestroyed ObjectState = iota

	// ObjectCreated means device-independent storage exists but the
	// resource is not yet usable for rendering.
	ObjectCreated

	// ObjectReset means the resource is fully usable on the current device.
	ObjectReset
)

// String returns a human-readable name for the state.
func (s ObjectState) String() string {
	switch s {
	case ObjectDestroyed:
		return "Destroyed"
	case ObjectCreated:
		return "Created"
	case ObjectReset:
		return "Reset"
	default:
		return "Unknown"
	}
}

// Resource is implemented by every GPU object managed by a Device.
//
// OnCreate, OnReset and OnLost are invoked exclusively by the Device,
// exclusively on the render goroutine, exclusively in the lifecycle order
// documented on ObjectState. State is safe to call from any goroutine.
type Resource interface {
	Name() string
	State() ObjectState
	OnCreate() error
	OnReset() error
	OnLost() error
}

// GraphicsObject is the shared lifecycle state machine embedded by every
// GPU resource. The zero value starts in ObjectDestroyed.
type GraphicsObject struct {
	name  string
	state atomic.Int32
}

// NewGraphicsObject creates a lifecycle state machine in ObjectDestroyed
// with the given debug name.
func NewGraphicsObject(name string) GraphicsObject {
	return GraphicsObject{name: name}
}

// Name returns the debug name given at construction.
func (o *GraphicsObject) Name() string { return o.name }

// State returns the current lifecycle state. Safe from any goroutine.
func (o *GraphicsObject) State() ObjectState {
	return ObjectState(o.state.Load())
}

// OnCreate transitions Destroyed -> Created. Render goroutine only.
func (o *GraphicsObject) OnCreate() error {
	if s := o.State(); s != ObjectDestroyed {
		return fmt.Errorf("hal: OnCreate %q: state is %v, want Destroyed", o.name, s)
	}
	o.state.Store(int32(ObjectCreated))
	return nil
}

// OnReset transitions Created -> Reset. Render goroutine only.
func (o *GraphicsObject) OnReset() error {
	if s := o.State(); s != ObjectCreated {
		return fmt.Errorf("hal: OnReset %q: state is %v, want Created", o.name, s)
	}
	o.state.Store(int32(ObjectReset))
	return nil
}

// OnLost transitions Reset -> Created. Render goroutine only.
func (o *GraphicsObject) OnLost() error {
	if s := o.State(); s != ObjectReset {
		return fmt.Errorf("hal: OnLost %q: state is %v, want Reset", o.name, s)
	}
	o.state.Store(int32(ObjectCreated))
	return nil
}

// Destroy finalizes the object. The object must have already reverted to
// Created or Destroyed; destroying a resource still in Reset state is a
// lifecycle violation.
func (o *GraphicsObject) Destroy() error {
	switch s := o.State(); s {
	case ObjectCreated, ObjectDestroyed:
		o.state.Store(int32(ObjectDestroyed))
		return nil
	default:
		return fmt.Errorf("hal: Destroy %q: state is %v, want Created or Destroyed", o.name, s)
	}
}
