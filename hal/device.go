// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"

	"github.com/gogpu/gpucontext"

	kestrel "github.com/kestrel-engine/kestrel"
)

// Device owns the registered GPU resources and drives their lifecycle.
// All lifecycle methods (Create, ResetDevice, LoseDevice, Close) run on the
// render goroutine; resource state queries are safe from any goroutine.
//
// The device RECEIVES its GPU context from the host through a
// gpucontext.DeviceProvider rather than creating one, so the host and the
// rest of the application share one device. hal/wgpudevice offers a
// bootstrap for hosts that do not have one yet.
type Device struct {
	provider gpucontext.DeviceProvider

	backbuffer Viewport

	// objects in registration order; lifecycle callbacks are broadcast
	// in this order, reversed for teardown.
	objects []Resource

	created bool
	reset   bool
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithDeviceProvider supplies the host GPU context. Optional; a device
// without a provider still drives resource lifecycles (useful for tools
// and tests).
func WithDeviceProvider(p gpucontext.DeviceProvider) DeviceOption {
	return func(d *Device) { d.provider = p }
}

// WithBackbuffer sets the initial backbuffer dimensions.
func WithBackbuffer(width, height int32) DeviceOption {
	return func(d *Device) { d.backbuffer = FullViewport(width, height) }
}

// NewDevice creates a device with the given options.
func NewDevice(opts ...DeviceOption) *Device {
	d := &Device{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Provider returns the host GPU context, or nil if none was configured.
func (d *Device) Provider() gpucontext.DeviceProvider { return d.provider }

// BackbufferViewport returns the full viewport of the current backbuffer.
func (d *Device) BackbufferViewport() Viewport { return d.backbuffer }

// Register adds r to the device's lifecycle broadcast list. If the device
// has already created or reset its objects, r is brought up to the same
// state immediately.
func (d *Device) Register(r Resource) error {
	d.objects = append(d.objects, r)
	if d.created {
		if err := r.OnCreate(); err != nil {
			return err
		}
	}
	if d.reset {
		d.recompute(r)
		if err := r.OnReset(); err != nil {
			return err
		}
	}
	return nil
}

// Create transitions all registered objects Destroyed -> Created, in
// registration order.
func (d *Device) Create() error {
	if d.created {
		return fmt.Errorf("hal: Device.Create: already created")
	}
	for _, r := range d.objects {
		if err := r.OnCreate(); err != nil {
			return err
		}
	}
	d.created = true
	kestrel.Logger().Info("device created", "objects", len(d.objects))
	return nil
}

// ResetDevice transitions all registered objects Created -> Reset against
// the given backbuffer dimensions. Proportional surfaces recompute their
// pixel sizes before their OnReset fires.
func (d *Device) ResetDevice(backbufferWidth, backbufferHeight int32) error {
	if !d.created {
		return fmt.Errorf("hal: Device.ResetDevice: not created")
	}
	if d.reset {
		return fmt.Errorf("hal: Device.ResetDevice: already reset")
	}
	d.backbuffer = FullViewport(backbufferWidth, backbufferHeight)
	for _, r := range d.objects {
		d.recompute(r)
		if err := r.OnReset(); err != nil {
			return err
		}
	}
	d.reset = true
	kestrel.Logger().Info("device reset",
		"width", backbufferWidth, "height", backbufferHeight)
	return nil
}

// LoseDevice transitions all registered objects Reset -> Created in
// reverse registration order. Call on device loss or before a resize,
// then ResetDevice again.
func (d *Device) LoseDevice() error {
	if !d.reset {
		return fmt.Errorf("hal: Device.LoseDevice: not reset")
	}
	for i := len(d.objects) - 1; i >= 0; i-- {
		if err := d.objects[i].OnLost(); err != nil {
			return err
		}
	}
	d.reset = false
	kestrel.Logger().Info("device lost")
	return nil
}

func (d *Device) recompute(r Resource) {
	w := uint32(d.backbuffer.Width)
	h := uint32(d.backbuffer.Height)
	switch t := r.(type) {
	case *RenderTarget:
		t.Recompute(w, h)
	case *DepthStencilSurface:
		t.Recompute(w, h)
	}
}

// Poll pumps the underlying GPU device when a provider is configured.
// wait blocks until all submitted work completes. gpucontext.Device is an
// opaque token, so the concrete device is reached by type assertion;
// providers whose device cannot poll are a no-op.
func (d *Device) Poll(wait bool) {
	if d.provider == nil {
		return
	}
	if dev, ok := d.provider.Device().(interface{ Poll(bool) }); ok {
		dev.Poll(wait)
	}
}

// Close tears the device down: objects still in Reset are lost, then all
// objects are destroyed in reverse registration order. Teardown continues
// past failures; the first error is returned.
func (d *Device) Close() error {
	var firstErr error
	if d.reset {
		if err := d.LoseDevice(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for i := len(d.objects) - 1; i >= 0; i-- {
		r := d.objects[i]
		if g, ok := r.(interface{ Destroy() error }); ok {
			if err := g.Destroy(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	d.objects = nil
	d.created = false
	return firstErr
}
