// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpudevice

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"

	kestrel "github.com/kestrel-engine/kestrel"
)

// ErrNoGPU is returned by Init when no usable adapter can be found.
var ErrNoGPU = errors.New("wgpudevice: no compatible GPU adapter found")

// Context owns a wgpu instance, adapter, device and queue. Create with
// NewContext, bring up with Init, tear down with Close.
type Context struct {
	mu sync.RWMutex

	instance *core.Instance
	adapter  core.AdapterID
	device   core.DeviceID
	queue    core.QueueID

	info *GPUInfo

	initialized bool
}

// NewContext creates an uninitialized context. Call Init before use.
func NewContext() *Context {
	return &Context{}
}

// Init creates the GPU resource chain: instance, adapter (preferring the
// high performance GPU), device and queue. Calling Init on an initialized
// context is a no-op.
func (c *Context) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	c.instance = core.NewInstance(&gputypes.InstanceDescriptor{
		Backends: gputypes.BackendsPrimary,
	})

	adapterID, err := c.instance.RequestAdapter(&gputypes.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoGPU, err)
	}
	c.adapter = adapterID

	if info, err := getGPUInfo(adapterID); err == nil {
		c.info = info
		kestrel.Logger().Info("gpu selected", "gpu", info.String(), "driver", info.Driver)
	}

	deviceID, err := core.RequestDevice(adapterID, &gputypes.DeviceDescriptor{
		Label:            "kestrel-device",
		RequiredFeatures: nil,
		RequiredLimits:   gputypes.DefaultLimits(),
	})
	if err != nil {
		_ = core.AdapterDrop(adapterID)
		c.adapter = core.AdapterID{}
		return fmt.Errorf("wgpudevice: device creation failed: %w", err)
	}
	c.device = deviceID

	queueID, err := core.GetDeviceQueue(deviceID)
	if err != nil {
		_ = core.DeviceDrop(deviceID)
		_ = core.AdapterDrop(adapterID)
		c.device = core.DeviceID{}
		c.adapter = core.AdapterID{}
		return fmt.Errorf("wgpudevice: queue retrieval failed: %w", err)
	}
	c.queue = queueID

	c.initialized = true
	return nil
}

// Device returns the device ID. Zero until Init succeeds.
func (c *Context) Device() core.DeviceID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device
}

// Queue returns the queue ID. Zero until Init succeeds.
func (c *Context) Queue() core.QueueID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue
}

// Adapter returns the adapter ID. Zero until Init succeeds.
func (c *Context) Adapter() core.AdapterID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adapter
}

// Info returns the selected GPU's description, or nil before Init.
func (c *Context) Info() *GPUInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// CheckLimits validates the device against kestrel's minimum requirements.
func (c *Context) CheckLimits(minTextureDimension2D uint32) error {
	c.mu.RLock()
	device := c.device
	c.mu.RUnlock()
	if device.IsZero() {
		return errors.New("wgpudevice: not initialized")
	}
	limits, err := core.GetDeviceLimits(device)
	if err != nil {
		return fmt.Errorf("wgpudevice: failed to get device limits: %w", err)
	}
	if limits.MaxTextureDimension2D < minTextureDimension2D {
		return fmt.Errorf("wgpudevice: max 2D texture dimension %d below required %d",
			limits.MaxTextureDimension2D, minTextureDimension2D)
	}
	return nil
}

// Close releases the device and adapter in reverse creation order. The
// queue is released with the device.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return
	}

	if !c.device.IsZero() {
		if err := core.DeviceDrop(c.device); err != nil {
			kestrel.Logger().Warn("device release failed", "err", err)
		}
		c.device = core.DeviceID{}
	}
	if !c.adapter.IsZero() {
		if err := core.AdapterDrop(c.adapter); err != nil {
			kestrel.Logger().Warn("adapter release failed", "err", err)
		}
		c.adapter = core.AdapterID{}
	}
	c.instance = nil
	c.queue = core.QueueID{}
	c.info = nil
	c.initialized = false
}
