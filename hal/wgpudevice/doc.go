// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpudevice bootstraps a wgpu adapter, device and queue for hosts
// that do not already own a GPU context.
//
// Applications embedded in a larger framework normally receive a shared
// gpucontext.DeviceProvider from their host and pass it to hal.NewDevice
// directly; this package is for standalone tools (editors, headless
// capture) that must stand the GPU stack up themselves.
package wgpudevice
