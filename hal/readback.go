// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import "sync"

// ReadPixelCallback receives the result of a ReadBackBufferPixel record.
// ok is false if the pixel could not be read (out of range, device lost);
// the callback still fires exactly once.
type ReadPixelCallback interface {
	OnReadPixel(color Color8, ok bool)
}

// FrameData is a captured backbuffer frame. Implementations are provided
// by the backend; callers must call Release when done with the data.
type FrameData interface {
	// Data is the raw pixel storage, Pitch bytes per row.
	Data() []byte
	Width() uint32
	Height() uint32
	Pitch() uint32
	// Release returns the frame storage to the backend.
	Release()
}

// GrabFrameCallback receives the result of a GrabBackBufferFrame record.
// The callback takes ownership of data when ok is true.
type GrabFrameCallback interface {
	OnGrabFrame(frame uint32, data FrameData, ok bool)
}

// CallbackQueue collects readback results produced during Execute so the
// owning goroutine can deliver them at a point of its choosing. When a
// readback is recorded without a queue, its callback fires inline during
// Execute instead.
type CallbackQueue struct {
	mu      sync.Mutex
	pending []func()
}

func (q *CallbackQueue) post(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Drain invokes all queued callbacks in the order they were produced and
// returns the number delivered.
func (q *CallbackQueue) Drain() int {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
	return len(pending)
}
