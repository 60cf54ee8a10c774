// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hal is the GPU hardware abstraction layer.
//
// All GPU resources (buffers, textures, vertex formats, effects, render
// surfaces) share a three-state lifecycle driven by the Device on the
// render goroutine: Destroyed -> Created -> Reset, with Reset -> Created
// on device loss. The state itself is atomic, so any goroutine may observe
// it, but only the render goroutine mutates it.
//
// GPU work is never issued directly. A producer goroutine records
// operations into a Builder, which serializes them into an opcode-coded
// binary command stream and retains a reference to every resource the
// stream names. The render goroutine later replays the stream exactly once
// against a platform Backend via Execute, in strict FIFO order.
//
// The stream encoding is positional, not self-describing: every write of a
// structured payload is paired with an identical-shape read during replay,
// and raw data blobs (locked buffer contents, aligned arrays) are 16-byte
// aligned on both sides. Decode logic must mirror encode logic exactly.
package hal
