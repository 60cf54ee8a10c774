// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Execute replays the recorded command stream against backend in FIFO
// order, accumulating counters into stats when non-nil. Render goroutine
// only. The stream remains intact after replay; call Reset to recycle the
// builder.
//
// Readback callbacks fire exactly once per record, in record order, with
// ok=false when the backend could not service them.
func (b *Builder) Execute(backend Backend, stats *RenderStats) error {
	if !b.executing.CompareAndSwap(false, true) {
		return fmt.Errorf("hal: Execute re-entered")
	}
	defer b.executing.Store(false)
	if b.lockTarget != nil {
		return fmt.Errorf("hal: Execute with outstanding lock on %q", b.lockTarget.Name())
	}

	s := &b.stream
	s.SeekRead(0)

	// One lock region may be pending between a lock opcode and its
	// matching unlock.
	var lockData []byte
	var lockLevel uint32
	var lockRegion Rect

	for s.HasUnread() {
		rawOp, ok := s.ReadUint8()
		if !ok {
			return b.truncated(opUnknown)
		}
		op := opcode(rawOp)
		switch op {
		case opApplyDefaultRenderState:
			backend.ApplyDefaultRenderState()

		case opBeginEvent:
			name, ok := s.ReadString()
			if !ok {
				return b.truncated(op)
			}
			backend.BeginEvent(name)

		case opEndEvent:
			backend.EndEvent()

		case opClear:
			flags, ok1 := s.ReadUint32()
			r, ok2 := s.ReadFloat32()
			g, ok3 := s.ReadFloat32()
			bl, ok4 := s.ReadFloat32()
			a, ok5 := s.ReadFloat32()
			depth, ok6 := s.ReadFloat32()
			stencil, ok7 := s.ReadUint8()
			if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
				return b.truncated(op)
			}
			backend.Clear(ClearFlags(flags), gputypes.Color{
				R: float64(r), G: float64(g), B: float64(bl), A: float64(a),
			}, depth, stencil)

		case opPostPass:
			backend.PostPass()

		case opSetCurrentViewport:
			var v Viewport
			vals := []*int32{&v.TargetWidth, &v.TargetHeight, &v.X, &v.Y, &v.Width, &v.Height}
			for _, p := range vals {
				iv, ok := s.ReadInt32()
				if !ok {
					return b.truncated(op)
				}
				*p = iv
			}
			backend.SetCurrentViewport(v)

		case opSetScissor:
			enabled, ok := s.ReadBool()
			if !ok {
				return b.truncated(op)
			}
			r, ok := b.readRect(s)
			if !ok {
				return b.truncated(op)
			}
			backend.SetScissor(enabled, r)

		case opUseVertexFormat:
			f, err := resolve[*VertexFormat](b, s, op)
			if err != nil {
				return err
			}
			backend.UseVertexFormat(f)

		case opSetNullIndices:
			backend.SetNullIndices()

		case opSetIndices:
			buf, err := resolve[*IndexBuffer](b, s, op)
			if err != nil {
				return err
			}
			backend.SetIndices(buf)

		case opSetNullVertices:
			stream, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			backend.SetNullVertices(stream)

		case opSetVertices:
			stream, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			buf, err := resolve[*VertexBuffer](b, s, op)
			if err != nil {
				return err
			}
			offset, ok1 := s.ReadUint32()
			stride, ok2 := s.ReadUint32()
			if !(ok1 && ok2) {
				return b.truncated(op)
			}
			backend.SetVertices(stream, buf, offset, stride)

		case opDrawPrimitive:
			topology, ok1 := s.ReadUint32()
			offset, ok2 := s.ReadUint32()
			primitives, ok3 := s.ReadUint32()
			if !(ok1 && ok2 && ok3) {
				return b.truncated(op)
			}
			top := gputypes.PrimitiveTopology(topology)
			backend.DrawPrimitive(top, offset, primitives)
			if stats != nil {
				stats.Draws++
				if top == gputypes.PrimitiveTopologyTriangleList {
					stats.Triangles += primitives
				}
			}

		case opDrawIndexedPrimitive:
			var vals [6]uint32
			for i := range vals {
				v, ok := s.ReadUint32()
				if !ok {
					return b.truncated(op)
				}
				vals[i] = v
			}
			top := gputypes.PrimitiveTopology(vals[0])
			backend.DrawIndexedPrimitive(top, vals[1], vals[2], vals[3], vals[4], vals[5])
			if stats != nil {
				stats.Draws++
				if top == gputypes.PrimitiveTopologyTriangleList {
					stats.Triangles += vals[5]
				}
			}

		case opLockIndexBuffer, opLockVertexBuffer:
			if _, ok := s.ReadUint32(); !ok {
				return b.truncated(op)
			}
			size, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			s.AlignRead()
			data, ok := s.ReadBytes(int(size))
			if !ok {
				return b.truncated(op)
			}
			lockData = data

		case opUnlockIndexBuffer:
			buf, err := resolve[*IndexBuffer](b, s, op)
			if err != nil {
				return err
			}
			if err := backend.LockIndexBuffer(buf, lockData); err != nil {
				return fmt.Errorf("hal: %v: %w", op, err)
			}
			lockData = nil

		case opUnlockVertexBuffer:
			buf, err := resolve[*VertexBuffer](b, s, op)
			if err != nil {
				return err
			}
			if err := backend.LockVertexBuffer(buf, lockData); err != nil {
				return fmt.Errorf("hal: %v: %w", op, err)
			}
			lockData = nil

		case opLockTexture:
			if _, ok := s.ReadUint32(); !ok {
				return b.truncated(op)
			}
			level, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			region, ok := b.readRect(s)
			if !ok {
				return b.truncated(op)
			}
			size, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			s.AlignRead()
			data, ok := s.ReadBytes(int(size))
			if !ok {
				return b.truncated(op)
			}
			lockData, lockLevel, lockRegion = data, level, region

		case opUnlockTexture:
			t, err := resolve[*Texture](b, s, op)
			if err != nil {
				return err
			}
			if err := backend.LockTexture(t, lockLevel, lockRegion, lockData); err != nil {
				return fmt.Errorf("hal: %v: %w", op, err)
			}
			lockData = nil

		case opUpdateTexture:
			t, err := resolve[*Texture](b, s, op)
			if err != nil {
				return err
			}
			level, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			region, ok := b.readRect(s)
			if !ok {
				return b.truncated(op)
			}
			size, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			s.AlignRead()
			data, ok := s.ReadBytes(int(size))
			if !ok {
				return b.truncated(op)
			}
			if err := backend.UpdateTexture(t, level, region, data); err != nil {
				return fmt.Errorf("hal: %v: %w", op, err)
			}

		case opSelectRenderTarget:
			t, err := resolve[*RenderTarget](b, s, op)
			if err != nil {
				return err
			}
			backend.SelectRenderTarget(t)

		case opResolveRenderTarget:
			t, err := resolve[*RenderTarget](b, s, op)
			if err != nil {
				return err
			}
			backend.ResolveRenderTarget(t)

		case opSelectDepthStencilSurface:
			ds, err := resolve[*DepthStencilSurface](b, s, op)
			if err != nil {
				return err
			}
			backend.SelectDepthStencilSurface(ds)

		case opResolveDepthStencilSurface:
			ds, err := resolve[*DepthStencilSurface](b, s, op)
			if err != nil {
				return err
			}
			backend.ResolveDepthStencilSurface(ds)

		case opCommitRenderSurface:
			backend.CommitRenderSurface()

		case opBeginEffect:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			technique, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			backend.BeginEffect(e, technique)
			if stats != nil {
				stats.EffectBegins++
			}

		case opEndEffect:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			backend.EndEffect(e)

		case opBeginEffectPass:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			technique, ok1 := s.ReadUint32()
			pass, ok2 := s.ReadUint8()
			if !(ok1 && ok2) {
				return b.truncated(op)
			}
			backend.BeginEffectPass(e, technique, pass)

		case opCommitEffectPass:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			backend.CommitEffectPass(e)

		case opEndEffectPass:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			backend.EndEffectPass(e)

		case opSetFloatParameter:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			handle, ok1 := s.ReadUint32()
			value, ok2 := s.ReadFloat32()
			if !(ok1 && ok2) {
				return b.truncated(op)
			}
			backend.SetFloatParameter(e, handle, value)

		case opSetVector4Parameter:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			handle, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			var v Vector4
			for i := range v {
				f, ok := s.ReadFloat32()
				if !ok {
					return b.truncated(op)
				}
				v[i] = f
			}
			backend.SetVector4Parameter(e, handle, v)

		case opSetMatrix4Parameter:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			handle, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			var m Matrix4
			for i := range m {
				f, ok := s.ReadFloat32()
				if !ok {
					return b.truncated(op)
				}
				m[i] = f
			}
			backend.SetMatrix4Parameter(e, handle, m)

		case opSetMatrix3x4ArrayParameter:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			handle, ok1 := s.ReadUint32()
			count, ok2 := s.ReadUint32()
			if !(ok1 && ok2) {
				return b.truncated(op)
			}
			s.AlignRead()
			values := make([]Matrix3x4, count)
			for i := range values {
				for j := range values[i] {
					f, ok := s.ReadFloat32()
					if !ok {
						return b.truncated(op)
					}
					values[i][j] = f
				}
			}
			backend.SetMatrix3x4ArrayParameter(e, handle, values)

		case opSetTextureParameter:
			e, err := resolve[*Effect](b, s, op)
			if err != nil {
				return err
			}
			handle, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			t, err := resolve[*Texture](b, s, op)
			if err != nil {
				return err
			}
			backend.SetTextureParameter(e, handle, t)

		case opReadBackBufferPixel:
			x, ok1 := s.ReadInt32()
			y, ok2 := s.ReadInt32()
			idx, ok3 := s.ReadUint32()
			if !(ok1 && ok2 && ok3) {
				return b.truncated(op)
			}
			if idx >= uint32(len(b.readPixel)) {
				return fmt.Errorf("hal: %v: callback index %d out of range", op, idx)
			}
			entry := b.readPixel[idx]
			color, pixelOK := backend.ReadBackBufferPixel(x, y)
			deliver(entry.queue, func() { entry.cb.OnReadPixel(color, pixelOK) })

		case opGrabBackBufferFrame:
			frame, ok1 := s.ReadUint32()
			rect, ok2 := b.readRect(s)
			idx, ok3 := s.ReadUint32()
			if !(ok1 && ok2 && ok3) {
				return b.truncated(op)
			}
			if idx >= uint32(len(b.grabFrame)) {
				return fmt.Errorf("hal: %v: callback index %d out of range", op, idx)
			}
			entry := b.grabFrame[idx]
			data, grabOK := backend.GrabBackBufferFrame(frame, rect)
			deliver(entry.queue, func() { entry.cb.OnGrabFrame(frame, data, grabOK) })

		case opUpdateOsWindowRegions:
			count, ok := s.ReadUint32()
			if !ok {
				return b.truncated(op)
			}
			s.AlignRead()
			regions := make([]OsWindowRegion, count)
			for i := range regions {
				r, ok := b.readRect(s)
				if !ok {
					return b.truncated(op)
				}
				margin, ok1 := s.ReadFloat32()
				mainForm, ok2 := s.ReadBool()
				if !(ok1 && ok2) {
					return b.truncated(op)
				}
				regions[i] = OsWindowRegion{Rect: r, InputMargin: margin, MainForm: mainForm}
			}
			backend.UpdateOsWindowRegions(regions)

		default:
			return fmt.Errorf("hal: unknown opcode 0x%02x at offset %d", rawOp, s.ReadOffset())
		}
	}
	return nil
}

func (b *Builder) truncated(op opcode) error {
	return fmt.Errorf("hal: truncated command stream decoding %v at offset %d", op, b.stream.ReadOffset())
}

func (b *Builder) readRect(s *CommandStream) (Rect, bool) {
	var r Rect
	vals := []*int32{&r.Left, &r.Top, &r.Right, &r.Bottom}
	for _, p := range vals {
		v, ok := s.ReadInt32()
		if !ok {
			return Rect{}, false
		}
		*p = v
	}
	return r, true
}

// resolve reads a u32 object index and returns the referenced resource as
// T. nilIndex resolves to the zero T.
func resolve[T Resource](b *Builder, s *CommandStream, op opcode) (T, error) {
	var zero T
	idx, ok := s.ReadUint32()
	if !ok {
		return zero, b.truncated(op)
	}
	if idx == nilIndex {
		return zero, nil
	}
	if idx >= uint32(len(b.objects)) {
		return zero, fmt.Errorf("hal: %v: object index %d out of range", op, idx)
	}
	r, ok := b.objects[idx].(T)
	if !ok {
		return zero, fmt.Errorf("hal: %v: object index %d has unexpected type %T", op, idx, b.objects[idx])
	}
	return r, nil
}

func deliver(queue *CallbackQueue, fn func()) {
	if queue != nil {
		queue.post(fn)
		return
	}
	fn()
}
