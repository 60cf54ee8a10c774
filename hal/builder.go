// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	kestrel "github.com/kestrel-engine/kestrel"
)

// nilIndex is the stream encoding of a nil resource reference.
const nilIndex = ^uint32(0)

// Builder records GPU commands into a CommandStream for later replay via
// Execute. Commands are recorded on any one goroutine and replayed FIFO on
// the render goroutine; the builder itself is not safe for concurrent use.
//
// Every resource referenced by a recorded command is retained in a
// reference set until Reset, so a resource can be destroyed by its owner
// immediately after recording without invalidating the stream.
type Builder struct {
	stream CommandStream

	refs        map[Resource]struct{}
	objects     []Resource
	objectIndex map[Resource]uint32

	readPixel []readPixelEntry
	grabFrame []grabFrameEntry

	currentViewport Viewport

	// lockTarget is the resource with an outstanding lock region, if any.
	// At most one lock may be open at a time.
	lockTarget Resource

	executing atomic.Bool
}

type readPixelEntry struct {
	cb    ReadPixelCallback
	queue *CallbackQueue
}

type grabFrameEntry struct {
	cb    GrabFrameCallback
	queue *CallbackQueue
}

// NewBuilder creates an empty command stream builder.
func NewBuilder() *Builder {
	return &Builder{
		refs:        make(map[Resource]struct{}),
		objectIndex: make(map[Resource]uint32),
	}
}

// IsEmpty returns true if no commands or callbacks have been recorded
// since the last Reset.
func (b *Builder) IsEmpty() bool {
	return b.stream.IsEmpty() && len(b.readPixel) == 0 && len(b.grabFrame) == 0
}

// HasReference reports whether the builder currently retains r.
func (b *Builder) HasReference(r Resource) bool {
	_, ok := b.refs[r]
	return ok
}

// ReferenceCount returns the number of distinct resources retained.
func (b *Builder) ReferenceCount() int { return len(b.refs) }

// Reset clears all recorded commands, retained references and pending
// callbacks, returning the builder to its initial state. It is an error to
// reset while a replay is in flight or while a lock region is outstanding.
func (b *Builder) Reset() error {
	if b.executing.Load() {
		return fmt.Errorf("hal: Reset while Execute is in flight")
	}
	if b.lockTarget != nil {
		return fmt.Errorf("hal: Reset with outstanding lock on %q", b.lockTarget.Name())
	}
	b.stream.Reset()
	clear(b.refs)
	b.objects = b.objects[:0]
	clear(b.objectIndex)
	b.readPixel = b.readPixel[:0]
	b.grabFrame = b.grabFrame[:0]
	b.currentViewport = Viewport{}
	return nil
}

// CurrentViewport returns the most recently recorded viewport. Queryable
// at record time without replaying the stream.
func (b *Builder) CurrentViewport() Viewport { return b.currentViewport }

func (b *Builder) writeOp(op opcode) {
	b.stream.WriteUint8(uint8(op))
}

// ref retains r and returns its stable stream index. nil encodes as
// nilIndex.
func (b *Builder) ref(r Resource) uint32 {
	if r == nil {
		return nilIndex
	}
	if idx, ok := b.objectIndex[r]; ok {
		return idx
	}
	idx := uint32(len(b.objects))
	b.objects = append(b.objects, r)
	b.objectIndex[r] = idx
	b.refs[r] = struct{}{}
	return idx
}

// ApplyDefaultRenderState records a reset of all render state to defaults.
func (b *Builder) ApplyDefaultRenderState() {
	b.writeOp(opApplyDefaultRenderState)
}

// BeginEvent records the start of a named debug event region.
func (b *Builder) BeginEvent(name string) {
	b.writeOp(opBeginEvent)
	b.stream.WriteString(name)
}

// EndEvent records the end of the innermost debug event region.
func (b *Builder) EndEvent() {
	b.writeOp(opEndEvent)
}

// Clear records a clear of the currently selected render surface.
func (b *Builder) Clear(flags ClearFlags, color gputypes.Color, depth float32, stencil uint8) {
	b.writeOp(opClear)
	b.stream.WriteUint32(uint32(flags))
	b.stream.WriteFloat32(float32(color.R))
	b.stream.WriteFloat32(float32(color.G))
	b.stream.WriteFloat32(float32(color.B))
	b.stream.WriteFloat32(float32(color.A))
	b.stream.WriteFloat32(depth)
	b.stream.WriteUint8(stencil)
}

// PostPass records end-of-pass housekeeping.
func (b *Builder) PostPass() {
	b.writeOp(opPostPass)
}

// SetCurrentViewport records a viewport change and updates the queryable
// mirror.
func (b *Builder) SetCurrentViewport(v Viewport) {
	b.currentViewport = v
	b.writeOp(opSetCurrentViewport)
	b.stream.WriteInt32(v.TargetWidth)
	b.stream.WriteInt32(v.TargetHeight)
	b.stream.WriteInt32(v.X)
	b.stream.WriteInt32(v.Y)
	b.stream.WriteInt32(v.Width)
	b.stream.WriteInt32(v.Height)
}

// SetScissor records a scissor state change.
func (b *Builder) SetScissor(enabled bool, r Rect) {
	b.writeOp(opSetScissor)
	b.stream.WriteBool(enabled)
	b.writeRect(r)
}

func (b *Builder) writeRect(r Rect) {
	b.stream.WriteInt32(r.Left)
	b.stream.WriteInt32(r.Top)
	b.stream.WriteInt32(r.Right)
	b.stream.WriteInt32(r.Bottom)
}

// UseVertexFormat records the active vertex layout.
func (b *Builder) UseVertexFormat(f *VertexFormat) {
	b.writeOp(opUseVertexFormat)
	if f == nil {
		b.stream.WriteUint32(nilIndex)
	} else {
		b.stream.WriteUint32(b.ref(f))
	}
}

// SetIndices records the active index buffer. A nil buffer records a
// distinct unbind command with no payload.
func (b *Builder) SetIndices(buf *IndexBuffer) {
	if buf == nil {
		b.writeOp(opSetNullIndices)
		return
	}
	b.writeOp(opSetIndices)
	b.stream.WriteUint32(b.ref(buf))
}

// SetVertices records the vertex buffer bound to stream. A nil buffer
// records a distinct unbind command carrying only the stream slot.
func (b *Builder) SetVertices(stream uint32, buf *VertexBuffer, offset, stride uint32) {
	if buf == nil {
		b.writeOp(opSetNullVertices)
		b.stream.WriteUint32(stream)
		return
	}
	b.writeOp(opSetVertices)
	b.stream.WriteUint32(stream)
	b.stream.WriteUint32(b.ref(buf))
	b.stream.WriteUint32(offset)
	b.stream.WriteUint32(stride)
}

// DrawPrimitive records a non-indexed draw of primitives starting at
// vertex offset.
func (b *Builder) DrawPrimitive(topology gputypes.PrimitiveTopology, offset, primitives uint32) {
	b.writeOp(opDrawPrimitive)
	b.stream.WriteUint32(uint32(topology))
	b.stream.WriteUint32(offset)
	b.stream.WriteUint32(primitives)
}

// DrawIndexedPrimitive records an indexed draw.
func (b *Builder) DrawIndexedPrimitive(topology gputypes.PrimitiveTopology, baseVertex, minVertex, vertexCount, startIndex, primitives uint32) {
	b.writeOp(opDrawIndexedPrimitive)
	b.stream.WriteUint32(uint32(topology))
	b.stream.WriteUint32(baseVertex)
	b.stream.WriteUint32(minVertex)
	b.stream.WriteUint32(vertexCount)
	b.stream.WriteUint32(startIndex)
	b.stream.WriteUint32(primitives)
}

// LockIndexBuffer reserves an aligned region inside the command stream for
// buf's new contents and returns it for the caller to fill. The region must
// be fully written, then sealed with UnlockIndexBuffer, before any further
// command is recorded. size is clamped to the buffer's capacity.
func (b *Builder) LockIndexBuffer(buf *IndexBuffer, size uint32) ([]byte, error) {
	if buf == nil {
		return nil, fmt.Errorf("hal: LockIndexBuffer on nil buffer")
	}
	if b.lockTarget != nil {
		return nil, fmt.Errorf("hal: LockIndexBuffer %q: lock already outstanding on %q", buf.Name(), b.lockTarget.Name())
	}
	if size > buf.TotalSize() {
		size = buf.TotalSize()
	}
	b.writeOp(opLockIndexBuffer)
	b.stream.WriteUint32(b.ref(buf))
	b.stream.WriteUint32(size)
	b.stream.AlignWrite()
	b.lockTarget = buf
	return b.stream.Reserve(int(size)), nil
}

// UnlockIndexBuffer seals the lock region opened by LockIndexBuffer.
func (b *Builder) UnlockIndexBuffer(buf *IndexBuffer) error {
	if buf == nil || b.lockTarget != Resource(buf) {
		return fmt.Errorf("hal: UnlockIndexBuffer: no outstanding lock on this buffer")
	}
	b.lockTarget = nil
	b.writeOp(opUnlockIndexBuffer)
	b.stream.WriteUint32(b.ref(buf))
	return nil
}

// LockVertexBuffer reserves an aligned region inside the command stream for
// buf's new contents. Same contract as LockIndexBuffer.
func (b *Builder) LockVertexBuffer(buf *VertexBuffer, size uint32) ([]byte, error) {
	if buf == nil {
		return nil, fmt.Errorf("hal: LockVertexBuffer on nil buffer")
	}
	if b.lockTarget != nil {
		return nil, fmt.Errorf("hal: LockVertexBuffer %q: lock already outstanding on %q", buf.Name(), b.lockTarget.Name())
	}
	if size > buf.TotalSize() {
		size = buf.TotalSize()
	}
	b.writeOp(opLockVertexBuffer)
	b.stream.WriteUint32(b.ref(buf))
	b.stream.WriteUint32(size)
	b.stream.AlignWrite()
	b.lockTarget = buf
	return b.stream.Reserve(int(size)), nil
}

// UnlockVertexBuffer seals the lock region opened by LockVertexBuffer.
func (b *Builder) UnlockVertexBuffer(buf *VertexBuffer) error {
	if buf == nil || b.lockTarget != Resource(buf) {
		return fmt.Errorf("hal: UnlockVertexBuffer: no outstanding lock on this buffer")
	}
	b.lockTarget = nil
	b.writeOp(opUnlockVertexBuffer)
	b.stream.WriteUint32(b.ref(buf))
	return nil
}

// validateTextureRegion checks level and region against the texture's
// mip-adjusted dimensions and returns the exact byte size of the region.
func validateTextureRegion(t *Texture, level uint32, region Rect) (uint32, error) {
	if level >= t.Levels() {
		return 0, fmt.Errorf("hal: texture %q: level %d out of range (%d levels)", t.Name(), level, t.Levels())
	}
	w, h := t.MipLevelSize(level)
	if region.IsEmpty() ||
		region.Left < 0 || region.Top < 0 ||
		region.Right > int32(w) || region.Bottom > int32(h) {
		return 0, fmt.Errorf("hal: texture %q level %d: region %+v outside %dx%d", t.Name(), level, region, w, h)
	}
	size := DataSizeForFormat(uint32(region.Width()), uint32(region.Height()), t.Format())
	if size == 0 {
		return 0, fmt.Errorf("hal: texture %q: format %v has no linear layout", t.Name(), t.Format())
	}
	return size, nil
}

// LockTexture reserves an aligned region inside the command stream for a
// sub-rect of one mip level. Same single-lock contract as LockIndexBuffer.
func (b *Builder) LockTexture(t *Texture, level uint32, region Rect) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("hal: LockTexture on nil texture")
	}
	if b.lockTarget != nil {
		return nil, fmt.Errorf("hal: LockTexture %q: lock already outstanding on %q", t.Name(), b.lockTarget.Name())
	}
	size, err := validateTextureRegion(t, level, region)
	if err != nil {
		return nil, err
	}
	b.writeOp(opLockTexture)
	b.stream.WriteUint32(b.ref(t))
	b.stream.WriteUint32(level)
	b.writeRect(region)
	b.stream.WriteUint32(size)
	b.stream.AlignWrite()
	b.lockTarget = t
	return b.stream.Reserve(int(size)), nil
}

// UnlockTexture seals the lock region opened by LockTexture.
func (b *Builder) UnlockTexture(t *Texture) error {
	if t == nil || b.lockTarget != Resource(t) {
		return fmt.Errorf("hal: UnlockTexture: no outstanding lock on this texture")
	}
	b.lockTarget = nil
	b.writeOp(opUnlockTexture)
	b.stream.WriteUint32(b.ref(t))
	return nil
}

// UpdateTexture records an immediate sub-rect update with caller-provided
// data. The data is copied into the stream; len(data) must equal the exact
// byte size of the region in the texture's format.
func (b *Builder) UpdateTexture(t *Texture, level uint32, region Rect, data []byte) error {
	if t == nil {
		return fmt.Errorf("hal: UpdateTexture on nil texture")
	}
	size, err := validateTextureRegion(t, level, region)
	if err != nil {
		return err
	}
	if uint32(len(data)) != size {
		return fmt.Errorf("hal: UpdateTexture %q: got %d bytes, region needs %d", t.Name(), len(data), size)
	}
	b.writeOp(opUpdateTexture)
	b.stream.WriteUint32(b.ref(t))
	b.stream.WriteUint32(level)
	b.writeRect(region)
	b.stream.WriteUint32(size)
	b.stream.AlignWrite()
	b.stream.WriteBytes(data)
	return nil
}

// SelectRenderTarget records the active color target. nil selects the
// backbuffer.
func (b *Builder) SelectRenderTarget(t *RenderTarget) {
	b.writeOp(opSelectRenderTarget)
	if t == nil {
		b.stream.WriteUint32(nilIndex)
	} else {
		b.stream.WriteUint32(b.ref(t))
	}
}

// ResolveRenderTarget records a resolve of t into its readable form.
func (b *Builder) ResolveRenderTarget(t *RenderTarget) {
	b.writeOp(opResolveRenderTarget)
	if t == nil {
		b.stream.WriteUint32(nilIndex)
	} else {
		b.stream.WriteUint32(b.ref(t))
	}
}

// SelectDepthStencilSurface records the active depth/stencil surface. nil
// selects none.
func (b *Builder) SelectDepthStencilSurface(s *DepthStencilSurface) {
	b.writeOp(opSelectDepthStencilSurface)
	if s == nil {
		b.stream.WriteUint32(nilIndex)
	} else {
		b.stream.WriteUint32(b.ref(s))
	}
}

// ResolveDepthStencilSurface records a resolve of s into its readable form.
func (b *Builder) ResolveDepthStencilSurface(s *DepthStencilSurface) {
	b.writeOp(opResolveDepthStencilSurface)
	if s == nil {
		b.stream.WriteUint32(nilIndex)
	} else {
		b.stream.WriteUint32(b.ref(s))
	}
}

// CommitRenderSurface records a commit of the current target/depth pair.
func (b *Builder) CommitRenderSurface() {
	b.writeOp(opCommitRenderSurface)
}

// BeginEffect starts rendering with the named technique of e. If e is nil,
// not yet created, or does not contain the technique, nothing is recorded
// and the returned pass is invalid; all subsequent operations on an invalid
// pass record nothing.
func (b *Builder) BeginEffect(e *Effect, technique string) EffectPass {
	if e == nil || e.State() == ObjectDestroyed {
		return EffectPass{}
	}
	t, ok := e.Technique(technique)
	if !ok || t.PassCount == 0 {
		return EffectPass{}
	}
	b.writeOp(opBeginEffect)
	b.stream.WriteUint32(b.ref(e))
	b.stream.WriteUint32(t.Handle)
	return EffectPass{technique: t.Handle, index: 0, count: t.PassCount}
}

// EndEffect ends rendering with e. Records nothing for an invalid pass.
func (b *Builder) EndEffect(e *Effect, pass EffectPass) {
	if e == nil || !pass.IsValid() {
		return
	}
	b.writeOp(opEndEffect)
	b.stream.WriteUint32(b.ref(e))
}

// BeginEffectPass starts the pass identified by pass. Records nothing for
// an invalid pass.
func (b *Builder) BeginEffectPass(e *Effect, pass EffectPass) {
	if e == nil || !pass.IsValid() {
		return
	}
	b.writeOp(opBeginEffectPass)
	b.stream.WriteUint32(b.ref(e))
	b.stream.WriteUint32(pass.technique)
	b.stream.WriteUint8(pass.index)
}

// CommitEffectPass flushes parameter changes made since the pass began.
func (b *Builder) CommitEffectPass(e *Effect, pass EffectPass) {
	if e == nil || !pass.IsValid() {
		return
	}
	b.writeOp(opCommitEffectPass)
	b.stream.WriteUint32(b.ref(e))
}

// EndEffectPass ends the current pass.
func (b *Builder) EndEffectPass(e *Effect, pass EffectPass) {
	if e == nil || !pass.IsValid() {
		return
	}
	b.writeOp(opEndEffectPass)
	b.stream.WriteUint32(b.ref(e))
}

// parameter resolves semantic on e to a handle of the wanted type. A
// missing semantic or a type mismatch records nothing; content-driven
// misses are expected and must not interrupt the frame.
func (b *Builder) parameter(e *Effect, semantic string, want ParameterType) (uint32, bool) {
	if e == nil {
		return 0, false
	}
	p, ok := e.Parameter(semantic)
	if !ok || p.Type != want {
		kestrel.Logger().Debug("effect parameter skipped",
			"effect", e.Name(), "semantic", semantic, "want", want.String())
		return 0, false
	}
	return p.Handle, true
}

// SetFloatParameter records a float parameter change.
func (b *Builder) SetFloatParameter(e *Effect, semantic string, value float32) {
	h, ok := b.parameter(e, semantic, ParameterFloat)
	if !ok {
		return
	}
	b.writeOp(opSetFloatParameter)
	b.stream.WriteUint32(b.ref(e))
	b.stream.WriteUint32(h)
	b.stream.WriteFloat32(value)
}

// SetVector4Parameter records a vector parameter change.
func (b *Builder) SetVector4Parameter(e *Effect, semantic string, value Vector4) {
	h, ok := b.parameter(e, semantic, ParameterVector4)
	if !ok {
		return
	}
	b.writeOp(opSetVector4Parameter)
	b.stream.WriteUint32(b.ref(e))
	b.stream.WriteUint32(h)
	for _, f := range value {
		b.stream.WriteFloat32(f)
	}
}

// SetMatrix4Parameter records a matrix parameter change.
func (b *Builder) SetMatrix4Parameter(e *Effect, semantic string, value Matrix4) {
	h, ok := b.parameter(e, semantic, ParameterMatrix4)
	if !ok {
		return
	}
	b.writeOp(opSetMatrix4Parameter)
	b.stream.WriteUint32(b.ref(e))
	b.stream.WriteUint32(h)
	for _, f := range value {
		b.stream.WriteFloat32(f)
	}
}

// SetMatrix3x4ArrayParameter records a skinning matrix array change. The
// array payload is aligned like a raw blob.
func (b *Builder) SetMatrix3x4ArrayParameter(e *Effect, semantic string, values []Matrix3x4) {
	h, ok := b.parameter(e, semantic, ParameterMatrix3x4Array)
	if !ok {
		return
	}
	b.writeOp(opSetMatrix3x4ArrayParameter)
	b.stream.WriteUint32(b.ref(e))
	b.stream.WriteUint32(h)
	b.stream.WriteUint32(uint32(len(values)))
	b.stream.AlignWrite()
	for _, m := range values {
		for _, f := range m {
			b.stream.WriteFloat32(f)
		}
	}
}

// SetTextureParameter records a texture parameter change. A nil texture
// unbinds the sampler.
func (b *Builder) SetTextureParameter(e *Effect, semantic string, t *Texture) {
	h, ok := b.parameter(e, semantic, ParameterTexture)
	if !ok {
		return
	}
	b.writeOp(opSetTextureParameter)
	b.stream.WriteUint32(b.ref(e))
	b.stream.WriteUint32(h)
	if t == nil {
		b.stream.WriteUint32(nilIndex)
	} else {
		b.stream.WriteUint32(b.ref(t))
	}
}

// ReadBackBufferPixel records an asynchronous single-pixel readback. cb
// fires exactly once during or after the replay that services the record:
// inline during Execute when queue is nil, otherwise when the owner drains
// queue.
func (b *Builder) ReadBackBufferPixel(x, y int32, cb ReadPixelCallback, queue *CallbackQueue) {
	b.writeOp(opReadBackBufferPixel)
	b.stream.WriteInt32(x)
	b.stream.WriteInt32(y)
	b.stream.WriteUint32(uint32(len(b.readPixel)))
	b.readPixel = append(b.readPixel, readPixelEntry{cb: cb, queue: queue})
}

// GrabBackBufferFrame records an asynchronous full-frame capture. Same
// delivery contract as ReadBackBufferPixel.
func (b *Builder) GrabBackBufferFrame(frame uint32, rect Rect, cb GrabFrameCallback, queue *CallbackQueue) {
	b.writeOp(opGrabBackBufferFrame)
	b.stream.WriteUint32(frame)
	b.writeRect(rect)
	b.stream.WriteUint32(uint32(len(b.grabFrame)))
	b.grabFrame = append(b.grabFrame, grabFrameEntry{cb: cb, queue: queue})
}

// UpdateOsWindowRegions records a replacement of the OS window region list.
// The region array travels aligned inside the stream.
func (b *Builder) UpdateOsWindowRegions(regions []OsWindowRegion) {
	b.writeOp(opUpdateOsWindowRegions)
	b.stream.WriteUint32(uint32(len(regions)))
	b.stream.AlignWrite()
	for _, r := range regions {
		b.writeRect(r.Rect)
		b.stream.WriteFloat32(r.InputMargin)
		b.stream.WriteBool(r.MainForm)
	}
}
