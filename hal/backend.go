// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import "github.com/gogpu/gputypes"

// Backend executes decoded commands against a concrete graphics API. All
// methods are invoked on the render goroutine, in exactly the order the
// commands were recorded.
type Backend interface {
	ApplyDefaultRenderState()

	BeginEvent(name string)
	EndEvent()

	Clear(flags ClearFlags, color gputypes.Color, depth float32, stencil uint8)
	PostPass()

	SetCurrentViewport(v Viewport)
	SetScissor(enabled bool, r Rect)

	UseVertexFormat(f *VertexFormat)
	SetIndices(b *IndexBuffer)
	SetNullIndices()
	SetVertices(stream uint32, b *VertexBuffer, offset, stride uint32)
	SetNullVertices(stream uint32)

	DrawPrimitive(topology gputypes.PrimitiveTopology, offset, primitives uint32)
	DrawIndexedPrimitive(topology gputypes.PrimitiveTopology, baseVertex uint32, minVertex, vertexCount, startIndex, primitives uint32)

	LockIndexBuffer(b *IndexBuffer, data []byte) error
	LockVertexBuffer(b *VertexBuffer, data []byte) error
	LockTexture(t *Texture, level uint32, region Rect, data []byte) error
	UpdateTexture(t *Texture, level uint32, region Rect, data []byte) error

	SelectRenderTarget(t *RenderTarget)
	ResolveRenderTarget(t *RenderTarget)
	SelectDepthStencilSurface(s *DepthStencilSurface)
	ResolveDepthStencilSurface(s *DepthStencilSurface)
	CommitRenderSurface()

	BeginEffect(e *Effect, technique uint32)
	EndEffect(e *Effect)
	BeginEffectPass(e *Effect, technique uint32, pass uint8)
	CommitEffectPass(e *Effect)
	EndEffectPass(e *Effect)

	SetFloatParameter(e *Effect, handle uint32, value float32)
	SetVector4Parameter(e *Effect, handle uint32, value Vector4)
	SetMatrix4Parameter(e *Effect, handle uint32, value Matrix4)
	SetMatrix3x4ArrayParameter(e *Effect, handle uint32, values []Matrix3x4)
	SetTextureParameter(e *Effect, handle uint32, t *Texture)

	ReadBackBufferPixel(x, y int32) (Color8, bool)
	GrabBackBufferFrame(frame uint32, rect Rect) (FrameData, bool)

	UpdateOsWindowRegions(regions []OsWindowRegion)
}
