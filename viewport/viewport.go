// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package viewport renders an editor scene through the deferred command
// stream: an ordinary color pass for display and an id-color pass for
// mouse picking, both recorded into a hal.Builder and replayed on the
// render goroutine.
package viewport

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/kestrel-engine/kestrel/hal"
)

// Technique names the scene effect must provide.
const (
	techniqueRender = "Render"
	techniquePick   = "Pick"
)

// Parameter semantics the scene effect must provide.
const (
	paramWorldViewProjection = "WorldViewProjection"
	paramPickColor           = "PickColor"
)

// Mesh is one renderable object in the viewport scene.
type Mesh struct {
	// ID identifies the mesh in pick results. Must be nonzero and fit
	// in 24 bits.
	ID uint32

	Vertices *hal.VertexBuffer
	Indices  *hal.IndexBuffer
	Format   *hal.VertexFormat

	// WorldViewProjection is the mesh's full transform for the frame.
	WorldViewProjection hal.Matrix4

	// Stride is the vertex stride in bytes.
	Stride uint32
	// VertexCount is the number of vertices referenced by the indices.
	VertexCount uint32
	// TriangleCount is the number of triangles to draw.
	TriangleCount uint32
}

// Renderer records viewport render and pick passes. Not safe for
// concurrent use; record and drain from the owning goroutine.
type Renderer struct {
	effect *hal.Effect
	target *hal.RenderTarget
	depth  *hal.DepthStencilSurface

	clearColor gputypes.Color

	meshes []*Mesh

	queue hal.CallbackQueue
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithClearColor sets the background color of the render pass.
func WithClearColor(c gputypes.Color) RendererOption {
	return func(r *Renderer) { r.clearColor = c }
}

// NewRenderer creates a viewport renderer drawing into target/depth with
// the given scene effect. The effect needs Render and Pick techniques.
func NewRenderer(effect *hal.Effect, target *hal.RenderTarget, depth *hal.DepthStencilSurface, opts ...RendererOption) *Renderer {
	r := &Renderer{
		effect:     effect,
		target:     target,
		depth:      depth,
		clearColor: gputypes.Color{R: 0.1, G: 0.1, B: 0.1, A: 1},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddMesh adds a mesh to the scene. Mesh IDs above 24 bits cannot be
// encoded in pick colors.
func (r *Renderer) AddMesh(m *Mesh) error {
	if m.ID == 0 || m.ID > 0xFFFFFF {
		return fmt.Errorf("viewport: mesh id %d out of pick range", m.ID)
	}
	r.meshes = append(r.meshes, m)
	return nil
}

// RemoveMesh removes a mesh by id.
func (r *Renderer) RemoveMesh(id uint32) {
	for i, m := range r.meshes {
		if m.ID == id {
			r.meshes = append(r.meshes[:i], r.meshes[i+1:]...)
			return
		}
	}
}

// MeshCount returns the number of meshes in the scene.
func (r *Renderer) MeshCount() int { return len(r.meshes) }

// Render records the display pass into b.
func (r *Renderer) Render(b *hal.Builder, vp hal.Viewport) {
	r.recordPass(b, vp, techniqueRender, "viewport", r.clearColor, false)
}

// Pick records an id-color pass and a pixel readback at (x, y). fn fires
// with the picked mesh id, or ok=false when the pixel hit background, once
// DrainCallbacks runs after the replay.
func (r *Renderer) Pick(b *hal.Builder, vp hal.Viewport, x, y int32, fn func(id uint32, ok bool)) {
	// Background encodes as id 0, which AddMesh reserves.
	r.recordPass(b, vp, techniquePick, "viewport-pick", gputypes.Color{A: 1}, true)
	b.ReadBackBufferPixel(x, y, pickCallback(fn), &r.queue)
}

// DrainCallbacks delivers pick results produced by replays since the last
// drain. Call on the goroutine that owns the renderer.
func (r *Renderer) DrainCallbacks() int {
	return r.queue.Drain()
}

func (r *Renderer) recordPass(b *hal.Builder, vp hal.Viewport, technique, event string, clear gputypes.Color, pickColors bool) {
	b.BeginEvent(event)
	defer b.EndEvent()

	b.SelectRenderTarget(r.target)
	b.SelectDepthStencilSurface(r.depth)
	b.ApplyDefaultRenderState()
	b.SetCurrentViewport(vp)
	b.Clear(hal.ClearColorTarget|hal.ClearDepthTarget|hal.ClearStencilTarget, clear, 1, 0)

	first := b.BeginEffect(r.effect, technique)
	if first.IsValid() {
		for pass := first; pass.IsValid(); pass = pass.Next() {
			b.BeginEffectPass(r.effect, pass)
			for _, m := range r.meshes {
				b.SetMatrix4Parameter(r.effect, paramWorldViewProjection, m.WorldViewProjection)
				if pickColors {
					b.SetVector4Parameter(r.effect, paramPickColor, encodePickID(m.ID))
				}
				b.CommitEffectPass(r.effect, pass)
				b.UseVertexFormat(m.Format)
				b.SetVertices(0, m.Vertices, 0, m.Stride)
				b.SetIndices(m.Indices)
				b.DrawIndexedPrimitive(gputypes.PrimitiveTopologyTriangleList,
					0, 0, m.VertexCount, 0, m.TriangleCount)
			}
			b.EndEffectPass(r.effect, pass)
		}
		b.EndEffect(r.effect, first)
	}
	b.PostPass()

	b.ResolveRenderTarget(r.target)
	b.SelectRenderTarget(nil)
	b.SelectDepthStencilSurface(nil)
	b.CommitRenderSurface()
}

type pickCallback func(id uint32, ok bool)

func (f pickCallback) OnReadPixel(c hal.Color8, ok bool) {
	if !ok {
		f(0, false)
		return
	}
	id := decodePickID(c)
	f(id, id != 0)
}

// encodePickID packs a 24-bit mesh id into an exact RGB color.
func encodePickID(id uint32) hal.Vector4 {
	return hal.Vector4{
		float32(id>>16&0xFF) / 255,
		float32(id>>8&0xFF) / 255,
		float32(id&0xFF) / 255,
		1,
	}
}

// decodePickID recovers the mesh id from a read-back pixel.
func decodePickID(c hal.Color8) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}
