// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package viewport

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/kestrel-engine/kestrel/hal"
)

// countBackend tallies the calls the viewport passes are expected to make
// and serves a configurable readback pixel.
type countBackend struct {
	clears       int
	draws        int
	beginEffects int
	commits      int
	resolves     int
	surfaces     int

	lastVector hal.Vector4

	pixel   hal.Color8
	pixelOK bool
}

func (c *countBackend) ApplyDefaultRenderState() {}
func (c *countBackend) BeginEvent(string)        {}
func (c *countBackend) EndEvent()                {}

func (c *countBackend) Clear(hal.ClearFlags, gputypes.Color, float32, uint8) { c.clears++ }
func (c *countBackend) PostPass()                                           {}

func (c *countBackend) SetCurrentViewport(hal.Viewport) {}
func (c *countBackend) SetScissor(bool, hal.Rect)       {}

func (c *countBackend) UseVertexFormat(*hal.VertexFormat)              {}
func (c *countBackend) SetIndices(*hal.IndexBuffer)                    {}
func (c *countBackend) SetNullIndices()                                {}
func (c *countBackend) SetVertices(uint32, *hal.VertexBuffer, uint32, uint32) {
}
func (c *countBackend) SetNullVertices(uint32) {}

func (c *countBackend) DrawPrimitive(gputypes.PrimitiveTopology, uint32, uint32) { c.draws++ }
func (c *countBackend) DrawIndexedPrimitive(gputypes.PrimitiveTopology, uint32, uint32, uint32, uint32, uint32) {
	c.draws++
}

func (c *countBackend) LockIndexBuffer(*hal.IndexBuffer, []byte) error   { return nil }
func (c *countBackend) LockVertexBuffer(*hal.VertexBuffer, []byte) error { return nil }
func (c *countBackend) LockTexture(*hal.Texture, uint32, hal.Rect, []byte) error {
	return nil
}
func (c *countBackend) UpdateTexture(*hal.Texture, uint32, hal.Rect, []byte) error {
	return nil
}

func (c *countBackend) SelectRenderTarget(*hal.RenderTarget)                 {}
func (c *countBackend) ResolveRenderTarget(*hal.RenderTarget)                { c.resolves++ }
func (c *countBackend) SelectDepthStencilSurface(*hal.DepthStencilSurface)   {}
func (c *countBackend) ResolveDepthStencilSurface(*hal.DepthStencilSurface)  {}
func (c *countBackend) CommitRenderSurface()                                 { c.surfaces++ }

func (c *countBackend) BeginEffect(*hal.Effect, uint32) { c.beginEffects++ }
func (c *countBackend) EndEffect(*hal.Effect)           {}
func (c *countBackend) BeginEffectPass(*hal.Effect, uint32, uint8) {
}
func (c *countBackend) CommitEffectPass(*hal.Effect) { c.commits++ }
func (c *countBackend) EndEffectPass(*hal.Effect)    {}

func (c *countBackend) SetFloatParameter(*hal.Effect, uint32, float32) {}
func (c *countBackend) SetVector4Parameter(e *hal.Effect, handle uint32, v hal.Vector4) {
	c.lastVector = v
}
func (c *countBackend) SetMatrix4Parameter(*hal.Effect, uint32, hal.Matrix4)             {}
func (c *countBackend) SetMatrix3x4ArrayParameter(*hal.Effect, uint32, []hal.Matrix3x4)  {}
func (c *countBackend) SetTextureParameter(*hal.Effect, uint32, *hal.Texture)            {}

func (c *countBackend) ReadBackBufferPixel(x, y int32) (hal.Color8, bool) {
	return c.pixel, c.pixelOK
}
func (c *countBackend) GrabBackBufferFrame(uint32, hal.Rect) (hal.FrameData, bool) {
	return nil, false
}
func (c *countBackend) UpdateOsWindowRegions([]hal.OsWindowRegion) {}

func sceneEffect(t *testing.T, renderPasses uint8) *hal.Effect {
	t.Helper()
	e := hal.NewEffect("scene")
	e.AddTechnique(techniqueRender, 3, renderPasses)
	e.AddTechnique(techniquePick, 4, 1)
	e.AddParameter(paramWorldViewProjection, 11, hal.ParameterMatrix4)
	e.AddParameter(paramPickColor, 12, hal.ParameterVector4)
	if err := e.OnCreate(); err != nil {
		t.Fatal(err)
	}
	return e
}

func sceneMesh(id uint32) *Mesh {
	return &Mesh{
		ID:       id,
		Vertices: hal.NewVertexBuffer("verts", 64, 16, false),
		Indices:  hal.NewIndexBuffer("idx", 12, false),
		Format: hal.NewVertexFormat("pos", []hal.VertexElement{
			{Stream: 0, Offset: 0, Format: gputypes.VertexFormatFloat32x2, Usage: "position"},
		}),
		WorldViewProjection: hal.IdentityMatrix4(),
		Stride:              16,
		VertexCount:         4,
		TriangleCount:       2,
	}
}

func sceneRenderer(t *testing.T, renderPasses uint8, meshIDs ...uint32) *Renderer {
	t.Helper()
	r := NewRenderer(sceneEffect(t, renderPasses),
		hal.NewRenderTarget("scene", 1, 1, gputypes.TextureFormatRGBA8Unorm),
		hal.NewDepthStencilSurface("scene-depth", 1, 1))
	for _, id := range meshIDs {
		if err := r.AddMesh(sceneMesh(id)); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func TestRenderPassShape(t *testing.T) {
	r := sceneRenderer(t, 2, 1, 2)
	b := hal.NewBuilder()

	r.Render(b, hal.FullViewport(640, 480))

	backend := &countBackend{}
	var stats hal.RenderStats
	if err := b.Execute(backend, &stats); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if backend.beginEffects != 1 {
		t.Errorf("beginEffects = %d, want 1", backend.beginEffects)
	}
	if backend.clears != 1 {
		t.Errorf("clears = %d, want 1", backend.clears)
	}
	// 2 passes over 2 meshes.
	if backend.draws != 4 {
		t.Errorf("draws = %d, want 4", backend.draws)
	}
	if backend.commits != 4 {
		t.Errorf("commits = %d, want 4", backend.commits)
	}
	if backend.resolves != 1 || backend.surfaces != 1 {
		t.Errorf("resolves/surfaces = %d/%d, want 1/1", backend.resolves, backend.surfaces)
	}
	if stats.Draws != 4 || stats.Triangles != 8 {
		t.Errorf("stats = %d draws %d triangles, want 4/8", stats.Draws, stats.Triangles)
	}
}

func TestRenderWithoutTechniqueDrawsNothing(t *testing.T) {
	e := hal.NewEffect("empty")
	if err := e.OnCreate(); err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(e,
		hal.NewRenderTarget("scene", 1, 1, gputypes.TextureFormatRGBA8Unorm),
		hal.NewDepthStencilSurface("scene-depth", 1, 1))
	if err := r.AddMesh(sceneMesh(1)); err != nil {
		t.Fatal(err)
	}

	b := hal.NewBuilder()
	r.Render(b, hal.FullViewport(320, 240))

	backend := &countBackend{}
	if err := b.Execute(backend, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if backend.draws != 0 || backend.beginEffects != 0 {
		t.Errorf("draws/beginEffects = %d/%d, want 0/0", backend.draws, backend.beginEffects)
	}
	// The surface is still cleared and committed so the viewport does not
	// show stale content.
	if backend.clears != 1 || backend.surfaces != 1 {
		t.Errorf("clears/surfaces = %d/%d, want 1/1", backend.clears, backend.surfaces)
	}
}

func TestAddMeshRejectsUnencodableIDs(t *testing.T) {
	r := sceneRenderer(t, 1)
	if err := r.AddMesh(sceneMesh(0)); err == nil {
		t.Error("AddMesh(0) succeeded, want error")
	}
	if err := r.AddMesh(sceneMesh(0x1000000)); err == nil {
		t.Error("AddMesh(2^24) succeeded, want error")
	}
	if r.MeshCount() != 0 {
		t.Errorf("MeshCount() = %d, want 0", r.MeshCount())
	}
}

func TestRemoveMesh(t *testing.T) {
	r := sceneRenderer(t, 1, 1, 2, 3)
	r.RemoveMesh(2)
	if r.MeshCount() != 2 {
		t.Errorf("MeshCount() = %d, want 2", r.MeshCount())
	}
	r.RemoveMesh(99)
	if r.MeshCount() != 2 {
		t.Errorf("MeshCount() after missing id = %d, want 2", r.MeshCount())
	}
}

// quantize simulates the GPU writing an exact pick color to an 8-bit
// render target.
func quantize(v hal.Vector4) hal.Color8 {
	return hal.Color8{
		R: uint8(v[0]*255 + 0.5),
		G: uint8(v[1]*255 + 0.5),
		B: uint8(v[2]*255 + 0.5),
		A: uint8(v[3]*255 + 0.5),
	}
}

func TestPickColorRoundTrip(t *testing.T) {
	for _, id := range []uint32{1, 2, 255, 256, 0xCAFE, 0x00ABCD, 0xFFFFFF} {
		if got := decodePickID(quantize(encodePickID(id))); got != id {
			t.Errorf("round trip of %#x = %#x", id, got)
		}
	}
}

func TestPickDeliversMeshID(t *testing.T) {
	r := sceneRenderer(t, 1, 0xCAFE)
	b := hal.NewBuilder()

	backend := &countBackend{
		pixel:   quantize(encodePickID(0xCAFE)),
		pixelOK: true,
	}

	var gotID uint32
	var gotOK, fired bool
	r.Pick(b, hal.FullViewport(640, 480), 10, 20, func(id uint32, ok bool) {
		fired = true
		gotID, gotOK = id, ok
	})

	if err := b.Execute(backend, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if fired {
		t.Fatal("pick callback fired before DrainCallbacks")
	}
	if n := r.DrainCallbacks(); n != 1 {
		t.Fatalf("DrainCallbacks() = %d, want 1", n)
	}
	if !gotOK || gotID != 0xCAFE {
		t.Errorf("pick = (%#x, %v), want (0xcafe, true)", gotID, gotOK)
	}

	// The pick pass set an id color for the single mesh.
	if want := encodePickID(0xCAFE); backend.lastVector != want {
		t.Errorf("pick color = %v, want %v", backend.lastVector, want)
	}
}

func TestPickBackgroundReportsMiss(t *testing.T) {
	r := sceneRenderer(t, 1, 7)
	b := hal.NewBuilder()

	backend := &countBackend{
		pixel:   hal.Color8{A: 255},
		pixelOK: true,
	}

	var gotOK bool
	fired := false
	r.Pick(b, hal.FullViewport(640, 480), 0, 0, func(id uint32, ok bool) {
		fired = true
		gotOK = ok
	})

	if err := b.Execute(backend, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	r.DrainCallbacks()
	if !fired {
		t.Fatal("pick callback never fired")
	}
	if gotOK {
		t.Error("background pick reported a hit")
	}
}
