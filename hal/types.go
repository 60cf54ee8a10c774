// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

// Viewport describes a render target region. TargetWidth and TargetHeight
// are the full dimensions of the target; X, Y, Width and Height the active
// sub-region.
type Viewport struct {
	TargetWidth  int32
	TargetHeight int32
	X            int32
	Y            int32
	Width        int32
	Height       int32
}

// FullViewport returns a viewport covering an entire w x h target.
func FullViewport(w, h int32) Viewport {
	return Viewport{TargetWidth: w, TargetHeight: h, Width: w, Height: h}
}

// Rect is an integer pixel rectangle, right/bottom exclusive.
type Rect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// Width returns the rectangle width in pixels.
func (r Rect) Width() int32 { return r.Right - r.Left }

// Height returns the rectangle height in pixels.
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// IsEmpty returns true if the rectangle has no area.
func (r Rect) IsEmpty() bool { return r.Right <= r.Left || r.Bottom <= r.Top }

// Matrix4 is a 4x4 float32 matrix in row-major order.
type Matrix4 [16]float32

// IdentityMatrix4 returns the identity matrix.
func IdentityMatrix4() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Matrix3x4 is a 3x4 float32 matrix, used for skinning palettes.
type Matrix3x4 [12]float32

// Vector4 is a 4-component float32 vector.
type Vector4 [4]float32

// Color8 is an 8-bit-per-channel RGBA color, the format of back buffer
// pixel readbacks.
type Color8 struct {
	R, G, B, A uint8
}

// ClearFlags selects which buffers a Clear operation affects.
type ClearFlags uint32

const (
	ClearColorTarget ClearFlags = 1 << iota
	ClearDepthTarget
	ClearStencilTarget
)

// OsWindowRegion describes a subset of the OS window that renders and
// receives input. Areas outside all regions are not drawn and click
// through.
type OsWindowRegion struct {
	// Rect is the region in which the window renders and receives input.
	Rect Rect

	// InputMargin extends input capture beyond Rect without rendering.
	InputMargin float32

	// MainForm identifies the effective main form among all regions. Used
	// for thumbnail and snapshot generation.
	MainForm bool
}
