// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"github.com/gogpu/gputypes"
)

// RenderTarget is an offscreen color target whose dimensions are a fixed
// proportion of the backbuffer. The device recomputes the pixel size on
// every reset, so a window resize (lost/reset cycle) resizes all
// proportional targets automatically.
type RenderTarget struct {
	GraphicsObject

	widthScale  float32
	heightScale float32
	format      gputypes.TextureFormat

	width  uint32
	height uint32
}

// NewRenderTarget creates a render target sized at the given fractions of
// the backbuffer. Scales of 1 track the backbuffer exactly.
func NewRenderTarget(name string, widthScale, heightScale float32, format gputypes.TextureFormat) *RenderTarget {
	return &RenderTarget{
		GraphicsObject: NewGraphicsObject(name),
		widthScale:     widthScale,
		heightScale:    heightScale,
		format:         format,
	}
}

// Format returns the color format of the target.
func (t *RenderTarget) Format() gputypes.TextureFormat { return t.format }

// Width returns the pixel width as of the last device reset.
func (t *RenderTarget) Width() uint32 { return t.width }

// Height returns the pixel height as of the last device reset.
func (t *RenderTarget) Height() uint32 { return t.height }

// Recompute resizes the target against the current backbuffer dimensions.
// Invoked by the device at reset time, before OnReset is broadcast.
func (t *RenderTarget) Recompute(backbufferWidth, backbufferHeight uint32) {
	t.width = scaleDimension(backbufferWidth, t.widthScale)
	t.height = scaleDimension(backbufferHeight, t.heightScale)
}

// DepthStencilSurface is a depth/stencil attachment proportional to the
// backbuffer, resized on device reset like RenderTarget.
type DepthStencilSurface struct {
	GraphicsObject

	widthScale  float32
	heightScale float32

	width  uint32
	height uint32
}

// NewDepthStencilSurface creates a depth/stencil surface sized at the given
// fractions of the backbuffer.
func NewDepthStencilSurface(name string, widthScale, heightScale float32) *DepthStencilSurface {
	return &DepthStencilSurface{
		GraphicsObject: NewGraphicsObject(name),
		widthScale:     widthScale,
		heightScale:    heightScale,
	}
}

// Format returns the depth/stencil format of the surface.
func (s *DepthStencilSurface) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatDepth24PlusStencil8
}

// Width returns the pixel width as of the last device reset.
func (s *DepthStencilSurface) Width() uint32 { return s.width }

// Height returns the pixel height as of the last device reset.
func (s *DepthStencilSurface) Height() uint32 { return s.height }

// Recompute resizes the surface against the current backbuffer dimensions.
func (s *DepthStencilSurface) Recompute(backbufferWidth, backbufferHeight uint32) {
	s.width = scaleDimension(backbufferWidth, s.widthScale)
	s.height = scaleDimension(backbufferHeight, s.heightScale)
}

func scaleDimension(v uint32, scale float32) uint32 {
	scaled := uint32(float32(v) * scale)
	if scaled == 0 {
		scaled = 1
	}
	return scaled
}
