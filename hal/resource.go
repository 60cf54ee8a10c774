// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// IndexBuffer is a GPU index buffer. Contents are populated by locking a
// region through a Builder; the lock data travels inside the command stream
// and is applied on the render thread.
type IndexBuffer struct {
	GraphicsObject

	totalSize uint32
	dynamic   bool
}

// NewIndexBuffer creates an index buffer description of totalSize bytes.
// Dynamic buffers are re-locked every frame.
func NewIndexBuffer(name string, totalSize uint32, dynamic bool) *IndexBuffer {
	return &IndexBuffer{
		GraphicsObject: NewGraphicsObject(name),
		totalSize:      totalSize,
		dynamic:        dynamic,
	}
}

// TotalSize returns the buffer capacity in bytes.
func (b *IndexBuffer) TotalSize() uint32 { return b.totalSize }

// Dynamic returns true if the buffer contents are updated per frame.
func (b *IndexBuffer) Dynamic() bool { return b.dynamic }

// VertexBuffer is a GPU vertex buffer, locked and filled through a Builder.
type VertexBuffer struct {
	GraphicsObject

	totalSize uint32
	stride    uint32
	dynamic   bool
}

// NewVertexBuffer creates a vertex buffer description of totalSize bytes
// with the given per-vertex stride.
func NewVertexBuffer(name string, totalSize, stride uint32, dynamic bool) *VertexBuffer {
	return &VertexBuffer{
		GraphicsObject: NewGraphicsObject(name),
		totalSize:      totalSize,
		stride:         stride,
		dynamic:        dynamic,
	}
}

// TotalSize returns the buffer capacity in bytes.
func (b *VertexBuffer) TotalSize() uint32 { return b.totalSize }

// Stride returns the per-vertex stride in bytes.
func (b *VertexBuffer) Stride() uint32 { return b.stride }

// Dynamic returns true if the buffer contents are updated per frame.
func (b *VertexBuffer) Dynamic() bool { return b.dynamic }

// VertexElement describes one attribute of a vertex layout.
type VertexElement struct {
	// Stream is the vertex buffer slot the attribute is sourced from.
	Stream uint32
	// Offset is the byte offset of the attribute within a vertex.
	Offset uint32
	// Format is the attribute's component layout.
	Format gputypes.VertexFormat
	// Usage names the semantic the attribute feeds (position, texcoord).
	Usage string
	// UsageIndex disambiguates repeated usages.
	UsageIndex uint32
}

// VertexFormat is an immutable description of a full vertex layout,
// selected on the render thread via Builder.UseVertexFormat.
type VertexFormat struct {
	GraphicsObject

	elements []VertexElement
}

// NewVertexFormat creates a vertex format from its elements. The element
// slice is copied.
func NewVertexFormat(name string, elements []VertexElement) *VertexFormat {
	out := make([]VertexElement, len(elements))
	copy(out, elements)
	return &VertexFormat{
		GraphicsObject: NewGraphicsObject(name),
		elements:       out,
	}
}

// Elements returns the vertex layout. The returned slice must not be
// modified.
func (f *VertexFormat) Elements() []VertexElement { return f.elements }

// Texture is a GPU texture with one or more mip levels. Contents are
// populated either by locking a level through a Builder or by a direct
// UpdateTexture with caller-retained data.
type Texture struct {
	GraphicsObject

	width  uint32
	height uint32
	format gputypes.TextureFormat
	levels uint32
}

// NewTexture creates a texture description. levels must be at least 1.
func NewTexture(name string, width, height uint32, format gputypes.TextureFormat, levels uint32) (*Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("hal: texture %q has zero dimension %dx%d", name, width, height)
	}
	if levels == 0 {
		return nil, fmt.Errorf("hal: texture %q must have at least one mip level", name)
	}
	return &Texture{
		GraphicsObject: NewGraphicsObject(name),
		width:          width,
		height:         height,
		format:         format,
		levels:         levels,
	}, nil
}

// Width returns the level 0 width in pixels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the level 0 height in pixels.
func (t *Texture) Height() uint32 { return t.height }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Levels returns the mip level count.
func (t *Texture) Levels() uint32 { return t.levels }

// MipLevelSize returns the dimensions of the given mip level, halving and
// clamping to 1 per level.
func (t *Texture) MipLevelSize(level uint32) (width, height uint32) {
	width, height = t.width, t.height
	for ; level > 0; level-- {
		if width > 1 {
			width >>= 1
		}
		if height > 1 {
			height >>= 1
		}
	}
	return width, height
}

// DataSizeForFormat returns the byte size of a tightly packed width by
// height region in the given format, or 0 if the format has no fixed
// per-texel size.
func DataSizeForFormat(width, height uint32, format gputypes.TextureFormat) uint32 {
	var bpp uint32
	switch format {
	case gputypes.TextureFormatR8Unorm:
		bpp = 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatDepth24PlusStencil8:
		bpp = 4
	default:
		return 0
	}
	return width * height * bpp
}
