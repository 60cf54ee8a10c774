// Package framegrab converts captured backbuffer frames into standard Go
// images. Frames come from hal.Builder.GrabBackBufferFrame; the backend
// delivers raw BGRA rows with arbitrary pitch, and this package produces
// image.RGBA and scaled thumbnails from them.
package framegrab

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/kestrel-engine/kestrel/hal"
)

// ToImage converts a captured frame into an image.RGBA, swizzling the
// backend's BGRA byte order and dropping row padding. The frame is not
// released; the caller owns its lifetime.
func ToImage(frame hal.FrameData) (*image.RGBA, error) {
	if frame == nil {
		return nil, fmt.Errorf("framegrab: nil frame")
	}
	w := int(frame.Width())
	h := int(frame.Height())
	pitch := int(frame.Pitch())
	data := frame.Data()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("framegrab: empty frame %dx%d", w, h)
	}
	if pitch < w*4 || len(data) < pitch*h {
		return nil, fmt.Errorf("framegrab: frame data %d bytes too small for %dx%d pitch %d",
			len(data), w, h, pitch)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := data[y*pitch:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			dst[x*4+0] = src[x*4+2]
			dst[x*4+1] = src[x*4+1]
			dst[x*4+2] = src[x*4+0]
			dst[x*4+3] = src[x*4+3]
		}
	}
	return img, nil
}

// Thumbnail scales a captured frame down to fit within maxWidth x
// maxHeight, preserving aspect ratio. Frames already within the bounds are
// returned at full size.
func Thumbnail(frame hal.FrameData, maxWidth, maxHeight int) (*image.RGBA, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, fmt.Errorf("framegrab: invalid thumbnail bounds %dx%d", maxWidth, maxHeight)
	}
	full, err := ToImage(frame)
	if err != nil {
		return nil, err
	}
	return scaleToFit(full, maxWidth, maxHeight), nil
}

func scaleToFit(img *image.RGBA, maxWidth, maxHeight int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth && h <= maxHeight {
		return img
	}

	scaleX := float64(maxWidth) / float64(w)
	scaleY := float64(maxHeight) / float64(h)
	scale := min(scaleX, scaleY)
	outW := max(int(float64(w)*scale), 1)
	outH := max(int(float64(h)*scale), 1)

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}
