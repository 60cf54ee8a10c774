package framegrab

import (
	"image/color"
	"testing"
)

// memFrame is an in-memory hal.FrameData for tests.
type memFrame struct {
	data   []byte
	width  uint32
	height uint32
	pitch  uint32
}

func (f *memFrame) Data() []byte   { return f.data }
func (f *memFrame) Width() uint32  { return f.width }
func (f *memFrame) Height() uint32 { return f.height }
func (f *memFrame) Pitch() uint32  { return f.pitch }
func (f *memFrame) Release()       {}

// solidFrame builds a w x h BGRA frame of one color with extra row padding.
func solidFrame(w, h int, b, g, r, a byte) *memFrame {
	pitch := w*4 + 8
	data := make([]byte, pitch*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*pitch + x*4
			data[o+0] = b
			data[o+1] = g
			data[o+2] = r
			data[o+3] = a
		}
	}
	return &memFrame{data: data, width: uint32(w), height: uint32(h), pitch: uint32(pitch)}
}

func TestToImageSwizzlesBGRA(t *testing.T) {
	frame := solidFrame(4, 3, 10, 20, 30, 255)

	img, err := ToImage(frame)
	if err != nil {
		t.Fatalf("ToImage() error: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("bounds = %v, want 4x3", img.Bounds())
	}

	want := color.RGBA{R: 30, G: 20, B: 10, A: 255}
	if got := img.RGBAAt(2, 1); got != want {
		t.Errorf("RGBAAt(2,1) = %v, want %v", got, want)
	}
}

func TestToImageRejectsShortData(t *testing.T) {
	frame := &memFrame{data: make([]byte, 10), width: 4, height: 4, pitch: 16}
	if _, err := ToImage(frame); err == nil {
		t.Error("short data should fail")
	}
	if _, err := ToImage(nil); err == nil {
		t.Error("nil frame should fail")
	}
}

func TestThumbnailPreservesAspect(t *testing.T) {
	frame := solidFrame(64, 32, 0, 0, 255, 255)

	thumb, err := Thumbnail(frame, 16, 16)
	if err != nil {
		t.Fatalf("Thumbnail() error: %v", err)
	}
	if thumb.Bounds().Dx() != 16 || thumb.Bounds().Dy() != 8 {
		t.Errorf("thumbnail = %dx%d, want 16x8", thumb.Bounds().Dx(), thumb.Bounds().Dy())
	}

	got := thumb.RGBAAt(8, 4)
	if got.R != 255 || got.A != 255 {
		t.Errorf("thumbnail center = %v, want solid red", got)
	}
}

func TestThumbnailNoUpscale(t *testing.T) {
	frame := solidFrame(8, 8, 0, 0, 0, 255)
	thumb, err := Thumbnail(frame, 32, 32)
	if err != nil {
		t.Fatalf("Thumbnail() error: %v", err)
	}
	if thumb.Bounds().Dx() != 8 || thumb.Bounds().Dy() != 8 {
		t.Errorf("thumbnail = %v, want original 8x8", thumb.Bounds())
	}
}
