// Package render rasterizes terminal cells into a linear XRGB8888
// framebuffer. It consumes glyph bitmaps from an external glyph source
// and confines every write to a configurable clip rectangle.
package render

// Rect is a half-open pixel rectangle.
type Rect struct {
	X0, Y0 int
	X1, Y1 int
}

// Framebuffer wraps a linear scanout plane. Pix is the mapped plane
// viewed as one uint32 per pixel; Stride is the plane pitch in pixels,
// which may exceed Width on padded buffers.
type Framebuffer struct {
	Pix    []uint32
	Width  int
	Height int
	Stride int
	Clip   Rect
}

// NewFramebuffer wraps an existing pixel plane and sets the clip to the
// full surface.
func NewFramebuffer(pix []uint32, width, height, stride int) *Framebuffer {
	return &Framebuffer{
		Pix:    pix,
		Width:  width,
		Height: height,
		Stride: stride,
		Clip:   Rect{0, 0, width, height},
	}
}

// SetClip replaces the clip rectangle. Writes outside it are discarded.
func (f *Framebuffer) SetClip(r Rect) { f.Clip = r }

// contains reports whether (x, y) lies inside the clip rectangle.
func (f *Framebuffer) contains(x, y int) bool {
	return x >= f.Clip.X0 && x < f.Clip.X1 && y >= f.Clip.Y0 && y < f.Clip.Y1
}

// Set writes one pixel, silently dropping anything outside the clip.
func (f *Framebuffer) Set(x, y int, v uint32) {
	if !f.contains(x, y) {
		return
	}
	f.Pix[y*f.Stride+x] = v
}

// At returns the pixel at (x, y); out-of-clip reads return zero.
func (f *Framebuffer) At(x, y int) uint32 {
	if !f.contains(x, y) {
		return 0
	}
	return f.Pix[y*f.Stride+x]
}

// FillRect fills the half-open rectangle with v, intersected with the
// clip rectangle.
func (f *Framebuffer) FillRect(x, y, w, h int, v uint32) {
	x0 := max(x, f.Clip.X0)
	y0 := max(y, f.Clip.Y0)
	x1 := min(x+w, f.Clip.X1)
	y1 := min(y+h, f.Clip.Y1)
	for py := y0; py < y1; py++ {
		row := f.Pix[py*f.Stride:]
		for px := x0; px < x1; px++ {
			row[px] = v
		}
	}
}

// Fill floods the entire clip rectangle with v.
func (f *Framebuffer) Fill(v uint32) {
	f.FillRect(f.Clip.X0, f.Clip.Y0, f.Clip.X1-f.Clip.X0, f.Clip.Y1-f.Clip.Y0, v)
}
