package canvas

import "github.com/zlnvch/drawroom/shape"

const (
	MinScale = 0.1
	MaxScale = 5.0

	zoomOutFactor = 0.9
	zoomInFactor  = 1.1
)

// Viewport maps canvas space to screen space: screen = canvas*Scale + Offset.
// It is local to one client and never transmitted.
type Viewport struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

func NewViewport() Viewport {
	return Viewport{Scale: 1}
}

func (v Viewport) ToCanvas(screenX, screenY float64) shape.Point {
	return shape.Point{
		X: (screenX - v.OffsetX) / v.Scale,
		Y: (screenY - v.OffsetY) / v.Scale,
	}
}

func (v Viewport) ToScreen(p shape.Point) (float64, float64) {
	return p.X*v.Scale + v.OffsetX, p.Y*v.Scale + v.OffsetY
}

// Zoom rescales around the screen point (x, y) so that the canvas point under
// it stays put. A positive deltaY zooms out. It reports whether the scale
// changed.
func (v *Viewport) Zoom(deltaY, x, y float64) bool {
	if deltaY == 0 {
		return false
	}
	factor := zoomInFactor
	if deltaY > 0 {
		factor = zoomOutFactor
	}
	newScale := min(max(v.Scale*factor, MinScale), MaxScale)
	if newScale == v.Scale {
		return false
	}

	anchor := v.ToCanvas(x, y)
	v.Scale = newScale
	v.OffsetX = x - anchor.X*newScale
	v.OffsetY = y - anchor.Y*newScale
	return true
}

// Pan shifts the offset by raw screen deltas.
func (v *Viewport) Pan(dx, dy float64) {
	v.OffsetX += dx
	v.OffsetY += dy
}
