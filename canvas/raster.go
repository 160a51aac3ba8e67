package canvas

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/zlnvch/drawroom/shape"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

const ellipseSegments = 64

// RasterSurface renders into an RGBA image. Lines are filled as one quad per
// segment plus round joints.
type RasterSurface struct {
	img     *image.RGBA
	z       *vector.Rasterizer
	scale   float64
	offsetX float64
	offsetY float64
}

func NewRasterSurface(width, height int) *RasterSurface {
	return &RasterSurface{
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		z:     vector.NewRasterizer(width, height),
		scale: 1,
	}
}

func (r *RasterSurface) Image() *image.RGBA { return r.img }

func (r *RasterSurface) Clear() {
	draw.Draw(r.img, r.img.Bounds(), image.White, image.Point{}, draw.Src)
}

func (r *RasterSurface) SetTransform(scale, offsetX, offsetY float64) {
	r.scale, r.offsetX, r.offsetY = scale, offsetX, offsetY
}

func (r *RasterSurface) toScreen(p shape.Point) shape.Point {
	return shape.Point{X: p.X*r.scale + r.offsetX, Y: p.Y*r.scale + r.offsetY}
}

func (r *RasterSurface) StrokeRect(x, y, width, height float64, c string, lineWidth float64) {
	r.strokePath([]shape.Point{
		{X: x, Y: y}, {X: x + width, Y: y}, {X: x + width, Y: y + height}, {X: x, Y: y + height}, {X: x, Y: y},
	}, parseColor(c), lineWidth)
}

func (r *RasterSurface) StrokeEllipse(centerX, centerY, radiusX, radiusY float64, c string, lineWidth float64) {
	r.strokePath(ellipsePoints(centerX, centerY, radiusX, radiusY), parseColor(c), lineWidth)
}

func (r *RasterSurface) StrokePolyline(points []shape.Point, c string, lineWidth float64) {
	r.strokePath(points, parseColor(c), lineWidth)
}

func (r *RasterSurface) EraserIndicator(center shape.Point, radius float64) {
	r.strokePath(ellipsePoints(center.X, center.Y, radius, radius), eraserColor, 1/r.scale)
}

// WriteTo encodes the image as PNG.
func (r *RasterSurface) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := png.Encode(cw, r.img)
	return cw.n, err
}

func ellipsePoints(cx, cy, rx, ry float64) []shape.Point {
	points := make([]shape.Point, 0, ellipseSegments+1)
	for i := 0; i <= ellipseSegments; i++ {
		a := 2 * math.Pi * float64(i) / ellipseSegments
		points = append(points, shape.Point{X: cx + rx*math.Cos(a), Y: cy + ry*math.Sin(a)})
	}
	return points
}

func (r *RasterSurface) strokePath(points []shape.Point, c color.RGBA, lineWidth float64) {
	if len(points) == 0 {
		return
	}
	half := math.Max(lineWidth*r.scale/2, 0.5)
	src := image.NewUniform(c)

	prev := r.toScreen(points[0])
	r.fillDot(prev, half, src)
	for _, p := range points[1:] {
		cur := r.toScreen(p)
		r.fillSegment(prev, cur, half, src)
		r.fillDot(cur, half, src)
		prev = cur
	}
}

func (r *RasterSurface) fillSegment(a, b shape.Point, half float64, src image.Image) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*half, dx/length*half

	r.reset()
	r.z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	r.z.LineTo(float32(b.X+nx), float32(b.Y+ny))
	r.z.LineTo(float32(b.X-nx), float32(b.Y-ny))
	r.z.LineTo(float32(a.X-nx), float32(a.Y-ny))
	r.z.ClosePath()
	r.z.Draw(r.img, r.img.Bounds(), src, image.Point{})
}

func (r *RasterSurface) fillDot(p shape.Point, half float64, src image.Image) {
	if half < 1 {
		return
	}
	const steps = 16
	r.reset()
	r.z.MoveTo(float32(p.X+half), float32(p.Y))
	for i := 1; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / steps
		r.z.LineTo(float32(p.X+half*math.Cos(a)), float32(p.Y+half*math.Sin(a)))
	}
	r.z.ClosePath()
	r.z.Draw(r.img, r.img.Bounds(), src, image.Point{})
}

func (r *RasterSurface) reset() {
	b := r.img.Bounds()
	r.z.Reset(b.Dx(), b.Dy())
	r.z.DrawOp = draw.Over
}
