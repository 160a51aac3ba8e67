package canvas

import (
	"fmt"

	"github.com/zlnvch/drawroom/shape"
)

// Surface is a drawing target. Coordinates passed to the Stroke methods are in
// canvas space; implementations apply the transform set by SetTransform.
type Surface interface {
	Clear()
	SetTransform(scale, offsetX, offsetY float64)
	StrokeRect(x, y, width, height float64, color string, lineWidth float64)
	StrokeEllipse(centerX, centerY, radiusX, radiusY float64, color string, lineWidth float64)
	StrokePolyline(points []shape.Point, color string, lineWidth float64)
	EraserIndicator(center shape.Point, radius float64)
}

// Render redraws everything: clear, apply the viewport, draw every shape in
// list order, then draw the in-progress preview on top.
func (e *Engine) Render(s Surface) {
	s.Clear()
	s.SetTransform(e.viewport.Scale, e.viewport.OffsetX, e.viewport.OffsetY)
	for _, sh := range e.shapes {
		DrawShape(s, sh)
	}

	if !e.pointerDown || e.panning {
		return
	}
	switch e.tool {
	case ToolRect:
		r, _ := e.previewRect()
		DrawShape(s, r)
	case ToolEllipse:
		el, _ := e.previewEllipse()
		DrawShape(s, el)
	case ToolStroke:
		if len(e.points) > 0 {
			s.StrokePolyline(e.points, e.color, e.lineWidth)
		}
	case ToolEraser:
		if e.erasing {
			s.EraserIndicator(e.current, EraseRadius)
		}
	}
}

// DrawShape draws one shape. EraseStroke entries leave no mark; Move entries
// draw their inner shape displaced by the offset.
func DrawShape(s Surface, sh shape.Shape) {
	switch v := sh.(type) {
	case shape.Rect:
		s.StrokeRect(v.X, v.Y, v.Width, v.Height, v.Color, v.LineWidth)
	case shape.Ellipse:
		s.StrokeEllipse(v.CenterX, v.CenterY, abs(v.RadiusX), abs(v.RadiusY), v.Color, v.LineWidth)
	case shape.Stroke:
		if len(v.Points) > 0 {
			s.StrokePolyline(v.Points, v.Color, v.LineWidth)
		}
	case shape.EraseStroke:
	case shape.Move:
		DrawShape(s, shape.Bake(v))
	}
}

// Recorder is a Surface that logs every call as a line of text.
type Recorder struct {
	Ops []string
}

func (r *Recorder) Clear() {
	r.Ops = r.Ops[:0]
	r.Ops = append(r.Ops, "clear")
}

func (r *Recorder) SetTransform(scale, offsetX, offsetY float64) {
	r.Ops = append(r.Ops, fmt.Sprintf("transform %g %g %g", scale, offsetX, offsetY))
}

func (r *Recorder) StrokeRect(x, y, width, height float64, color string, lineWidth float64) {
	r.Ops = append(r.Ops, fmt.Sprintf("rect %g %g %g %g %s %g", x, y, width, height, color, lineWidth))
}

func (r *Recorder) StrokeEllipse(centerX, centerY, radiusX, radiusY float64, color string, lineWidth float64) {
	r.Ops = append(r.Ops, fmt.Sprintf("ellipse %g %g %g %g %s %g", centerX, centerY, radiusX, radiusY, color, lineWidth))
}

func (r *Recorder) StrokePolyline(points []shape.Point, color string, lineWidth float64) {
	r.Ops = append(r.Ops, fmt.Sprintf("polyline %v %s %g", points, color, lineWidth))
}

func (r *Recorder) EraserIndicator(center shape.Point, radius float64) {
	r.Ops = append(r.Ops, fmt.Sprintf("eraser %g %g %g", center.X, center.Y, radius))
}
