package shape

import "math"

// Translate returns s displaced by (dx, dy). A Move is translated by
// translating its inner shape and keeping its offset.
func Translate(s Shape, dx, dy float64) Shape {
	switch v := s.(type) {
	case Rect:
		v.X += dx
		v.Y += dy
		return v
	case Ellipse:
		v.CenterX += dx
		v.CenterY += dy
		return v
	case Stroke:
		v.Points = translatePoints(v.Points, dx, dy)
		return v
	case EraseStroke:
		v.Points = translatePoints(v.Points, dx, dy)
		return v
	case Move:
		v.Inner = Translate(v.Inner, dx, dy)
		return v
	}
	return s
}

func translatePoints(points []Point, dx, dy float64) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{p.X + dx, p.Y + dy}
	}
	return out
}

// Bake folds a Move wrapper's offset into its inner shape. Non-Move shapes
// are returned unchanged.
func Bake(s Shape) Shape {
	m, ok := s.(Move)
	if !ok {
		return s
	}
	return Translate(m.Inner, m.OffsetX, m.OffsetY)
}

// Contains reports whether canvas point p hits s. tolerance is the stroke pick
// distance in canvas units. EraseStroke and Move are never hit.
func Contains(s Shape, p Point, tolerance float64) bool {
	switch v := s.(type) {
	case Rect:
		x0, y0, x1, y1 := rectBounds(v)
		return p.X >= x0 && p.X <= x1 && p.Y >= y0 && p.Y <= y1
	case Ellipse:
		rx, ry := math.Abs(v.RadiusX), math.Abs(v.RadiusY)
		if rx == 0 || ry == 0 {
			return false
		}
		nx := (p.X - v.CenterX) / rx
		ny := (p.Y - v.CenterY) / ry
		return nx*nx+ny*ny <= 1
	case Stroke:
		return distanceToPolyline(p, v.Points) <= tolerance
	case EraseStroke, Move:
		return false
	}
	return false
}

// ErasedBy reports whether an erase circle at p with radius r removes s.
func ErasedBy(s Shape, p Point, r float64) bool {
	switch v := s.(type) {
	case Rect:
		x0, y0, x1, y1 := rectBounds(v)
		cx := clamp(p.X, x0, x1)
		cy := clamp(p.Y, y0, y1)
		dx, dy := p.X-cx, p.Y-cy
		return dx*dx+dy*dy <= r*r
	case Ellipse:
		reach := math.Max(math.Abs(v.RadiusX), math.Abs(v.RadiusY)) + r
		return math.Hypot(p.X-v.CenterX, p.Y-v.CenterY) <= reach
	case Stroke:
		if len(v.Points) == 0 {
			return false
		}
		for _, pt := range v.Points {
			if math.Hypot(p.X-pt.X, p.Y-pt.Y) > r {
				return false
			}
		}
		return true
	case EraseStroke, Move:
		return false
	}
	return false
}

// rectBounds normalizes rects received with negative width or height.
func rectBounds(r Rect) (x0, y0, x1, y1 float64) {
	x0, x1 = r.X, r.X+r.Width
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	y0, y1 = r.Y, r.Y+r.Height
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func distanceToPolyline(p Point, points []Point) float64 {
	switch len(points) {
	case 0:
		return math.Inf(1)
	case 1:
		return math.Hypot(p.X-points[0].X, p.Y-points[0].Y)
	}
	best := math.Inf(1)
	for i := 1; i < len(points); i++ {
		if d := distanceToSegment(p, points[i-1], points[i]); d < best {
			best = d
		}
	}
	return best
}

func distanceToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = clamp(t, 0, 1)
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
