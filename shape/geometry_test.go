package shape_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zlnvch/drawroom/shape"
)

const eraseRadius = 10

func TestErasedBy_Rect(t *testing.T) {
	r := shape.Rect{X: 100, Y: 100, Width: 50, Height: 20}

	tests := []struct {
		name string
		p    shape.Point
		want bool
	}{
		{"inside", shape.Point{X: 120, Y: 110}, true},
		{"left edge within radius", shape.Point{X: 91, Y: 110}, true},
		{"left edge just outside radius", shape.Point{X: 89, Y: 110}, false},
		{"corner within radius", shape.Point{X: 94, Y: 94}, true},
		{"corner outside radius", shape.Point{X: 92, Y: 92}, false},
		{"far away", shape.Point{X: 0, Y: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shape.ErasedBy(r, tt.p, eraseRadius))
		})
	}
}

func TestErasedBy_RectWithNegativeSize(t *testing.T) {
	r := shape.Rect{X: 150, Y: 120, Width: -50, Height: -20}
	assert.True(t, shape.ErasedBy(r, shape.Point{X: 120, Y: 110}, eraseRadius))
}

func TestErasedBy_EllipseUsesBoundingCircle(t *testing.T) {
	e := shape.Ellipse{CenterX: 0, CenterY: 0, RadiusX: 30, RadiusY: 5}

	// Outside the ellipse itself but inside max(radius)+R.
	assert.True(t, shape.ErasedBy(e, shape.Point{X: 0, Y: 39}, eraseRadius))
	assert.False(t, shape.ErasedBy(e, shape.Point{X: 0, Y: 41}, eraseRadius))
}

func TestErasedBy_StrokeNeedsEveryPointCovered(t *testing.T) {
	short := shape.Stroke{Points: []shape.Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}}}
	long := shape.Stroke{Points: []shape.Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 50, Y: 0}}}
	p := shape.Point{X: 2, Y: 2}

	assert.True(t, shape.ErasedBy(short, p, eraseRadius))
	assert.False(t, shape.ErasedBy(long, p, eraseRadius))
}

func TestErasedBy_NeverErasesMoveOrEraseStroke(t *testing.T) {
	p := shape.Point{X: 1, Y: 1}
	move := shape.Move{Inner: shape.Rect{X: 0, Y: 0, Width: 5, Height: 5}}
	eraser := shape.EraseStroke{Points: []shape.Point{{X: 1, Y: 1}}, Radius: 10}

	assert.False(t, shape.ErasedBy(move, p, eraseRadius))
	assert.False(t, shape.ErasedBy(eraser, p, eraseRadius))
}

func TestContains(t *testing.T) {
	rect := shape.Rect{X: 10, Y: 10, Width: 20, Height: 20}
	ellipse := shape.Ellipse{CenterX: 100, CenterY: 100, RadiusX: 20, RadiusY: 10}
	stroke := shape.Stroke{Points: []shape.Point{{X: 0, Y: 200}, {X: 100, Y: 200}}}

	assert.True(t, shape.Contains(rect, shape.Point{X: 15, Y: 25}, 10))
	assert.False(t, shape.Contains(rect, shape.Point{X: 35, Y: 25}, 10))

	assert.True(t, shape.Contains(ellipse, shape.Point{X: 115, Y: 100}, 10))
	assert.False(t, shape.Contains(ellipse, shape.Point{X: 100, Y: 115}, 10))

	// Midway along a segment, far from either vertex.
	assert.True(t, shape.Contains(stroke, shape.Point{X: 50, Y: 208}, 10))
	assert.False(t, shape.Contains(stroke, shape.Point{X: 50, Y: 212}, 10))
	assert.True(t, shape.Contains(stroke, shape.Point{X: 50, Y: 212}, 20))

	assert.False(t, shape.Contains(shape.Move{Inner: rect}, shape.Point{X: 15, Y: 15}, 10))
}

func TestBake(t *testing.T) {
	tests := []struct {
		name  string
		inner shape.Shape
		want  shape.Shape
	}{
		{
			"rect",
			shape.Rect{X: 1, Y: 2, Width: 3, Height: 4, Color: "red", LineWidth: 2},
			shape.Rect{X: 11, Y: -3, Width: 3, Height: 4, Color: "red", LineWidth: 2},
		},
		{
			"ellipse",
			shape.Ellipse{CenterX: 5, CenterY: 5, RadiusX: 2, RadiusY: 3},
			shape.Ellipse{CenterX: 15, CenterY: 0, RadiusX: 2, RadiusY: 3},
		},
		{
			"stroke",
			shape.Stroke{Points: []shape.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}},
			shape.Stroke{Points: []shape.Point{{X: 10, Y: -5}, {X: 11, Y: -4}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shape.Bake(shape.Move{Inner: tt.inner, OffsetX: 10, OffsetY: -5})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBake_DoesNotMutateInnerPoints(t *testing.T) {
	inner := shape.Stroke{Points: []shape.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}}
	shape.Bake(shape.Move{Inner: inner, OffsetX: 5, OffsetY: 5})
	assert.Equal(t, 0.0, inner.Points[0].X)
}
