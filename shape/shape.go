package shape

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the wire tag carried in every serialized shape.
type Kind string

// Wire tags match the ones browser clients already put on the wire.
const (
	KindRect        Kind = "rect"
	KindEllipse     Kind = "circle"
	KindStroke      Kind = "pencil"
	KindEraseStroke Kind = "eraser"
	KindMove        Kind = "move"
)

var (
	ErrUnknownShape = errors.New("shape: unknown type")
	ErrNestedMove   = errors.New("shape: move cannot wrap another move")
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is a closed sum type. The only implementations are the five structs
// in this file.
type Shape interface {
	Kind() Kind
	isShape()
}

type Rect struct {
	X         float64
	Y         float64
	Width     float64
	Height    float64
	Color     string
	LineWidth float64
}

type Ellipse struct {
	CenterX   float64
	CenterY   float64
	RadiusX   float64
	RadiusY   float64
	Color     string
	LineWidth float64
}

type Stroke struct {
	Points    []Point
	Color     string
	LineWidth float64
}

type EraseStroke struct {
	Points []Point
	Radius float64
}

// Move is the transient wrapper for a shape being dragged. Inner is never a
// Move.
type Move struct {
	Inner   Shape
	OffsetX float64
	OffsetY float64
}

func (Rect) Kind() Kind        { return KindRect }
func (Ellipse) Kind() Kind     { return KindEllipse }
func (Stroke) Kind() Kind      { return KindStroke }
func (EraseStroke) Kind() Kind { return KindEraseStroke }
func (Move) Kind() Kind        { return KindMove }

func (Rect) isShape()        {}
func (Ellipse) isShape()     {}
func (Stroke) isShape()      {}
func (EraseStroke) isShape() {}
func (Move) isShape()        {}

// Wire representations. Field names follow the browser client.
type rectJSON struct {
	Type      Kind    `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

type ellipseJSON struct {
	Type      Kind    `json:"type"`
	CenterX   float64 `json:"centerX"`
	CenterY   float64 `json:"centerY"`
	RadiusX   float64 `json:"radiusX"`
	RadiusY   float64 `json:"radiusY"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

type strokeJSON struct {
	Type      Kind    `json:"type"`
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

type eraseStrokeJSON struct {
	Type   Kind    `json:"type"`
	Points []Point `json:"points"`
	Radius float64 `json:"radius"`
}

type moveJSON struct {
	Type    Kind            `json:"type"`
	Shape   json.RawMessage `json:"shape"`
	OffsetX float64         `json:"offsetX"`
	OffsetY float64         `json:"offsetY"`
}

func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal(rectJSON{KindRect, r.X, r.Y, r.Width, r.Height, r.Color, r.LineWidth})
}

func (e Ellipse) MarshalJSON() ([]byte, error) {
	return json.Marshal(ellipseJSON{KindEllipse, e.CenterX, e.CenterY, e.RadiusX, e.RadiusY, e.Color, e.LineWidth})
}

func (s Stroke) MarshalJSON() ([]byte, error) {
	points := s.Points
	if points == nil {
		points = []Point{}
	}
	return json.Marshal(strokeJSON{KindStroke, points, s.Color, s.LineWidth})
}

func (e EraseStroke) MarshalJSON() ([]byte, error) {
	points := e.Points
	if points == nil {
		points = []Point{}
	}
	return json.Marshal(eraseStrokeJSON{KindEraseStroke, points, e.Radius})
}

func (m Move) MarshalJSON() ([]byte, error) {
	if m.Inner == nil {
		return nil, errors.New("shape: move without inner shape")
	}
	if _, ok := m.Inner.(Move); ok {
		return nil, ErrNestedMove
	}
	inner, err := json.Marshal(m.Inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(moveJSON{KindMove, inner, m.OffsetX, m.OffsetY})
}

// Decode parses one serialized shape, dispatching on its "type" tag.
func Decode(data []byte) (Shape, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case KindRect:
		var r rectJSON
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return Rect{r.X, r.Y, r.Width, r.Height, r.Color, r.LineWidth}, nil

	case KindEllipse:
		var e ellipseJSON
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return Ellipse{e.CenterX, e.CenterY, e.RadiusX, e.RadiusY, e.Color, e.LineWidth}, nil

	case KindStroke:
		var s strokeJSON
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		if len(s.Points) == 0 {
			return nil, errors.New("shape: stroke without points")
		}
		return Stroke{s.Points, s.Color, s.LineWidth}, nil

	case KindEraseStroke:
		var e eraseStrokeJSON
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return EraseStroke{e.Points, e.Radius}, nil

	case KindMove:
		var m moveJSON
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		inner, err := Decode(m.Shape)
		if err != nil {
			return nil, fmt.Errorf("move inner shape: %w", err)
		}
		if _, ok := inner.(Move); ok {
			return nil, ErrNestedMove
		}
		return Move{inner, m.OffsetX, m.OffsetY}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, probe.Type)
	}
}

// List is an ordered shape list. Index order is z-order: later entries draw on top.
type List []Shape

func (l List) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(l))
	for _, s := range l {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		raws = append(raws, b)
	}
	return json.Marshal(raws)
}

func (l *List) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(List, 0, len(raws))
	for i, raw := range raws {
		s, err := Decode(raw)
		if err != nil {
			return fmt.Errorf("shape %d: %w", i, err)
		}
		out = append(out, s)
	}
	*l = out
	return nil
}

// Clone returns a copy of the list that shares no point slices with l.
func (l List) Clone() List {
	out := make(List, len(l))
	for i, s := range l {
		out[i] = clone(s)
	}
	return out
}

func clone(s Shape) Shape {
	switch v := s.(type) {
	case Stroke:
		v.Points = append([]Point(nil), v.Points...)
		return v
	case EraseStroke:
		v.Points = append([]Point(nil), v.Points...)
		return v
	case Move:
		v.Inner = clone(v.Inner)
		return v
	default:
		return s
	}
}
