package canvas

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zlnvch/drawroom/models"
	"github.com/zlnvch/drawroom/shape"
)

type Tool string

const (
	ToolRect    Tool = "rect"
	ToolEllipse Tool = "circle"
	ToolStroke  Tool = "pencil"
	ToolEraser  Tool = "eraser"
	ToolMove    Tool = "move"
)

const (
	EraseRadius = 10.0
	// Stroke pick distance in screen pixels. Divided by the scale before use.
	hitTolerance = 10.0
	// Rect and ellipse drags at or below this size in canvas units are discarded.
	minShapeSize = 1.0

	defaultColor     = "black"
	defaultLineWidth = 2.0
)

var (
	ErrUnknownTool     = errors.New("canvas: unknown tool")
	ErrNotShapePayload = errors.New("canvas: chat message is not a shape payload")
)

// Sender is the outbound side of the connection. Values are JSON-encoded by
// the implementation.
type Sender interface {
	Send(v any) error
}

// ChatEnvelope carries shape payloads. Message is itself a JSON document.
type ChatEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	RoomId  string `json:"roomId"`
}

type addPayload struct {
	Shape shape.Shape `json:"shape"`
}

type updatePayload struct {
	Type   string     `json:"type"`
	Shapes shape.List `json:"shapes"`
}

// Engine owns one room's shape list, viewport and pointer state machine. It
// is not safe for concurrent use; callers serialize input events and inbound
// messages onto a single goroutine.
type Engine struct {
	roomId string
	sender Sender
	redraw func()

	shapes    shape.List
	viewport  Viewport
	tool      Tool
	color     string
	lineWidth float64

	pointerDown bool
	panning     bool
	lastPanX    float64
	lastPanY    float64

	start   shape.Point
	current shape.Point
	points  []shape.Point
	erasing bool
	moving  *shape.Move
}

func NewEngine(roomId string, sender Sender) *Engine {
	return &Engine{
		roomId:    roomId,
		sender:    sender,
		viewport:  NewViewport(),
		tool:      ToolStroke,
		color:     defaultColor,
		lineWidth: defaultLineWidth,
	}
}

// SetRedrawHandler registers fn to be called after every visible change.
func (e *Engine) SetRedrawHandler(fn func()) {
	e.redraw = fn
}

func (e *Engine) RoomId() string     { return e.roomId }
func (e *Engine) Tool() Tool         { return e.tool }
func (e *Engine) Viewport() Viewport { return e.viewport }

// Shapes returns a copy of the current shape list.
func (e *Engine) Shapes() shape.List {
	return e.shapes.Clone()
}

func (e *Engine) SetTool(t Tool) error {
	switch t {
	case ToolRect, ToolEllipse, ToolStroke, ToolEraser, ToolMove:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTool, t)
	}

	// Switching tools ends the current gesture
	e.pointerDown = false
	e.points = nil
	e.erasing = false
	e.tool = t
	return e.settleMove()
}

func (e *Engine) SetColor(color string) {
	e.color = color
	e.notify()
}

func (e *Engine) SetLineWidth(w float64) {
	e.lineWidth = w
	e.notify()
}

// SetPanning toggles drag-to-pan mode (held space key in the browser client).
func (e *Engine) SetPanning(on bool) {
	e.panning = on
}

func (e *Engine) PointerDown(screenX, screenY float64) error {
	// A drag whose pointer-up never arrived is settled first
	if err := e.settleMove(); err != nil {
		return err
	}

	e.pointerDown = true
	if e.panning {
		e.lastPanX, e.lastPanY = screenX, screenY
		return nil
	}

	p := e.viewport.ToCanvas(screenX, screenY)
	e.start = p
	e.current = p

	switch e.tool {
	case ToolStroke:
		e.points = []shape.Point{p}
	case ToolEraser:
		e.erasing = true
		return e.erase(p)
	case ToolMove:
		e.beginMove(p)
	}
	return nil
}

func (e *Engine) PointerMove(screenX, screenY float64) error {
	if e.pointerDown && e.panning {
		e.viewport.Pan(screenX-e.lastPanX, screenY-e.lastPanY)
		e.lastPanX, e.lastPanY = screenX, screenY
		e.notify()
		return nil
	}

	p := e.viewport.ToCanvas(screenX, screenY)
	e.current = p
	if !e.pointerDown {
		return nil
	}

	switch e.tool {
	case ToolRect, ToolEllipse:
		e.notify()
	case ToolStroke:
		e.points = append(e.points, p)
		e.notify()
	case ToolEraser:
		return e.erase(p)
	case ToolMove:
		if e.moving != nil {
			e.moving.OffsetX = p.X - e.start.X
			e.moving.OffsetY = p.Y - e.start.Y
			e.placeMove()
			e.notify()
		}
	}
	return nil
}

func (e *Engine) PointerUp(screenX, screenY float64) error {
	if !e.pointerDown {
		return nil
	}
	e.pointerDown = false
	if e.panning {
		return nil
	}

	p := e.viewport.ToCanvas(screenX, screenY)
	e.current = p
	defer e.notify()

	if e.moving != nil {
		return e.finishMove()
	}

	switch e.tool {
	case ToolRect:
		if r, ok := e.previewRect(); ok {
			return e.commit(r)
		}
	case ToolEllipse:
		if el, ok := e.previewEllipse(); ok {
			return e.commit(el)
		}
	case ToolStroke:
		points := e.points
		e.points = nil
		if len(points) >= 2 {
			return e.commit(shape.Stroke{Points: points, Color: e.color, LineWidth: e.lineWidth})
		}
	case ToolEraser:
		e.erasing = false
	}
	return nil
}

// Wheel mirrors the browser binding: with the zoom modifier the wheel zooms
// around the cursor, otherwise it scrolls the view.
func (e *Engine) Wheel(deltaX, deltaY, x, y float64, zoom bool) {
	if zoom {
		e.Zoom(deltaY, x, y)
		return
	}
	e.Pan(-deltaX, -deltaY)
}

func (e *Engine) Zoom(deltaY, x, y float64) {
	if e.viewport.Zoom(deltaY, x, y) {
		e.notify()
	}
}

func (e *Engine) Pan(dx, dy float64) {
	e.viewport.Pan(dx, dy)
	e.notify()
}

// HandleEnvelope applies one inbound frame. Frames other than chat, and chat
// frames for another room, are ignored.
func (e *Engine) HandleEnvelope(raw []byte) error {
	var env struct {
		Type    string        `json:"type"`
		Message string        `json:"message"`
		RoomId  models.RoomID `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if env.Type != "chat" {
		return nil
	}
	if id := string(env.RoomId); id != "" && id != e.roomId {
		return nil
	}
	return e.ApplyRemote(env.Message)
}

// ApplyRemote applies a chat message body: a full update replaces the list,
// a single shape is appended.
func (e *Engine) ApplyRemote(message string) error {
	var body struct {
		Type   string          `json:"type"`
		Shape  json.RawMessage `json:"shape"`
		Shapes json.RawMessage `json:"shapes"`
	}
	if err := json.Unmarshal([]byte(message), &body); err != nil {
		return fmt.Errorf("%w: %v", ErrNotShapePayload, err)
	}

	switch {
	case body.Type == "update":
		var list shape.List
		if len(body.Shapes) > 0 && string(body.Shapes) != "null" {
			if err := json.Unmarshal(body.Shapes, &list); err != nil {
				return err
			}
		}
		if list == nil {
			list = shape.List{}
		}
		e.shapes = list
	case len(body.Shape) > 0:
		s, err := shape.Decode(body.Shape)
		if err != nil {
			return err
		}
		e.shapes = append(e.shapes, s)
	default:
		return ErrNotShapePayload
	}

	e.notify()
	return nil
}

// Replay applies chat messages oldest first and returns how many were shape
// payloads.
func (e *Engine) Replay(messages []string) int {
	applied := 0
	for _, m := range messages {
		if err := e.ApplyRemote(m); err == nil {
			applied++
		}
	}
	return applied
}

func (e *Engine) commit(s shape.Shape) error {
	e.shapes = append(e.shapes, s)
	return e.send(addPayload{Shape: s})
}

func (e *Engine) broadcastAll() error {
	return e.send(updatePayload{Type: "update", Shapes: e.shapes})
}

func (e *Engine) send(payload any) error {
	if e.sender == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return e.sender.Send(ChatEnvelope{Type: "chat", Message: string(body), RoomId: e.roomId})
}

func (e *Engine) erase(p shape.Point) error {
	kept := e.shapes[:0:0]
	for _, s := range e.shapes {
		if !shape.ErasedBy(s, p, EraseRadius) {
			kept = append(kept, s)
		}
	}
	removed := len(e.shapes) - len(kept)
	e.shapes = kept
	e.notify()

	if removed == 0 {
		return nil
	}
	return e.broadcastAll()
}

func (e *Engine) beginMove(p shape.Point) {
	e.bakeStaleMoves()

	tolerance := hitTolerance / e.viewport.Scale
	for i := len(e.shapes) - 1; i >= 0; i-- {
		s := e.shapes[i]
		if s.Kind() == shape.KindMove {
			continue
		}
		if shape.Contains(s, p, tolerance) {
			e.shapes = append(e.shapes[:i:i], e.shapes[i+1:]...)
			m := shape.Move{Inner: s}
			e.moving = &m
			e.shapes = append(e.shapes, m)
			e.notify()
			return
		}
	}
}

// placeMove writes the active Move into the list, appending it again if a
// remote full update replaced the list mid-drag.
func (e *Engine) placeMove() {
	for i, s := range e.shapes {
		if s.Kind() == shape.KindMove {
			e.shapes[i] = *e.moving
			return
		}
	}
	e.shapes = append(e.shapes, *e.moving)
}

// settleMove bakes a drag still in flight and broadcasts the result.
func (e *Engine) settleMove() error {
	if e.moving == nil {
		return nil
	}
	err := e.finishMove()
	e.notify()
	return err
}

func (e *Engine) finishMove() error {
	baked := shape.Bake(*e.moving)
	e.moving = nil
	e.shapes = append(withoutMoves(e.shapes), baked)
	return e.broadcastAll()
}

// bakeStaleMoves settles any Move wrapper left in the list by a peer so that
// a new drag never adds a second one.
func (e *Engine) bakeStaleMoves() {
	for i, s := range e.shapes {
		if s.Kind() == shape.KindMove {
			e.shapes[i] = shape.Bake(s)
		}
	}
}

func withoutMoves(list shape.List) shape.List {
	out := make(shape.List, 0, len(list))
	for _, s := range list {
		if s.Kind() != shape.KindMove {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) previewRect() (shape.Rect, bool) {
	w := e.current.X - e.start.X
	h := e.current.Y - e.start.Y
	r := shape.Rect{
		X:         min(e.start.X, e.current.X),
		Y:         min(e.start.Y, e.current.Y),
		Width:     abs(w),
		Height:    abs(h),
		Color:     e.color,
		LineWidth: e.lineWidth,
	}
	return r, r.Width > minShapeSize && r.Height > minShapeSize
}

func (e *Engine) previewEllipse() (shape.Ellipse, bool) {
	w := e.current.X - e.start.X
	h := e.current.Y - e.start.Y
	el := shape.Ellipse{
		CenterX:   e.start.X + w/2,
		CenterY:   e.start.Y + h/2,
		RadiusX:   abs(w / 2),
		RadiusY:   abs(h / 2),
		Color:     e.color,
		LineWidth: e.lineWidth,
	}
	return el, abs(w) > minShapeSize || abs(h) > minShapeSize
}

func (e *Engine) notify() {
	if e.redraw != nil {
		e.redraw()
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
