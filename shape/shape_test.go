package shape_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/drawroom/shape"
)

func TestList_RoundTripPreservesOrder(t *testing.T) {
	list := shape.List{
		shape.Rect{X: 1, Y: 2, Width: 30, Height: 40, Color: "black", LineWidth: 2},
		shape.Stroke{Points: []shape.Point{{X: 0, Y: 0}, {X: 5, Y: 5}}, Color: "#ff0000", LineWidth: 3},
		shape.Ellipse{CenterX: 10, CenterY: 10, RadiusX: 4, RadiusY: 6, Color: "blue", LineWidth: 1},
		shape.Move{Inner: shape.Rect{X: 5, Y: 5, Width: 10, Height: 10}, OffsetX: 3, OffsetY: -2},
		shape.EraseStroke{Points: []shape.Point{{X: 1, Y: 1}}, Radius: 10},
	}

	data, err := json.Marshal(list)
	require.NoError(t, err)

	var decoded shape.List
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, list, decoded)
}

func TestDecode_BrowserWireFormat(t *testing.T) {
	raw := `{"type":"circle","centerX":50,"centerY":60,"radiusX":10,"radiusY":20,"color":"black","lineWidth":2}`

	s, err := shape.Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, shape.Ellipse{CenterX: 50, CenterY: 60, RadiusX: 10, RadiusY: 20, Color: "black", LineWidth: 2}, s)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := shape.Decode([]byte(`{"type":"triangle"}`))
	assert.ErrorIs(t, err, shape.ErrUnknownShape)
}

func TestDecode_RejectsNestedMove(t *testing.T) {
	raw := `{"type":"move","offsetX":1,"offsetY":1,"shape":{"type":"move","offsetX":0,"offsetY":0,"shape":{"type":"rect","x":0,"y":0,"width":1,"height":1}}}`
	_, err := shape.Decode([]byte(raw))
	assert.ErrorIs(t, err, shape.ErrNestedMove)
}

func TestMove_MarshalRejectsNested(t *testing.T) {
	m := shape.Move{Inner: shape.Move{Inner: shape.Rect{}}}
	_, err := json.Marshal(m)
	assert.Error(t, err)
}

func TestDecode_StrokeWithoutPoints(t *testing.T) {
	_, err := shape.Decode([]byte(`{"type":"pencil","points":[],"color":"black","lineWidth":2}`))
	assert.Error(t, err)
}

func TestList_UnmarshalFailsOnBadEntry(t *testing.T) {
	var l shape.List
	err := json.Unmarshal([]byte(`[{"type":"rect","x":0,"y":0,"width":1,"height":1},{"type":"blob"}]`), &l)
	assert.ErrorIs(t, err, shape.ErrUnknownShape)
}

func TestList_CloneDoesNotSharePoints(t *testing.T) {
	list := shape.List{shape.Stroke{Points: []shape.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}}}
	cloned := list.Clone()

	cloned[0].(shape.Stroke).Points[0].X = 99
	assert.Equal(t, 1.0, list[0].(shape.Stroke).Points[0].X)
}
