package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zlnvch/drawroom/models"
)

func TestRoomID_AcceptsStringOrNumber(t *testing.T) {
	var v struct {
		RoomId models.RoomID `json:"roomId"`
	}

	assert.NoError(t, json.Unmarshal([]byte(`{"roomId":"abc"}`), &v))
	assert.Equal(t, models.RoomID("abc"), v.RoomId)

	assert.NoError(t, json.Unmarshal([]byte(`{"roomId":42}`), &v))
	assert.Equal(t, models.RoomID("42"), v.RoomId)

	assert.Error(t, json.Unmarshal([]byte(`{"roomId":[1]}`), &v))
}
