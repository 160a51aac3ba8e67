package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	cachemocks "github.com/zlnvch/drawroom/cache/mocks"
)

func startHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
}

func newTestClient(hub *Hub, userId string) *Client {
	return NewClient(hub, nil, userId, nil)
}

func openClient(hub *Hub, userId string) *Client {
	c := newTestClient(hub, userId)
	hub.Open(c)
	return c
}

func snapshot(t *testing.T, hub *Hub) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, ok := hub.Snapshot(ctx)
	require.True(t, ok)
	return snap
}

// drain returns everything buffered for c without blocking.
func drain(c *Client) []string {
	var out []string
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func isClosed(c *Client) bool {
	for {
		select {
		case _, ok := <-c.Send:
			if !ok {
				return true
			}
		default:
			return false
		}
	}
}

func TestHub_RoomMembershipMatchesJoinedRooms(t *testing.T) {
	hub := NewHub(nil, nil)
	startHub(t, hub)

	rng := rand.New(rand.NewPCG(7, 11))
	roomIds := []string{"r1", "r2", "r3"}

	var open []*Client
	model := map[*Client][]string{}

	for step := 0; step < 400; step++ {
		switch n := rng.IntN(10); {
		case n < 2 || len(open) == 0:
			c := openClient(hub, fmt.Sprintf("user%d", rng.IntN(3)))
			open = append(open, c)
			model[c] = nil
		case n < 6:
			c := open[rng.IntN(len(open))]
			roomId := roomIds[rng.IntN(len(roomIds))]
			hub.Join(c, roomId)
			if !slices.Contains(model[c], roomId) {
				model[c] = append(model[c], roomId)
			}
		case n < 9:
			c := open[rng.IntN(len(open))]
			roomId := roomIds[rng.IntN(len(roomIds))]
			hub.Leave(c, roomId)
			model[c] = slices.DeleteFunc(model[c], func(id string) bool { return id == roomId })
		default:
			i := rng.IntN(len(open))
			c := open[i]
			hub.Close(c)
			open = slices.Delete(open, i, i+1)
			delete(model, c)
		}

		snap := snapshot(t, hub)

		expectedRooms := map[string][]string{}
		expectedUsers := map[string][]string{}
		for c, rooms := range model {
			if len(rooms) == 0 {
				rooms = nil
			}
			assert.Equal(t, rooms, snap.Clients[c.Id], "step %d", step)
			for _, roomId := range rooms {
				expectedRooms[roomId] = append(expectedRooms[roomId], c.Id)
				if !slices.Contains(expectedUsers[roomId], c.UserId) {
					expectedUsers[roomId] = append(expectedUsers[roomId], c.UserId)
				}
			}
		}
		for roomId := range expectedRooms {
			sort.Strings(expectedRooms[roomId])
			sort.Strings(expectedUsers[roomId])
		}
		require.Len(t, snap.Clients, len(model), "step %d", step)
		require.Equal(t, expectedRooms, snap.Rooms, "step %d", step)
		require.Equal(t, expectedUsers, snap.RoomUsers, "step %d", step)
	}
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	hub := NewHub(nil, nil)
	startHub(t, hub)

	a := openClient(hub, "alice")
	hub.Join(a, "r1")
	hub.Join(a, "r1")

	snap := snapshot(t, hub)
	assert.Equal(t, []string{"r1"}, snap.Clients[a.Id])
	assert.Equal(t, []string{a.Id}, snap.Rooms["r1"])
}

func TestHub_DisconnectRemovesUserRecord(t *testing.T) {
	hub := NewHub(nil, nil)
	startHub(t, hub)

	a := openClient(hub, "alice")
	b := openClient(hub, "bob")
	hub.Join(a, "r1")
	hub.Join(b, "r1")
	hub.Close(a)

	snap := snapshot(t, hub)
	assert.Equal(t, map[string][]string{"r1": {b.Id}}, snap.Rooms)
	assert.Equal(t, map[string][]string{"r1": {"bob"}}, snap.RoomUsers)
	assert.NotContains(t, snap.Clients, a.Id)
	assert.True(t, isClosed(a))

	// A second close for the same connection changes nothing
	hub.Close(a)
	assert.Equal(t, snap, snapshot(t, hub))
}

func TestHub_LastMemberLeavingDeletesRoom(t *testing.T) {
	hub := NewHub(nil, nil)
	startHub(t, hub)

	a := openClient(hub, "alice")
	hub.Join(a, "r1")
	hub.Join(a, "r2")
	hub.Leave(a, "r1")

	snap := snapshot(t, hub)
	assert.NotContains(t, snap.Rooms, "r1")
	assert.Equal(t, []string{"r2"}, snap.Clients[a.Id])

	// Leaving a room never joined is a no-op
	hub.Leave(a, "r9")
	assert.Equal(t, snap, snapshot(t, hub))
}

func TestHub_OperationsAfterCloseAreIgnored(t *testing.T) {
	hub := NewHub(nil, nil)
	startHub(t, hub)

	a := openClient(hub, "alice")
	hub.Close(a)
	hub.Join(a, "r1")

	snap := snapshot(t, hub)
	assert.Empty(t, snap.Rooms)
	assert.Empty(t, snap.Clients)
}

func TestHub_DeliverOthersSkipsOrigin(t *testing.T) {
	hub := NewHub(nil, nil)
	startHub(t, hub)

	clients := make([]*Client, 4)
	for i := range clients {
		clients[i] = openClient(hub, fmt.Sprintf("user%d", i))
		hub.Join(clients[i], "r1")
	}
	outsider := openClient(hub, "outsider")

	hub.Deliver(context.Background(), Delivery{RoomId: "r1", Origin: clients[0].Id, Mode: DeliverOthers, Payload: json.RawMessage(`{"type":"offer"}`)})
	snapshot(t, hub)

	assert.Empty(t, drain(clients[0]))
	for _, c := range clients[1:] {
		assert.Equal(t, []string{`{"type":"offer"}`}, drain(c))
	}
	assert.Empty(t, drain(outsider))
}

func TestHub_DeliverAllAndTagged(t *testing.T) {
	hub := NewHub(nil, nil)
	startHub(t, hub)

	a := openClient(hub, "alice")
	b := openClient(hub, "bob")
	hub.Join(a, "r1")
	hub.Join(b, "r1")

	hub.Deliver(context.Background(), Delivery{RoomId: "r1", Origin: a.Id, Mode: DeliverAll, Payload: json.RawMessage(`"all"`)})
	hub.Deliver(context.Background(), Delivery{RoomId: "r1", Origin: a.Id, Mode: DeliverTagged, Payload: json.RawMessage(`"theirs"`), OriginPayload: json.RawMessage(`"mine"`)})
	snapshot(t, hub)

	assert.Equal(t, []string{`"all"`, `"mine"`}, drain(a))
	assert.Equal(t, []string{`"all"`, `"theirs"`}, drain(b))
}

func TestHub_DeliverToUnknownRoomIsNoop(t *testing.T) {
	hub := NewHub(nil, nil)
	startHub(t, hub)

	a := openClient(hub, "alice")
	hub.Deliver(context.Background(), Delivery{RoomId: "nowhere", Mode: DeliverAll, Payload: json.RawMessage(`1`)})

	snap := snapshot(t, hub)
	assert.Empty(t, snap.Rooms)
	assert.Empty(t, drain(a))
}

func TestHub_EvictsSlowConsumer(t *testing.T) {
	hub := NewHub(nil, nil)
	startHub(t, hub)

	slow := openClient(hub, "slow")
	fast := openClient(hub, "fast")
	hub.Join(slow, "r1")
	hub.Join(fast, "r1")
	snapshot(t, hub)

	for i := 0; i < sendBufferSize; i++ {
		slow.Send <- []byte("filler")
	}

	hub.Deliver(context.Background(), Delivery{RoomId: "r1", Mode: DeliverAll, Payload: json.RawMessage(`"x"`)})
	snap := snapshot(t, hub)

	assert.Equal(t, []string{`"x"`}, drain(fast))
	assert.NotContains(t, snap.Clients, slow.Id)
	assert.Equal(t, []string{fast.Id}, snap.Rooms["r1"])
	assert.Len(t, drain(slow), sendBufferSize)
	assert.True(t, isClosed(slow))
}

func TestHub_RelaysThroughCacheWhenConfigured(t *testing.T) {
	mockCache := new(cachemocks.MockCache)
	hub := NewHub(mockCache, nil)
	startHub(t, hub)

	var subCtx context.Context
	var handler func([]byte)
	mockCache.On("Subscribe", mock.Anything, "relay:r1", mock.Anything).
		Run(func(args mock.Arguments) {
			subCtx = args.Get(0).(context.Context)
			handler = args.Get(2).(func([]byte))
		}).
		Return(nil).Once()

	var published []byte
	mockCache.On("Publish", mock.Anything, "relay:r1", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil)

	a := openClient(hub, "alice")
	b := openClient(hub, "bob")
	hub.Join(a, "r1")
	hub.Join(b, "r1")
	snapshot(t, hub)

	d := Delivery{RoomId: "r1", Origin: a.Id, Mode: DeliverOthers, Payload: json.RawMessage(`{"type":"answer"}`)}
	hub.Deliver(context.Background(), d)
	require.NotNil(t, published)

	// Nothing is delivered until the message comes back from the channel
	snapshot(t, hub)
	assert.Empty(t, drain(b))

	handler(published)
	snapshot(t, hub)
	assert.Equal(t, []string{`{"type":"answer"}`}, drain(b))
	assert.Empty(t, drain(a))

	hub.Leave(a, "r1")
	hub.Leave(b, "r1")
	snapshot(t, hub)
	assert.Error(t, subCtx.Err())
	mockCache.AssertExpectations(t)
}

func TestHub_PublishFailureFallsBackToLocal(t *testing.T) {
	mockCache := new(cachemocks.MockCache)
	hub := NewHub(mockCache, nil)
	startHub(t, hub)

	mockCache.On("Subscribe", mock.Anything, "relay:r1", mock.Anything).Return(nil)
	mockCache.On("Publish", mock.Anything, "relay:r1", mock.Anything).Return(errors.New("redis down"))

	a := openClient(hub, "alice")
	b := openClient(hub, "bob")
	hub.Join(a, "r1")
	hub.Join(b, "r1")

	hub.Deliver(context.Background(), Delivery{RoomId: "r1", Origin: a.Id, Mode: DeliverOthers, Payload: json.RawMessage(`"hi"`)})
	snapshot(t, hub)
	assert.Equal(t, []string{`"hi"`}, drain(b))
}

func TestHub_SubscribeFailureRejectsJoin(t *testing.T) {
	mockCache := new(cachemocks.MockCache)
	hub := NewHub(mockCache, nil)
	startHub(t, hub)

	mockCache.On("Subscribe", mock.Anything, "relay:r1", mock.Anything).Return(errors.New("redis down"))

	a := openClient(hub, "alice")
	hub.Join(a, "r1")

	snap := snapshot(t, hub)
	assert.Empty(t, snap.Rooms)
	assert.Empty(t, snap.Clients[a.Id])
}

func TestHub_SnapshotAfterStop(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.done

	_, ok := hub.Snapshot(context.Background())
	assert.False(t, ok)

	// Enqueueing on a stopped hub returns instead of blocking
	hub.Close(newTestClient(hub, "late"))
}
