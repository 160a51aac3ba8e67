package ws

import (
	"context"
	"encoding/json"
	"log"
	"slices"
	"sort"

	"github.com/zlnvch/drawroom/cache"
	"github.com/zlnvch/drawroom/metrics"
)

type DeliveryMode int

const (
	// DeliverOthers sends Payload to every member except the origin.
	DeliverOthers DeliveryMode = iota
	// DeliverAll sends Payload to every member.
	DeliverAll
	// DeliverTagged sends OriginPayload to the origin and Payload to the rest.
	DeliverTagged
)

// Delivery is a payload addressed to the members of one room. It is what
// travels over the relay channel between instances.
type Delivery struct {
	RoomId        string          `json:"roomId"`
	Origin        string          `json:"origin"`
	Mode          DeliveryMode    `json:"mode"`
	Payload       json.RawMessage `json:"payload"`
	OriginPayload json.RawMessage `json:"originPayload,omitempty"`
}

type opKind int

const (
	opOpen opKind = iota
	opClose
	opJoin
	opLeave
	opDeliver
	opSnapshot
)

// op is one unit of hub work. All of them share a channel so each
// connection's open, joins, leaves, deliveries and close apply in order.
type op struct {
	kind     opKind
	client   *Client
	roomId   string
	delivery Delivery
	reply    chan Snapshot
}

// Room holds the connections currently joined to one room id. It exists only
// while it has members.
type Room struct {
	Id      string
	members map[*Client]struct{}
	userIds map[string]int
	cancel  context.CancelFunc
}

// Snapshot is a copy of the registry for inspection.
type Snapshot struct {
	// Rooms maps a room id to the sorted client ids of its members.
	Rooms map[string][]string
	// RoomUsers maps a room id to the sorted user ids of its members.
	RoomUsers map[string][]string
	// Clients maps a client id to its joined rooms in join order, nil when
	// it has none.
	Clients map[string][]string
}

// Hub owns the connection registry and the rooms. All of its state is
// touched only by the Run goroutine.
type Hub struct {
	drawroomCache cache.DrawroomCache
	metrics       *metrics.Metrics

	ops chan op

	clients map[*Client]struct{}
	rooms   map[string]*Room

	ctx  context.Context
	done chan struct{}
}

// drawroomCache may be nil, in which case deliveries stay on this instance.
func NewHub(drawroomCache cache.DrawroomCache, m *metrics.Metrics) *Hub {
	return &Hub{
		drawroomCache: drawroomCache,
		metrics:       m,
		ops:           make(chan op, 1024),
		clients:       make(map[*Client]struct{}),
		rooms:         make(map[string]*Room),
		done:          make(chan struct{}),
	}
}

func relayChannel(roomId string) string {
	return "relay:" + roomId
}

func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer func() {
		for _, room := range h.rooms {
			if room.cancel != nil {
				room.cancel()
			}
		}
		close(h.done)
	}()

	for {
		select {
		case o := <-h.ops:
			switch o.kind {
			case opOpen:
				h.clients[o.client] = struct{}{}
				h.metrics.ConnectionOpened()
			case opClose:
				h.unregister(o.client)
			case opJoin:
				h.join(o.client, o.roomId)
			case opLeave:
				h.leave(o.client, o.roomId)
			case opDeliver:
				h.deliverLocal(o.delivery)
			case opSnapshot:
				o.reply <- h.snapshot()
			}

		case <-ctx.Done():
			return
		}
	}
}

// Deliver routes d to the members of its room. With a cache configured the
// delivery goes through the room's relay channel so members on every
// instance receive it.
func (h *Hub) Deliver(ctx context.Context, d Delivery) {
	if h.drawroomCache != nil {
		msgBytes, err := json.Marshal(d)
		if err == nil {
			err = h.drawroomCache.Publish(ctx, relayChannel(d.RoomId), msgBytes)
		}
		if err == nil {
			return
		}
		log.Printf("Failed to publish to room %s, delivering locally: %v", d.RoomId, err)
	}

	h.enqueue(op{kind: opDeliver, delivery: d})
}

func (h *Hub) Open(client *Client) {
	h.enqueue(op{kind: opOpen, client: client})
}

// Close deregisters client. Calling it more than once is harmless.
func (h *Hub) Close(client *Client) {
	h.enqueue(op{kind: opClose, client: client})
}

func (h *Hub) Join(client *Client, roomId string) {
	h.enqueue(op{kind: opJoin, client: client, roomId: roomId})
}

func (h *Hub) Leave(client *Client, roomId string) {
	h.enqueue(op{kind: opLeave, client: client, roomId: roomId})
}

func (h *Hub) enqueue(o op) {
	select {
	case h.ops <- o:
	case <-h.done:
	}
}

// Snapshot returns a copy of the registry after every operation queued
// before it has applied, or false once the hub stopped.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, bool) {
	reply := make(chan Snapshot, 1)
	select {
	case h.ops <- op{kind: opSnapshot, reply: reply}:
	case <-h.done:
		return Snapshot{}, false
	case <-ctx.Done():
		return Snapshot{}, false
	}

	select {
	case snap := <-reply:
		return snap, true
	case <-h.done:
		return Snapshot{}, false
	case <-ctx.Done():
		return Snapshot{}, false
	}
}

// unregister runs at most once per client: a client no longer in the
// registry is ignored.
func (h *Hub) unregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	for _, roomId := range client.joinedRooms {
		h.removeMember(client, roomId)
	}
	client.joinedRooms = nil

	delete(h.clients, client)
	close(client.Send)
	h.metrics.ConnectionClosed()
}

func (h *Hub) join(client *Client, roomId string) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	room, ok := h.rooms[roomId]
	if !ok {
		room = &Room{
			Id:      roomId,
			members: make(map[*Client]struct{}),
			userIds: make(map[string]int),
		}
		if !h.subscribe(room) {
			return
		}
		h.rooms[roomId] = room
		h.metrics.RoomCreated()
		log.Printf("Room %s created", roomId)
	}

	if _, member := room.members[client]; member {
		return
	}
	room.members[client] = struct{}{}
	room.userIds[client.UserId]++
	client.joinedRooms = append(client.joinedRooms, roomId)
}

func (h *Hub) leave(client *Client, roomId string) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	client.joinedRooms = slices.DeleteFunc(client.joinedRooms, func(id string) bool { return id == roomId })
	h.removeMember(client, roomId)
}

func (h *Hub) removeMember(client *Client, roomId string) {
	room, ok := h.rooms[roomId]
	if !ok {
		return
	}
	if _, member := room.members[client]; !member {
		return
	}

	delete(room.members, client)
	if room.userIds[client.UserId]--; room.userIds[client.UserId] <= 0 {
		delete(room.userIds, client.UserId)
	}

	if len(room.members) == 0 {
		if room.cancel != nil {
			room.cancel()
		}
		delete(h.rooms, roomId)
		h.metrics.RoomDeleted()
		log.Printf("Room %s deleted", roomId)
	}
}

// subscribe attaches the room to its relay channel for as long as it lives.
func (h *Hub) subscribe(room *Room) bool {
	if h.drawroomCache == nil {
		return true
	}

	ctx, cancel := context.WithCancel(h.ctx)
	roomId := room.Id
	err := h.drawroomCache.Subscribe(ctx, relayChannel(roomId), func(messageBytes []byte) {
		var d Delivery
		if err := json.Unmarshal(messageBytes, &d); err != nil {
			log.Printf("Invalid relay message on room %s: %v", roomId, err)
			return
		}
		select {
		case h.ops <- op{kind: opDeliver, delivery: d}:
		case <-ctx.Done():
		}
	})
	if err != nil {
		cancel()
		log.Printf("Failed to create redis sub for room %s: %v", roomId, err)
		return false
	}
	room.cancel = cancel
	return true
}

func (h *Hub) deliverLocal(d Delivery) {
	room, ok := h.rooms[d.RoomId]
	if !ok {
		return
	}

	for client := range room.members {
		isOrigin := client.Id == d.Origin
		switch {
		case isOrigin && d.Mode == DeliverOthers:
			continue
		case isOrigin && d.Mode == DeliverTagged:
			h.send(client, d.OriginPayload)
		default:
			h.send(client, d.Payload)
		}
	}
}

// send never blocks: a client whose buffer is full is evicted.
func (h *Hub) send(client *Client, message []byte) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.Send <- message:
	default:
		log.Printf("Evicting slow connection %s of user %s", client.Id, client.UserId)
		h.metrics.Dropped("slow_consumer")
		h.unregister(client)
	}
}

func (h *Hub) snapshot() Snapshot {
	snap := Snapshot{
		Rooms:     make(map[string][]string, len(h.rooms)),
		RoomUsers: make(map[string][]string, len(h.rooms)),
		Clients:   make(map[string][]string, len(h.clients)),
	}
	for roomId, room := range h.rooms {
		ids := make([]string, 0, len(room.members))
		for client := range room.members {
			ids = append(ids, client.Id)
		}
		sort.Strings(ids)
		snap.Rooms[roomId] = ids

		users := make([]string, 0, len(room.userIds))
		for userId := range room.userIds {
			users = append(users, userId)
		}
		sort.Strings(users)
		snap.RoomUsers[roomId] = users
	}
	for client := range h.clients {
		var joined []string
		if len(client.joinedRooms) > 0 {
			joined = slices.Clone(client.joinedRooms)
		}
		snap.Clients[client.Id] = joined
	}
	return snap
}
