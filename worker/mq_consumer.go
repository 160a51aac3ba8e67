package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zlnvch/drawroom/cache"
	"github.com/zlnvch/drawroom/metrics"
	"github.com/zlnvch/drawroom/mq"
	"github.com/zlnvch/drawroom/store"
)

type ClearRoomMessage struct {
	RoomId      string `json:"roomId"`
	RequestedBy string `json:"requestedBy"`
}

type MQConsumer struct {
	clearRoomQueue mq.MessageQueue
	drawroomStore  store.DrawroomStore
	drawroomCache  cache.DrawroomCache
	metrics        *metrics.Metrics
}

// drawroomCache may be nil when no cache is configured.
func NewMQConsumer(clearRoomQueue mq.MessageQueue, drawroomStore store.DrawroomStore, drawroomCache cache.DrawroomCache, m *metrics.Metrics) *MQConsumer {
	return &MQConsumer{
		clearRoomQueue: clearRoomQueue,
		drawroomStore:  drawroomStore,
		drawroomCache:  drawroomCache,
		metrics:        m,
	}
}

// Allow up to 5 minutes for the throttled deletion of a large room
const visibilityTimeout = 300

func (mqConsumer *MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.clearRoomQueue.Receive(shutdownCtx, visibilityTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}
		if msg == nil {
			continue
		}

		if err := mqConsumer.handle(msg); err != nil {
			log.Printf("mqConsumer: %v", err)
		}
	}
}

// handle processes one message. Malformed messages are deleted so they do not
// come back; failed deletions are left for redelivery.
func (mqConsumer *MQConsumer) handle(msg *mq.Message) error {
	var clearMsg ClearRoomMessage
	if err := json.Unmarshal([]byte(msg.Body), &clearMsg); err != nil || clearMsg.RoomId == "" {
		log.Printf("Discarding malformed clear-room message: %q", msg.Body)
		return mqConsumer.clearRoomQueue.Delete(context.Background(), msg)
	}

	// Slightly under the queue visibility timeout
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)
	defer cancel()

	deleted, err := ClearRoom(ctx, mqConsumer.drawroomStore, mqConsumer.drawroomCache, clearMsg.RoomId)
	if err != nil {
		return fmt.Errorf("clear room %s: %w", clearMsg.RoomId, err)
	}
	mqConsumer.metrics.ChatsCleared(deleted)
	log.Printf("Cleared %d chat entries from room %s (requested by %s)", deleted, clearMsg.RoomId, clearMsg.RequestedBy)

	if err := mqConsumer.clearRoomQueue.Delete(context.Background(), msg); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ClearRoom deletes every chat entry of a room and drops its cached copy.
func ClearRoom(ctx context.Context, drawroomStore store.DrawroomStore, drawroomCache cache.DrawroomCache, roomId string) (int, error) {
	deleted, err := drawroomStore.DeleteAllChats(ctx, roomId)
	if err != nil {
		return deleted, err
	}
	if drawroomCache != nil {
		if err := drawroomCache.InvalidateRooms(ctx, []string{roomId}); err != nil {
			log.Printf("Failed to invalidate room %s: %v", roomId, err)
		}
	}
	return deleted, nil
}
