package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/zlnvch/drawroom/models"
)

// PostChat persists one chat entry for a known user. Nothing is written when
// the user does not exist. The cache copy is best effort.
func (s *Service) PostChat(ctx context.Context, roomId, userId, message string) (models.Chat, error) {
	if err := ValidateRoomId(roomId); err != nil {
		return models.Chat{}, err
	}
	if err := ValidateChatMessage(message); err != nil {
		return models.Chat{}, err
	}

	user, err := s.FindUser(ctx, userId)
	if err != nil {
		return models.Chat{}, err
	}

	// UUIDv7 keeps chat ids sortable by creation time
	chatUUID, err := uuid.NewV7()
	if err != nil {
		return models.Chat{}, err
	}
	created, err := getTimeFromUUIDv7(chatUUID.String())
	if err != nil {
		created = time.Now()
	}

	chat, err := s.Store.CreateChatEntry(ctx, models.Chat{
		Id:      chatUUID.String(),
		RoomId:  roomId,
		UserId:  user.Id,
		Message: message,
		Created: created.UnixMilli(),
	})
	if err != nil {
		s.Metrics.ChatPersistFailed()
		return models.Chat{}, fmt.Errorf("persist chat: %w", err)
	}

	if s.Cache != nil {
		if chatBytes, err := json.Marshal(chat); err == nil {
			if err := s.Cache.AddChat(ctx, roomId, chat.Id, chat.Created, chatBytes); err != nil {
				log.Printf("Failed to cache chat %s: %v", chat.Id, err)
			}
		}
	}

	return chat, nil
}

func getTimeFromUUIDv7(id string) (time.Time, error) {
	u, err := uuid.FromString(id)
	if err != nil {
		return time.Time{}, err
	}
	if u.Version() != uuid.V7 {
		return time.Time{}, fmt.Errorf("not a v7 uuid: %s", id)
	}
	ts, err := uuid.TimestampFromV7(u)
	if err != nil {
		return time.Time{}, err
	}
	return ts.Time()
}
