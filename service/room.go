package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zlnvch/drawroom/cache"
	"github.com/zlnvch/drawroom/models"
	"github.com/zlnvch/drawroom/store"
	"github.com/zlnvch/drawroom/worker"
)

var ErrRoomExists = errors.New("room already exists")

// RecentChatsLimit is how many chat entries a room load returns.
const RecentChatsLimit = 50

func (s *Service) CreateRoom(ctx context.Context, userId, name string) (models.Room, error) {
	if err := ValidateRoomName(name); err != nil {
		return models.Room{}, err
	}

	user, err := s.FindUser(ctx, userId)
	if err != nil {
		return models.Room{}, err
	}

	room, err := s.Store.CreateRoom(ctx, models.Room{
		Id:      uuid.NewString(),
		Slug:    Slug(name),
		AdminId: user.Id,
		Created: time.Now().UnixMilli(),
	})
	if errors.Is(err, store.ErrConditionFailed) {
		return models.Room{}, ErrRoomExists
	}
	if err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// GetRoomBySlug returns nil without error when no room has the slug.
func (s *Service) GetRoomBySlug(ctx context.Context, slug string) (*models.Room, error) {
	room, err := s.Store.GetRoomBySlug(ctx, Slug(slug))
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListChats returns the most recent chat entries of a room, newest first.
// A room the cache holds completely is served from there, otherwise the store
// is read and the cache seeded.
func (s *Service) ListChats(ctx context.Context, roomId string) ([]models.Chat, error) {
	if err := ValidateRoomId(roomId); err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if chats, ok := s.cachedChats(ctx, roomId); ok {
			return chats, nil
		}
	}

	chats, err := s.Store.ListRecentChats(ctx, roomId, RecentChatsLimit)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []models.Chat{}
	}

	if s.Cache != nil {
		s.seedChats(ctx, roomId, chats)
	}
	return chats, nil
}

func (s *Service) cachedChats(ctx context.Context, roomId string) ([]models.Chat, bool) {
	isComplete, err := s.Cache.IsRoomComplete(ctx, roomId)
	if err != nil || !isComplete {
		return nil, false
	}

	raw, err := s.Cache.GetRecentChats(ctx, roomId, RecentChatsLimit)
	if err != nil {
		log.Printf("Failed to read cached chats for room %s: %v", roomId, err)
		return nil, false
	}

	chats := make([]models.Chat, 0, len(raw))
	for _, b := range raw {
		var chat models.Chat
		if err := json.Unmarshal(b, &chat); err == nil {
			chats = append(chats, chat)
		}
	}
	return chats, true
}

func (s *Service) seedChats(ctx context.Context, roomId string, chats []models.Chat) {
	batchItems := make([]cache.ChatCacheItem, 0, len(chats))
	for _, chat := range chats {
		chatBytes, err := json.Marshal(chat)
		if err != nil {
			continue
		}
		batchItems = append(batchItems, cache.ChatCacheItem{
			ChatId: chat.Id,
			Score:  chat.Created,
			Data:   chatBytes,
		})
	}

	if err := s.Cache.AddChatsBatch(ctx, roomId, batchItems); err != nil {
		log.Printf("Failed to seed chat cache for room %s: %v", roomId, err)
		return
	}
	// Mark as complete even if currently empty
	if err := s.Cache.SetRoomComplete(ctx, roomId); err != nil {
		log.Printf("Failed to mark room %s complete: %v", roomId, err)
	}
}

// ClearRoom removes the chat log of a room, which also empties the canvas
// clients rebuild from it. With a queue configured the deletion runs in the
// worker, otherwise inline.
func (s *Service) ClearRoom(ctx context.Context, userId, roomId string) error {
	if err := ValidateRoomId(roomId); err != nil {
		return err
	}

	if s.ClearRoomQueue == nil {
		deleted, err := worker.ClearRoom(ctx, s.Store, s.Cache, roomId)
		if err != nil {
			return err
		}
		s.Metrics.ChatsCleared(deleted)
		log.Printf("Cleared %d chat entries from room %s", deleted, roomId)
		return nil
	}

	msgBytes, err := json.Marshal(worker.ClearRoomMessage{RoomId: roomId, RequestedBy: userId})
	if err != nil {
		return err
	}
	if err := s.ClearRoomQueue.Send(ctx, string(msgBytes)); err != nil {
		return fmt.Errorf("enqueue clear room: %w", err)
	}
	return nil
}
