package store

import (
	"context"
	"errors"

	"github.com/zlnvch/drawroom/models"
)

type DrawroomStore interface {
	// CreateUser inserts the user if absent and returns the stored record.
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userId string) (models.User, error)

	// CreateRoom fails with ErrConditionFailed when the slug is taken.
	CreateRoom(ctx context.Context, room models.Room) (models.Room, error)
	GetRoomBySlug(ctx context.Context, slug string) (models.Room, error)

	CreateChatEntry(ctx context.Context, chat models.Chat) (models.Chat, error)
	// ListRecentChats returns at most limit entries, most recent first.
	ListRecentChats(ctx context.Context, roomId string, limit int) ([]models.Chat, error)
	// DeleteAllChats removes every chat entry of the room and returns how many were removed.
	DeleteAllChats(ctx context.Context, roomId string) (int, error)
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
