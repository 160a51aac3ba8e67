package cache

import "context"

type ChatCacheItem struct {
	ChatId string
	Score  int64
	Data   []byte
}

type DrawroomCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	// Subscribe delivers messages to handler until ctx is cancelled.
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	AddChat(ctx context.Context, roomId string, chatId string, score int64, chatData []byte) error
	AddChatsBatch(ctx context.Context, roomId string, chats []ChatCacheItem) error
	// GetRecentChats returns up to limit entries, most recent first.
	GetRecentChats(ctx context.Context, roomId string, limit int) ([][]byte, error)

	SetRoomComplete(ctx context.Context, roomId string) error
	IsRoomComplete(ctx context.Context, roomId string) (bool, error)
	InvalidateRooms(ctx context.Context, roomIds []string) error
}
