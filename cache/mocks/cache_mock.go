package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/drawroom/cache"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) AddChat(ctx context.Context, roomId string, chatId string, score int64, chatData []byte) error {
	args := m.Called(ctx, roomId, chatId, score, chatData)
	return args.Error(0)
}

func (m *MockCache) AddChatsBatch(ctx context.Context, roomId string, chats []cache.ChatCacheItem) error {
	args := m.Called(ctx, roomId, chats)
	return args.Error(0)
}

func (m *MockCache) GetRecentChats(ctx context.Context, roomId string, limit int) ([][]byte, error) {
	args := m.Called(ctx, roomId, limit)
	return args.Get(0).([][]byte), args.Error(1)
}

func (m *MockCache) SetRoomComplete(ctx context.Context, roomId string) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}

func (m *MockCache) IsRoomComplete(ctx context.Context, roomId string) (bool, error) {
	args := m.Called(ctx, roomId)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) InvalidateRooms(ctx context.Context, roomIds []string) error {
	args := m.Called(ctx, roomIds)
	return args.Error(0)
}
