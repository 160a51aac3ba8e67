package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/drawroom/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *MockStore) GetRoomBySlug(ctx context.Context, slug string) (models.Room, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *MockStore) CreateChatEntry(ctx context.Context, chat models.Chat) (models.Chat, error) {
	args := m.Called(ctx, chat)
	return args.Get(0).(models.Chat), args.Error(1)
}

func (m *MockStore) ListRecentChats(ctx context.Context, roomId string, limit int) ([]models.Chat, error) {
	args := m.Called(ctx, roomId, limit)
	return args.Get(0).([]models.Chat), args.Error(1)
}

func (m *MockStore) DeleteAllChats(ctx context.Context, roomId string) (int, error) {
	args := m.Called(ctx, roomId)
	return args.Int(0), args.Error(1)
}
