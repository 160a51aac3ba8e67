package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/drawroom/models"
	"github.com/zlnvch/drawroom/store"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *PostgresDrawroomStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, NewWithDB(db)
}

func TestCreateChatEntry(t *testing.T) {
	mock, s := setupMockDB(t)
	chat := models.Chat{Id: "c1", RoomId: "r1", UserId: "u1", Message: "hi", Created: 42}

	mock.ExpectExec("INSERT INTO chats").
		WithArgs("c1", "r1", "u1", "hi", int64(42)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	got, err := s.CreateChatEntry(context.Background(), chat)
	require.NoError(t, err)
	assert.Equal(t, chat, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChatEntry_DatabaseError(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectExec("INSERT INTO chats").WillReturnError(errors.New("connection refused"))

	_, err := s.CreateChatEntry(context.Background(), models.Chat{Id: "c1", RoomId: "r1", UserId: "u1", Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create chat")
}

func TestGetUser(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectQuery("SELECT id, name, created FROM users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created"}).AddRow("u1", "alice", int64(10)))

	user, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.User{Id: "u1", Name: "alice", Created: 10}, user)
}

func TestGetUser_NotFound(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectQuery("SELECT id, name, created FROM users").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestCreateUser_ReturnsStoredRow(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("u1", "bob", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created"}).AddRow("u1", "alice", int64(1)))

	user, err := s.CreateUser(context.Background(), models.User{Id: "u1", Name: "bob", Created: 5})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
}

func TestCreateRoom_DuplicateSlug(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectExec("INSERT INTO rooms").
		WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := s.CreateRoom(context.Background(), models.Room{Id: "id1", Slug: "my-room", AdminId: "u1", Created: 1})
	assert.ErrorIs(t, err, store.ErrConditionFailed)
}

func TestGetRoomBySlug(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectQuery("SELECT id, slug, admin_id, created FROM rooms").
		WithArgs("my-room").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "admin_id", "created"}).AddRow("id1", "my-room", "u1", int64(3)))

	room, err := s.GetRoomBySlug(context.Background(), "my-room")
	require.NoError(t, err)
	assert.Equal(t, models.Room{Id: "id1", Slug: "my-room", AdminId: "u1", Created: 3}, room)
}

func TestListRecentChats_MostRecentFirst(t *testing.T) {
	mock, s := setupMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "room_id", "user_id", "message", "created"}).
		AddRow("c3", "r1", "u1", "third", int64(3)).
		AddRow("c2", "r1", "u2", "second", int64(2))
	mock.ExpectQuery("SELECT id, room_id, user_id, message, created").
		WithArgs("r1", 2).
		WillReturnRows(rows)

	chats, err := s.ListRecentChats(context.Background(), "r1", 2)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "c3", chats[0].Id)
	assert.Equal(t, "c2", chats[1].Id)
}

func TestDeleteAllChats_ReturnsCount(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectExec("DELETE FROM chats").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := s.DeleteAllChats(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestMigrate(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
