package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/zlnvch/drawroom/models"
	"github.com/zlnvch/drawroom/store"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL DEFAULT '',
	created BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS rooms (
	id       TEXT PRIMARY KEY,
	slug     TEXT NOT NULL UNIQUE,
	admin_id TEXT NOT NULL REFERENCES users (id),
	created  BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS chats (
	id      TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL REFERENCES users (id),
	message TEXT NOT NULL,
	created BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS chats_room_created ON chats (room_id, created DESC);
`

type PostgresDrawroomStore struct {
	db *sql.DB
}

func NewPostgresDrawroomStore(ctx context.Context, dsn string) (*PostgresDrawroomStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresDrawroomStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing handle. The schema is assumed to exist.
func NewWithDB(db *sql.DB) *PostgresDrawroomStore {
	return &PostgresDrawroomStore{db: db}
}

func (s *PostgresDrawroomStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresDrawroomStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresDrawroomStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.Created == 0 {
		user.Created = time.Now().Unix()
	}
	// The no-op update makes RETURNING yield the existing row on conflict.
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, created) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, name, created
	`, user.Id, user.Name, user.Created)

	var out models.User
	if err := row.Scan(&out.Id, &out.Name, &out.Created); err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return out, nil
}

func (s *PostgresDrawroomStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created FROM users WHERE id = $1`, userId)

	var out models.User
	if err := row.Scan(&out.Id, &out.Name, &out.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, store.ErrItemNotFound
		}
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return out, nil
}

func (s *PostgresDrawroomStore) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	if room.Created == 0 {
		room.Created = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, slug, admin_id, created) VALUES ($1, $2, $3, $4)
	`, room.Id, room.Slug, room.AdminId, room.Created)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.Room{}, store.ErrConditionFailed
		}
		return models.Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (s *PostgresDrawroomStore) GetRoomBySlug(ctx context.Context, slug string) (models.Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, slug, admin_id, created FROM rooms WHERE slug = $1`, slug)

	var out models.Room
	if err := row.Scan(&out.Id, &out.Slug, &out.AdminId, &out.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Room{}, store.ErrItemNotFound
		}
		return models.Room{}, fmt.Errorf("get room: %w", err)
	}
	return out, nil
}

func (s *PostgresDrawroomStore) CreateChatEntry(ctx context.Context, chat models.Chat) (models.Chat, error) {
	if chat.Created == 0 {
		chat.Created = time.Now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, room_id, user_id, message, created) VALUES ($1, $2, $3, $4, $5)
	`, chat.Id, chat.RoomId, chat.UserId, chat.Message, chat.Created)
	if err != nil {
		return models.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

func (s *PostgresDrawroomStore) ListRecentChats(ctx context.Context, roomId string, limit int) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, message, created
		FROM chats
		WHERE room_id = $1
		ORDER BY created DESC, id DESC
		LIMIT $2
	`, roomId, limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.Chat, 0, limit)
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.Id, &c.RoomId, &c.UserId, &c.Message, &c.Created); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

func (s *PostgresDrawroomStore) DeleteAllChats(ctx context.Context, roomId string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE room_id = $1`, roomId)
	if err != nil {
		return 0, fmt.Errorf("delete chats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete chats: %w", err)
	}
	return int(n), nil
}
