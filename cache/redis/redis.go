package redis

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zlnvch/drawroom/cache"
)

type RedisDrawroomCache struct {
	client redis.UniversalClient
}

func NewRedisDrawroomCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisDrawroomCache, error) {
	opts := &redis.Options{Addr: redisEndpoint}
	if !devMode {
		// AWS elasticache endpoints require TLS
		opts.TLSConfig = &tls.Config{}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisDrawroomCache{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient) *RedisDrawroomCache {
	return &RedisDrawroomCache{client: client}
}

func (redisCache *RedisDrawroomCache) Close() error {
	return redisCache.client.Close()
}

func (redisCache *RedisDrawroomCache) Publish(ctx context.Context, channel string, message []byte) error {
	return redisCache.client.Publish(ctx, channel, message).Err()
}

func (redisCache *RedisDrawroomCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Keys share a hash tag so one room's keys live in one cluster slot.
func buildRoomKey(roomId string) string {
	return "room:{" + roomId + "}:chats"
}

func buildRoomDataKey(roomId string) string {
	return "room:{" + roomId + "}:data"
}

func buildRoomCompleteKey(roomId string) string {
	return "room:{" + roomId + "}:complete"
}

const cacheTTL = 10 * time.Minute

// A room's chat log is split in two structures: a ZSET of chat ids scored by
// creation time for ordering, and a HASH of chat id -> JSON entry.
func (redisCache *RedisDrawroomCache) AddChat(ctx context.Context, roomId string, chatId string, score int64, chatData []byte) error {
	return redisCache.AddChatsBatch(ctx, roomId, []cache.ChatCacheItem{{ChatId: chatId, Score: score, Data: chatData}})
}

func (redisCache *RedisDrawroomCache) AddChatsBatch(ctx context.Context, roomId string, chats []cache.ChatCacheItem) error {
	if len(chats) == 0 {
		return nil
	}

	key := buildRoomKey(roomId)
	dataKey := buildRoomDataKey(roomId)

	zMembers := make([]redis.Z, len(chats))
	hValues := make([]any, 0, len(chats)*2)
	for i, c := range chats {
		zMembers[i] = redis.Z{Score: float64(c.Score), Member: c.ChatId}
		hValues = append(hValues, c.ChatId, c.Data)
	}

	pipe := redisCache.client.Pipeline()
	pipe.ZAdd(ctx, key, zMembers...)
	pipe.HSet(ctx, dataKey, hValues...)
	redisCache.refreshTTL(ctx, pipe, roomId)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisDrawroomCache) GetRecentChats(ctx context.Context, roomId string, limit int) ([][]byte, error) {
	key := buildRoomKey(roomId)
	dataKey := buildRoomDataKey(roomId)

	ids, err := redisCache.client.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return [][]byte{}, nil
	}

	values, err := redisCache.client.HMGet(ctx, dataKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	chats := make([][]byte, 0, len(ids))
	for _, item := range values {
		if s, ok := item.(string); ok {
			chats = append(chats, []byte(s))
		}
	}

	pipe := redisCache.client.Pipeline()
	redisCache.refreshTTL(ctx, pipe, roomId)
	_, _ = pipe.Exec(ctx)

	return chats, nil
}

func (redisCache *RedisDrawroomCache) refreshTTL(ctx context.Context, pipe redis.Pipeliner, roomId string) {
	pipe.Expire(ctx, buildRoomCompleteKey(roomId), cacheTTL)
	pipe.Expire(ctx, buildRoomKey(roomId), cacheTTL)
	pipe.Expire(ctx, buildRoomDataKey(roomId), cacheTTL)
}

func (redisCache *RedisDrawroomCache) SetRoomComplete(ctx context.Context, roomId string) error {
	return redisCache.client.Set(ctx, buildRoomCompleteKey(roomId), "true", cacheTTL).Err()
}

func (redisCache *RedisDrawroomCache) IsRoomComplete(ctx context.Context, roomId string) (bool, error) {
	val, err := redisCache.client.Exists(ctx, buildRoomCompleteKey(roomId)).Result()
	if err != nil {
		return false, err
	}
	return val > 0, nil
}

func (redisCache *RedisDrawroomCache) InvalidateRooms(ctx context.Context, roomIds []string) error {
	// Different rooms hash to different slots, so delete room by room.
	for _, roomId := range roomIds {
		err := redisCache.client.Del(ctx, buildRoomKey(roomId), buildRoomDataKey(roomId), buildRoomCompleteKey(roomId)).Err()
		if err != nil {
			return err
		}
	}
	return nil
}
