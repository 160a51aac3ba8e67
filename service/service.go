package service

import (
	"errors"

	"github.com/zlnvch/drawroom/cache"
	"github.com/zlnvch/drawroom/metrics"
	"github.com/zlnvch/drawroom/mq"
	"github.com/zlnvch/drawroom/store"
)

type Service struct {
	Store store.DrawroomStore
	// Cache is nil on a single instance without Redis.
	Cache cache.DrawroomCache
	// ClearRoomQueue is nil when rooms are cleared inline.
	ClearRoomQueue mq.MessageQueue
	JWTSecret      []byte
	Metrics        *metrics.Metrics
}

func NewService(
	store store.DrawroomStore,
	cache cache.DrawroomCache,
	clearRoomQueue mq.MessageQueue,
	jwtSecret []byte,
	m *metrics.Metrics,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if len(jwtSecret) == 0 {
		return nil, errors.New("jwt secret is required")
	}

	return &Service{
		Store:          store,
		Cache:          cache,
		ClearRoomQueue: clearRoomQueue,
		JWTSecret:      jwtSecret,
		Metrics:        m,
	}, nil
}
