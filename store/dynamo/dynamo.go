package dynamo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/zlnvch/drawroom/models"
	"github.com/zlnvch/drawroom/store"
)

type DynamoDrawroomStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoDrawroomStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoDrawroomStore, error) {
	client, err := newDynamoDBClient(ctx, devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, tableName) {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoDrawroomStore{client: client, tableName: tableName}, nil
}

func (dynamoStore *DynamoDrawroomStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.Created == 0 {
		user.Created = time.Now().Unix()
	}
	du, _, err := ensureItem(dynamoStore, ctx, userToDynamo(user))
	if err != nil {
		return models.User{}, err
	}
	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoDrawroomStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	du, err := getItem[dynamoUser](dynamoStore, ctx, userPrefix+userId, profileSK, false)
	if err != nil {
		return models.User{}, err
	}
	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoDrawroomStore) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	if room.Created == 0 {
		room.Created = time.Now().Unix()
	}
	dr, created, err := ensureItem(dynamoStore, ctx, roomToDynamo(room))
	if err != nil {
		return models.Room{}, err
	}
	if !created {
		return roomFromDynamo(dr), store.ErrConditionFailed
	}
	return roomFromDynamo(dr), nil
}

func (dynamoStore *DynamoDrawroomStore) GetRoomBySlug(ctx context.Context, slug string) (models.Room, error) {
	dr, err := getItem[dynamoRoom](dynamoStore, ctx, roomPrefix+slug, roomSK, false)
	if err != nil {
		return models.Room{}, err
	}
	return roomFromDynamo(dr), nil
}

func (dynamoStore *DynamoDrawroomStore) CreateChatEntry(ctx context.Context, chat models.Chat) (models.Chat, error) {
	if chat.Created == 0 {
		chat.Created = time.Now().UnixMilli()
	}
	item, err := attributevalue.MarshalMap(chatToDynamo(chat))
	if err != nil {
		return models.Chat{}, fmt.Errorf("marshal error: %w", err)
	}

	// Single put via the batch writer so throttled writes are retried.
	unprocessed, err := writeBatchRequests[dynamoChat](dynamoStore, ctx, []types.WriteRequest{
		{PutRequest: &types.PutRequest{Item: item}},
	})
	if err != nil {
		return models.Chat{}, err
	}
	if len(unprocessed) > 0 {
		return models.Chat{}, fmt.Errorf("chat entry %s was not written", chat.Id)
	}
	return chat, nil
}

func (dynamoStore *DynamoDrawroomStore) ListRecentChats(ctx context.Context, roomId string, limit int) ([]models.Chat, error) {
	// Newest first (ScanIndexForward: false)
	items, err := queryAllByPK[dynamoChat](dynamoStore, ctx, chatPrefix+roomId, false, int32(limit))
	if err != nil {
		return nil, err
	}

	chats := make([]models.Chat, 0, len(items))
	for _, item := range items {
		chats = append(chats, chatFromDynamo(item))
	}
	return chats, nil
}

func (dynamoStore *DynamoDrawroomStore) DeleteAllChats(ctx context.Context, roomId string) (int, error) {
	return batchDeleteByPKThrottled(dynamoStore, ctx, chatPrefix+roomId, 50*time.Millisecond)
}
