package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/zlnvch/drawroom/store"
)

// BatchWriteItem accepts at most 25 requests per call.
const maxBatchWrite = 25

func newDynamoDBClient(ctx context.Context, devMode bool, dynamodbEndpoint string) (*dynamodb.Client, error) {
	if devMode {
		// Dummy credentials and region for dynamodb-local
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, err
		}

		return dynamodb.New(dynamodb.Options{
			Credentials:      cfg.Credentials,
			Region:           cfg.Region,
			EndpointResolver: dynamodb.EndpointResolverFromURL(dynamodbEndpoint),
		}), nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg), nil
}

func getTables(client *dynamodb.Client, ctx context.Context) ([]string, error) {
	output, err := client.ListTables(ctx, &dynamodb.ListTablesInput{})
	if err != nil {
		return nil, err
	}
	return output.TableNames, nil
}

func primaryKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// getItem retrieves an item of type T by PK and SK.
func getItem[T any](dynamoStore *DynamoDrawroomStore, ctx context.Context, pk string, sk string, consistentRead bool) (T, error) {
	var zero T

	resp, err := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(dynamoStore.tableName),
		Key:            primaryKey(pk, sk),
		ConsistentRead: aws.Bool(consistentRead),
	})
	if err != nil {
		return zero, fmt.Errorf("GetItem failed: %w", err)
	}
	if resp.Item == nil {
		return zero, store.ErrItemNotFound
	}

	var item T
	if err := attributevalue.UnmarshalMap(resp.Item, &item); err != nil {
		return zero, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, nil
}

// ensureItem inserts item unless an item with the same PK and SK exists. It
// returns the stored item and whether this call created it.
func ensureItem[T any](dynamoStore *DynamoDrawroomStore, ctx context.Context, item T) (T, bool, error) {
	var zero T

	avMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return zero, false, fmt.Errorf("marshal error: %w", err)
	}
	pk, okPK := avMap["PK"]
	sk, okSK := avMap["SK"]
	if !okPK || !okSK {
		return zero, false, errors.New("struct missing PK or SK field")
	}

	_, err = dynamoStore.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dynamoStore.tableName),
		Item:                avMap,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err == nil {
		return item, true, nil
	}

	var cce *types.ConditionalCheckFailedException
	if !errors.As(err, &cce) {
		return zero, false, fmt.Errorf("failed to put item: %w", err)
	}

	// Already exists: return what is stored
	getResp, err := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Key:       map[string]types.AttributeValue{"PK": pk, "SK": sk},
	})
	if err != nil {
		return zero, false, fmt.Errorf("failed to get existing item: %w", err)
	}
	if getResp.Item == nil {
		return zero, false, errors.New("item supposedly exists but GetItem returned nothing")
	}

	var existing T
	if err := attributevalue.UnmarshalMap(getResp.Item, &existing); err != nil {
		return zero, false, fmt.Errorf("failed to unmarshal existing item: %w", err)
	}
	return existing, false, nil
}

// queryAllByPK returns items of type T with the given PK ordered by SK, stopping
// after limit items when limit > 0.
func queryAllByPK[T any](dynamoStore *DynamoDrawroomStore, ctx context.Context, pk string, scanIndexForward bool, limit int32) ([]T, error) {
	var results []T

	input := &dynamodb.QueryInput{
		TableName:              aws.String(dynamoStore.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ScanIndexForward: aws.Bool(scanIndexForward),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	// Limit applies per page, so it is enforced across pages here too
	paginator := dynamodb.NewQueryPaginator(dynamoStore.client, input)
	for paginator.HasMorePages() {
		if limit > 0 && len(results) >= int(limit) {
			break
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}

		var pageItems []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page items: %w", err)
		}
		results = append(results, pageItems...)
	}

	if limit > 0 && len(results) > int(limit) {
		results = results[:limit]
	}
	return results, nil
}

// writeBatchRequests runs Put or Delete requests, retrying unprocessed ones
// with backoff. Whatever is still unprocessed on error is returned as []T.
func writeBatchRequests[T any](dynamoStore *DynamoDrawroomStore, ctx context.Context, requests []types.WriteRequest) ([]T, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	backoff := 50 * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return unmarshalUnprocessed[T](requests), err
		}

		resp, err := dynamoStore.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				dynamoStore.tableName: requests,
			},
		})
		if err != nil {
			return unmarshalUnprocessed[T](requests), fmt.Errorf("BatchWriteItem failed: %w", err)
		}

		requests = resp.UnprocessedItems[dynamoStore.tableName]
		if len(requests) == 0 {
			return nil, nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unmarshalUnprocessed[T](requests), ctx.Err()
		case <-timer.C:
		}

		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func unmarshalUnprocessed[T any](reqs []types.WriteRequest) []T {
	failed := make([]T, 0, len(reqs))
	for _, wr := range reqs {
		var av map[string]types.AttributeValue
		switch {
		case wr.PutRequest != nil:
			av = wr.PutRequest.Item
		case wr.DeleteRequest != nil:
			// Deletes only carry the key
			av = wr.DeleteRequest.Key
		default:
			continue
		}
		var item T
		if err := attributevalue.UnmarshalMap(av, &item); err == nil {
			failed = append(failed, item)
		}
	}
	return failed
}

// batchDeleteByPKThrottled deletes every item in a partition, querying keys a
// page at a time and deleting in 25-item batches spaced by throttle. It
// returns the number of items deleted.
func batchDeleteByPKThrottled(dynamoStore *DynamoDrawroomStore, ctx context.Context, pk string, throttle time.Duration) (int, error) {
	const queryPageSize int32 = 200
	deleted := 0

	for {
		// Always query from the start: the previous page is gone by now.
		resp, err := dynamoStore.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(dynamoStore.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pk},
			},
			ProjectionExpression: aws.String("PK, SK"),
			Limit:                aws.Int32(queryPageSize),
		})
		if err != nil {
			return deleted, fmt.Errorf("query failed: %w", err)
		}
		if len(resp.Items) == 0 {
			return deleted, nil
		}

		delRequests := make([]types.WriteRequest, 0, len(resp.Items))
		for _, item := range resp.Items {
			pkAttr, okPK := item["PK"]
			skAttr, okSK := item["SK"]
			if !okPK || !okSK {
				continue
			}
			delRequests = append(delRequests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{"PK": pkAttr, "SK": skAttr},
				},
			})
		}
		if len(delRequests) == 0 {
			return deleted, fmt.Errorf("query returned items without PK/SK")
		}

		for i := 0; i < len(delRequests); i += maxBatchWrite {
			end := min(i+maxBatchWrite, len(delRequests))
			startTime := time.Now()

			_, err := writeBatchRequests[map[string]types.AttributeValue](dynamoStore, ctx, delRequests[i:end])
			if err != nil {
				return deleted, fmt.Errorf("batch delete failed: %w", err)
			}
			deleted += end - i

			if elapsed := time.Since(startTime); elapsed < throttle {
				select {
				case <-ctx.Done():
					return deleted, ctx.Err()
				case <-time.After(throttle - elapsed):
				}
			}
		}

		if resp.LastEvaluatedKey == nil {
			return deleted, nil
		}
	}
}
