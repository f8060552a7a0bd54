package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/application/ports"
	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the repository
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// maxQueryPage bounds a single Query page while skipping
const maxQueryPage = 1000

// MemoryRepository implements ports.MemoryRepository on a single DynamoDB table
type MemoryRepository struct {
	client    DynamoDBAPI
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewMemoryRepository creates a new MemoryRepository
func NewMemoryRepository(client DynamoDBAPI, tableName, indexName string, logger *zap.Logger) *MemoryRepository {
	return &MemoryRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// BeginTransaction opens a unit of work
func (r *MemoryRepository) BeginTransaction(ctx context.Context) (ports.Transaction, error) {
	return newTransaction(r), nil
}

// FindByTitle retrieves a memory by its title
func (r *MemoryRepository) FindByTitle(ctx context.Context, title string) (*memory.Record, error) {
	record, found, err := r.getItem(ctx, title)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFoundError(title)
	}
	return record, nil
}

// getItem performs a strongly consistent read of one memory
func (r *MemoryRepository) getItem(ctx context.Context, title string) (*memory.Record, bool, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            memoryKey(title),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.Error("Failed to get memory from DynamoDB",
			zap.String("title", title),
			zap.Error(err),
		)
		return nil, false, errors.NewTransactionError("get", err)
	}

	if len(result.Item) == 0 {
		return nil, false, nil
	}

	record, err := unmarshalRecord(result.Item)
	if err != nil {
		return nil, false, errors.NewTransactionError("unmarshal", err)
	}
	return &record, true, nil
}

// Find returns memories in creation order, skipping the first skip records.
// A limit of 0 returns everything after skip.
func (r *MemoryRepository) Find(ctx context.Context, skip, limit int) ([]memory.Record, error) {
	if skip < 0 || limit < 0 {
		return nil, errors.NewValidationError("skip and limit must not be negative")
	}

	input, err := r.listQuery()
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		// skip+limit may overflow for very deep pages
		pageSize := maxQueryPage
		if skip < maxQueryPage-limit {
			pageSize = skip + limit
		}
		input.Limit = aws.Int32(int32(pageSize))
	}

	records := make([]memory.Record, 0, max(limit, 0))
	seen := 0

	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.Error("Failed to query memories", zap.Error(err))
			return nil, errors.NewTransactionError("query", err)
		}

		for _, av := range page.Items {
			seen++
			if seen <= skip {
				continue
			}
			record, err := unmarshalRecord(av)
			if err != nil {
				return nil, errors.NewTransactionError("unmarshal", err)
			}
			records = append(records, record)
			if limit > 0 && len(records) == limit {
				return records, nil
			}
		}
	}

	return records, nil
}

// Count returns the number of memories
func (r *MemoryRepository) Count(ctx context.Context) (int, error) {
	input, err := r.listQuery()
	if err != nil {
		return 0, err
	}
	input.Select = types.SelectCount

	total := 0
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.Error("Failed to count memories", zap.Error(err))
			return 0, errors.NewTransactionError("count", err)
		}
		total += int(page.Count)
	}

	return total, nil
}

func (r *MemoryRepository) listQuery() (*dynamodb.QueryInput, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(listPartition))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, errors.NewTransactionError("build query", fmt.Errorf("failed to build expression: %w", err))
	}

	return &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}, nil
}
