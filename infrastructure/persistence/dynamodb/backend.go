// Package dynamodb stores nodes and edges in a single DynamoDB table.
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	"bfdb/infrastructure/persistence/abstractions"
	pkgerrors "bfdb/pkg/errors"
)

// batchGetLimit is the most keys a single BatchGetItem call accepts
const batchGetLimit = 100

// maxUnprocessedRounds bounds how often unprocessed batch keys are retried
const maxUnprocessedRounds = 5

// API is the subset of the DynamoDB client the backend calls
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Config names the table and its indexes
type Config struct {
	TableName   string
	GidIndex    string
	SourceIndex string
	TargetIndex string
	SortIndex   string

	// CreateTable makes Initialize create a missing table
	CreateTable bool

	// Concurrency bounds parallel id lookups; zero means 8
	Concurrency int
}

// DefaultConfig returns the index names used by the provisioning templates
func DefaultConfig(tableName string) Config {
	return Config{
		TableName:   tableName,
		GidIndex:    "GidIndex",
		SourceIndex: "SourceIndex",
		TargetIndex: "TargetIndex",
		SortIndex:   "SortIndex",
		Concurrency: 8,
	}
}

// Backend implements ports.Backend on DynamoDB
type Backend struct {
	client API
	cfg    Config
	logger *zap.Logger
}

var _ ports.Backend = (*Backend)(nil)

// NewBackend creates a new DynamoDB backend
func NewBackend(client API, cfg Config, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Backend{
		client: client,
		cfg:    cfg,
		logger: logger.Named("dynamodb"),
	}
}

// Initialize checks the table, creating it when configured to
func (b *Backend) Initialize(ctx context.Context) error {
	if !b.cfg.CreateTable {
		return nil
	}
	if err := b.ensureTable(ctx); err != nil {
		return pkgerrors.NewDatabaseError("initialize", err)
	}
	return nil
}

// Close is a no-op; the client owns no resources
func (b *Backend) Close(ctx context.Context) error {
	return nil
}

// GetItem loads one item with a consistent read
func (b *Backend) GetItem(ctx context.Context, oid, gid valueobjects.BfGid) (*entities.Item, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.cfg.TableName),
		Key:            primaryKey(oid, gid),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get item", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNodeNotFoundError(gid.String())
	}

	item, err := unmarshalItem(result.Item)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get item", err)
	}
	return &item, nil
}

// GetItemByBfGid finds an item through the gid index
func (b *Backend) GetItemByBfGid(ctx context.Context, gid valueobjects.BfGid) (*entities.Item, error) {
	keyExpr := expression.Key(attrGSI1PK).Equal(expression.Value(gidPK(gid)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build expression", err)
	}

	result, err := b.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(b.cfg.TableName),
		IndexName:                 aws.String(b.cfg.GidIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get item by gid", err)
	}
	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNodeNotFoundError(gid.String())
	}

	item, err := unmarshalItem(result.Items[0])
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get item by gid", err)
	}
	return &item, nil
}

// GetItemsByBfGid looks ids up concurrently and returns the found items
// in input order
func (b *Backend) GetItemsByBfGid(ctx context.Context, gids []valueobjects.BfGid) ([]entities.Item, error) {
	found := make([]*entities.Item, len(gids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for i, gid := range gids {
		g.Go(func() error {
			item, err := b.GetItemByBfGid(gctx, gid)
			if err != nil {
				if pkgerrors.IsNotFound(err) {
					return nil
				}
				return err
			}
			found[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]entities.Item, 0, len(gids))
	for _, item := range found {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

// PutItem writes the item, replacing any previous version
func (b *Backend) PutItem(ctx context.Context, item entities.Item) error {
	return b.put(ctx, item, false)
}

// InsertItem writes the item only if its organisation holds no item with
// the same gid. The same gid may still be written concurrently under two
// organisations.
func (b *Backend) InsertItem(ctx context.Context, item entities.Item) error {
	return b.put(ctx, item, true)
}

func (b *Backend) put(ctx context.Context, item entities.Item, mustBeNew bool) error {
	if item.Metadata.BfGid.IsZero() || item.Metadata.BfOid.IsZero() {
		return pkgerrors.NewValidationError("item needs bfGid and bfOid")
	}

	av, err := marshalItem(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("put item", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(b.cfg.TableName),
		Item:      av,
	}
	if mustBeNew {
		expr, err := expression.NewBuilder().
			WithCondition(expression.AttributeNotExists(expression.Name(attrPK))).
			Build()
		if err != nil {
			return pkgerrors.NewDatabaseError("build expression", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
	}

	if _, err := b.client.PutItem(ctx, input); err != nil {
		var exists *types.ConditionalCheckFailedException
		if errors.As(err, &exists) {
			return pkgerrors.NewConflictError("bfGid already in use: " + item.Metadata.BfGid.String())
		}
		return pkgerrors.NewDatabaseError("put item", err)
	}

	b.logger.Debug("Item saved",
		zap.String("bfGid", item.Metadata.BfGid.String()),
		zap.String("className", item.Metadata.ClassName),
	)
	return nil
}

// DeleteItem removes the item; missing items are ignored
func (b *Backend) DeleteItem(ctx context.Context, oid, gid valueobjects.BfGid) error {
	if _, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.cfg.TableName),
		Key:       primaryKey(oid, gid),
	}); err != nil {
		return pkgerrors.NewDatabaseError("delete item", err)
	}

	b.logger.Debug("Item deleted", zap.String("bfGid", gid.String()))
	return nil
}

// QueryItems picks the narrowest key for q, pages through it and applies
// the remaining filters in memory
func (b *Backend) QueryItems(ctx context.Context, q ports.ItemQuery) ([]entities.Item, error) {
	f := q.Metadata

	if len(q.BfGids) > 0 {
		var candidates []entities.Item
		var err error
		if f.BfOid != nil {
			candidates, err = b.batchGet(ctx, *f.BfOid, q.BfGids)
		} else {
			candidates, err = b.GetItemsByBfGid(ctx, q.BfGids)
		}
		if err != nil {
			return nil, err
		}
		return abstractions.ApplyQuery(candidates, q), nil
	}

	if f.BfOid == nil {
		candidates, err := b.scan(ctx, q)
		if err != nil {
			return nil, err
		}
		return abstractions.ApplyQuery(candidates, q), nil
	}

	var index, partition string
	var keyName string
	switch {
	case f.BfSid != nil:
		index, keyName, partition = b.cfg.SourceIndex, attrGSI2PK, sourcePK(*f.BfOid, *f.BfSid)
	case f.BfTid != nil:
		index, keyName, partition = b.cfg.TargetIndex, attrGSI3PK, targetPK(*f.BfOid, *f.BfTid)
	default:
		index, keyName, partition = b.cfg.SortIndex, attrPK, orgPK(*f.BfOid)
	}

	candidates, err := b.query(ctx, q, index, keyName, partition)
	if err != nil {
		return nil, err
	}
	return abstractions.ApplyQuery(candidates, q), nil
}

// query pages through one partition of an index in sort order. It stops
// early once the limit is covered and no later item can share the sort
// value of the last match.
func (b *Backend) query(ctx context.Context, q ports.ItemQuery, index, keyName, partition string) ([]entities.Item, error) {
	keyCond := expression.Key(keyName).Equal(expression.Value(partition))
	if bound, ok := sortValueCondition(q); ok {
		keyCond = keyCond.And(bound)
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter, ok := metadataFilterExpression(q.Metadata); ok {
		builder = builder.WithFilter(filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build expression", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(b.cfg.TableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!q.Descending()),
	}

	var out []entities.Item
	var boundary *int64
	matched := 0
	for {
		result, err := b.client.Query(ctx, input)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query items", err)
		}

		done := false
		for _, av := range result.Items {
			item, err := unmarshalItem(av)
			if err != nil {
				b.logger.Warn("Failed to parse item", zap.Error(err))
				continue
			}
			if boundary != nil && item.Metadata.SortValue != *boundary {
				done = true
				break
			}
			out = append(out, item)
			if !q.Matches(item) {
				continue
			}
			matched++
			if q.Limit > 0 && matched >= q.Limit && boundary == nil {
				boundary = ports.Ptr(item.Metadata.SortValue)
			}
		}

		if done || result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	b.logger.Debug("Queried items",
		zap.String("index", index),
		zap.String("partition", partition),
		zap.Int("count", len(out)),
	)
	return out, nil
}

// sortValueCondition narrows the key range to the query's bounds. The
// bounds are inclusive on sort value; ties are settled by q.Matches.
func sortValueCondition(q ports.ItemQuery) (expression.KeyConditionBuilder, bool) {
	lo, hi := q.Cursor, q.Until
	if q.Descending() {
		lo, hi = hi, lo
	}
	key := expression.Key(attrSortValue)
	switch {
	case lo != nil && hi != nil:
		return key.Between(expression.Value(lo.SortValue), expression.Value(hi.SortValue)), true
	case lo != nil:
		return key.GreaterThanEqual(expression.Value(lo.SortValue)), true
	case hi != nil:
		return key.LessThanEqual(expression.Value(hi.SortValue)), true
	}
	return expression.KeyConditionBuilder{}, false
}

// scan reads the whole table; used only for queries without an org
func (b *Backend) scan(ctx context.Context, q ports.ItemQuery) ([]entities.Item, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(b.cfg.TableName)}
	if filter, ok := metadataFilterExpression(q.Metadata); ok {
		expr, err := expression.NewBuilder().WithFilter(filter).Build()
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("build expression", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	b.logger.Warn("Scanning table for query without organisation")

	var out []entities.Item
	paginator := dynamodb.NewScanPaginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("scan items", err)
		}
		for _, av := range page.Items {
			item, err := unmarshalItem(av)
			if err != nil {
				b.logger.Warn("Failed to parse item", zap.Error(err))
				continue
			}
			out = append(out, item)
		}
	}
	return out, nil
}

// batchGet reads items of one org in chunks of batchGetLimit keys
func (b *Backend) batchGet(ctx context.Context, oid valueobjects.BfGid, gids []valueobjects.BfGid) ([]entities.Item, error) {
	var out []entities.Item
	seen := make(map[valueobjects.BfGid]struct{}, len(gids))

	for start := 0; start < len(gids); start += batchGetLimit {
		end := min(start+batchGetLimit, len(gids))

		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, gid := range gids[start:end] {
			if _, dup := seen[gid]; dup {
				continue
			}
			seen[gid] = struct{}{}
			keys = append(keys, primaryKey(oid, gid))
		}

		request := map[string]types.KeysAndAttributes{
			b.cfg.TableName: {Keys: keys, ConsistentRead: aws.Bool(true)},
		}
		for round := 0; len(request) > 0; round++ {
			if round == maxUnprocessedRounds {
				return nil, pkgerrors.NewDatabaseError("batch get items",
					fmt.Errorf("keys still unprocessed after %d rounds", maxUnprocessedRounds))
			}

			result, err := b.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("batch get items", err)
			}
			for _, av := range result.Responses[b.cfg.TableName] {
				item, err := unmarshalItem(av)
				if err != nil {
					b.logger.Warn("Failed to parse item", zap.Error(err))
					continue
				}
				out = append(out, item)
			}
			request = result.UnprocessedKeys
		}
	}
	return out, nil
}

// metadataFilterExpression pushes the non-key metadata filters down to
// DynamoDB. Key fields and props are matched in memory.
func metadataFilterExpression(f ports.MetadataFilter) (expression.ConditionBuilder, bool) {
	var conds []expression.ConditionBuilder
	add := func(path string, v *string) {
		if v != nil {
			conds = append(conds, expression.Name(path).Equal(expression.Value(*v)))
		}
	}
	add("metadata.className", f.ClassName)
	add("metadata.bfSClassName", f.BfSClassName)
	add("metadata.bfTClassName", f.BfTClassName)
	if f.BfCid != nil {
		conds = append(conds, expression.Name("metadata.bfCid").Equal(expression.Value(f.BfCid.String())))
	}

	switch len(conds) {
	case 0:
		return expression.ConditionBuilder{}, false
	case 1:
		return conds[0], true
	default:
		return expression.And(conds[0], conds[1], conds[2:]...), true
	}
}

// QueryAncestorsByClassName walks edges backwards through the target index
func (b *Backend) QueryAncestorsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	return abstractions.TraverseByClassName(ctx, b, oid, gid, className, depth, abstractions.Backward)
}

// QueryDescendantsByClassName walks edges forwards through the source index
func (b *Backend) QueryDescendantsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	return abstractions.TraverseByClassName(ctx, b, oid, gid, className, depth, abstractions.Forward)
}
