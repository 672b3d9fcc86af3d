package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// tableWaitTimeout bounds how long Initialize waits for a new table
const tableWaitTimeout = 2 * time.Minute

// ensureTable creates the table and its indexes when missing
func (b *Backend) ensureTable(ctx context.Context) error {
	_, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(b.cfg.TableName),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return err
	}

	b.logger.Info("Creating table", zap.String("table", b.cfg.TableName))
	if _, err := b.client.CreateTable(ctx, b.createTableInput()); err != nil {
		return err
	}

	waiter := dynamodb.NewTableExistsWaiter(b.client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(b.cfg.TableName)}, tableWaitTimeout)
}

func (b *Backend) createTableInput() *dynamodb.CreateTableInput {
	hashKey := func(name string) types.KeySchemaElement {
		return types.KeySchemaElement{AttributeName: aws.String(name), KeyType: types.KeyTypeHash}
	}
	rangeKey := func(name string) types.KeySchemaElement {
		return types.KeySchemaElement{AttributeName: aws.String(name), KeyType: types.KeyTypeRange}
	}
	all := &types.Projection{ProjectionType: types.ProjectionTypeAll}

	return &dynamodb.CreateTableInput{
		TableName:   aws.String(b.cfg.TableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrGSI1PK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrGSI2PK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrGSI3PK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSortValue), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{hashKey(attrPK), rangeKey(attrSK)},
		LocalSecondaryIndexes: []types.LocalSecondaryIndex{
			{
				IndexName:  aws.String(b.cfg.SortIndex),
				KeySchema:  []types.KeySchemaElement{hashKey(attrPK), rangeKey(attrSortValue)},
				Projection: all,
			},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName:  aws.String(b.cfg.GidIndex),
				KeySchema:  []types.KeySchemaElement{hashKey(attrGSI1PK)},
				Projection: all,
			},
			{
				IndexName:  aws.String(b.cfg.SourceIndex),
				KeySchema:  []types.KeySchemaElement{hashKey(attrGSI2PK), rangeKey(attrSortValue)},
				Projection: all,
			},
			{
				IndexName:  aws.String(b.cfg.TargetIndex),
				KeySchema:  []types.KeySchemaElement{hashKey(attrGSI3PK), rangeKey(attrSortValue)},
				Projection: all,
			},
		},
	}
}
