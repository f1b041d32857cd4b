package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DDBClient is the interface for DynamoDB operations the registry needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Registry mirrors run documents into DynamoDB so runs from many machines can
// be queried centrally. The blobstore stays the source of truth; the registry
// is an index.
//
// Table schema:
//   - Partition key: project (string)
//   - Sort key: run_id (number)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name weightpress-runs \
//	  --attribute-definitions AttributeName=project,AttributeType=S AttributeName=run_id,AttributeType=N \
//	  --key-schema AttributeName=project,KeyType=HASH AttributeName=run_id,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Registry struct {
	client  DDBClient
	table   string
	project string
}

// NewRegistry creates a registry for one project's runs.
func NewRegistry(client DDBClient, table, project string) *Registry {
	return &Registry{
		client:  client,
		table:   table,
		project: project,
	}
}

// Put registers a run.
func (r *Registry) Put(ctx context.Context, run *Run) error {
	item, err := attributevalue.MarshalMap(run)
	if err != nil {
		return fmt.Errorf("manifest: failed to marshal run: %w", err)
	}
	item["project"] = &types.AttributeValueMemberS{Value: r.project}
	item["run_id"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", run.ID)}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	return err
}

// Get fetches a run by ID.
func (r *Registry) Get(ctx context.Context, id uint64) (*Run, error) {
	resp, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"project": &types.AttributeValueMemberS{Value: r.project},
			"run_id":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", id)},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Item) == 0 {
		return nil, ErrNotFound
	}

	return unmarshalRun(resp.Item)
}

// Latest returns the most recent registered run.
func (r *Registry) Latest(ctx context.Context) (*Run, error) {
	resp, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("project = :p"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: r.project},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, ErrNotFound
	}

	return unmarshalRun(resp.Items[0])
}

func unmarshalRun(item map[string]types.AttributeValue) (*Run, error) {
	run := &Run{}
	if err := attributevalue.UnmarshalMap(item, run); err != nil {
		return nil, fmt.Errorf("manifest: failed to unmarshal run: %w", err)
	}
	if run.ID == 0 {
		return nil, errors.New("manifest: registry item missing run data")
	}
	return run, nil
}
