package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mparedes/chatstore/internal/domain"
	"github.com/mparedes/chatstore/internal/observability"
)

// Repository stores conversations in a DynamoDB table with a PK/SK
// composite key. The TTL attribute, when configured, carries the item
// expiry as epoch seconds for the table's TTL setting to act on.
type Repository struct {
	client  *dynamodb.Client
	table   string
	ttlAttr string
}

// NewRepository creates a DynamoDB-backed repository using the default
// AWS credential chain.
func NewRepository(ctx context.Context, table, region, ttlAttribute string) (*Repository, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is required for DynamoDB repository")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &Repository{
		client:  dynamodb.NewFromConfig(cfg),
		table:   table,
		ttlAttr: ttlAttribute,
	}, nil
}

func itemKey(primary, secondary string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: primary},
		"SK": &types.AttributeValueMemberS{Value: secondary},
	}
}

func (r *Repository) Get(ctx context.Context, primary, secondary string) ([]domain.Record, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       itemKey(primary, secondary),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get: %v: %w", err, domain.ErrStoreUnavailable)
	}

	av, ok := out.Item["conversation"]
	if !ok {
		return nil, nil
	}

	var conversation []domain.Record
	if err := attributevalue.Unmarshal(av, &conversation); err != nil {
		return nil, fmt.Errorf("dynamodb get decode: %v: %w", err, domain.ErrMalformedRecord)
	}
	return conversation, nil
}

func (r *Repository) Put(ctx context.Context, primary, secondary string, conversation []domain.Record, expiresAt time.Time) error {
	av, err := attributevalue.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("dynamodb put encode: %v: %w", err, domain.ErrMalformedRecord)
	}

	item := itemKey(primary, secondary)
	item["conversation"] = av
	if r.ttlAttr != "" && !expiresAt.IsZero() {
		item[r.ttlAttr] = &types.AttributeValueMemberN{
			Value: strconv.FormatInt(expiresAt.Unix(), 10),
		}
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put: %v: %w", err, domain.ErrStoreUnavailable)
	}
	return nil
}

func (r *Repository) QueryByPrefix(ctx context.Context, primary, secondaryPrefix string) ([]domain.Item, error) {
	var out []domain.Item
	var startKey map[string]types.AttributeValue

	for {
		resp, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.table),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: primary},
				":prefix": &types.AttributeValueMemberS{Value: secondaryPrefix},
			},
			// Only the fields the merge needs.
			ProjectionExpression: aws.String("SK, conversation"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb query: %v: %w", err, domain.ErrStoreUnavailable)
		}

		for _, item := range resp.Items {
			sk, ok := item["SK"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			av, ok := item["conversation"]
			if !ok {
				continue
			}

			var conversation []domain.Record
			if err := attributevalue.Unmarshal(av, &conversation); err != nil {
				observability.Logger().Error("skipping item with unexpected structure",
					"secondary_key", sk.Value,
					"error", err)
				continue
			}
			out = append(out, domain.Item{Secondary: sk.Value, Conversation: conversation})
		}

		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return out, nil
}
