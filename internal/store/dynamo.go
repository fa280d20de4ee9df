package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/ignite/content-signals/internal/config"
)

// attrPrefix marks indexed attributes stored as top-level item attributes.
const attrPrefix = "attr_"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoItem is the stored item shape. Indexed attributes are added next to
// these fields with the attr_ prefix.
type DynamoItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
}

// DynamoStore stores every collection in one DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// NewDynamoStore wraps an existing client.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// LoadAWSConfig resolves AWS credentials from static keys, a shared profile
// or the default chain, in that order.
func LoadAWSConfig(ctx context.Context, region, profile, accessKey, secretKey string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	switch {
	case accessKey != "" && secretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	case profile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// NewDynamoStoreFromConfig builds a client from storage settings.
func NewDynamoStoreFromConfig(ctx context.Context, cfg config.StorageConfig) (*DynamoStore, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSProfile, cfg.AccessKeyID, cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	return NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable), nil
}

// Get returns the document stored under key.
func (s *DynamoStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: collection},
			"SK": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s from DynamoDB: %w", collection, key, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return decodeItem(out.Item)
}

// Add stores doc under a new UUID key.
func (s *DynamoStore) Add(ctx context.Context, collection string, doc Document) (string, error) {
	doc.Key = uuid.NewString()
	if err := s.Set(ctx, collection, doc); err != nil {
		return "", err
	}
	return doc.Key, nil
}

// Set writes doc under doc.Key.
func (s *DynamoStore) Set(ctx context.Context, collection string, doc Document) error {
	if doc.Key == "" {
		return fmt.Errorf("set %s: empty key", collection)
	}
	item, err := encodeItem(collection, doc)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("putting %s/%s to DynamoDB: %w", collection, doc.Key, err)
	}
	return nil
}

// Stream queries the collection partition page by page.
func (s *DynamoStore) Stream(ctx context.Context, collection string, filters []Filter, fn func(Document) error) error {
	p := dynamodb.NewQueryPaginator(s.client, buildQuery(s.tableName, collection, filters))
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("querying %s from DynamoDB: %w", collection, err)
		}
		for _, item := range page.Items {
			doc, err := decodeItem(item)
			if err != nil {
				return err
			}
			if !matchAll(filters, doc.Attrs) {
				continue
			}
			if err := fn(*doc); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes a document.
func (s *DynamoStore) Delete(ctx context.Context, collection, key string) error {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: collection},
			"SK": &types.AttributeValueMemberS{Value: key},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("deleting %s/%s from DynamoDB: %w", collection, key, err)
	}
	if len(out.Attributes) == 0 {
		return ErrNotFound
	}
	return nil
}

func buildQuery(table, collection string, filters []Filter) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: collection},
		},
	}
	if len(filters) == 0 {
		return in
	}

	in.ExpressionAttributeNames = make(map[string]string, len(filters))
	clauses := make([]string, 0, len(filters))
	for i, f := range filters {
		name := fmt.Sprintf("#f%d", i)
		value := fmt.Sprintf(":f%d", i)
		op := f.Op
		if op != OpGTE && op != OpLTE {
			op = OpEq
		}
		in.ExpressionAttributeNames[name] = attrPrefix + f.Field
		in.ExpressionAttributeValues[value] = &types.AttributeValueMemberS{Value: f.Value}
		clauses = append(clauses, fmt.Sprintf("%s %s %s", name, op, value))
	}
	in.FilterExpression = aws.String(strings.Join(clauses, " AND "))
	return in
}

func encodeItem(collection string, doc Document) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(DynamoItem{
		PK:        collection,
		SK:        doc.Key,
		Data:      string(doc.Data),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling item: %w", err)
	}
	for k, v := range doc.Attrs {
		av[attrPrefix+k] = &types.AttributeValueMemberS{Value: v}
	}
	return av, nil
}

func decodeItem(item map[string]types.AttributeValue) (*Document, error) {
	var it DynamoItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}
	doc := &Document{Key: it.SK, Data: []byte(it.Data)}
	for k, v := range item {
		s, ok := v.(*types.AttributeValueMemberS)
		if !ok || !strings.HasPrefix(k, attrPrefix) {
			continue
		}
		if doc.Attrs == nil {
			doc.Attrs = make(map[string]string)
		}
		doc.Attrs[strings.TrimPrefix(k, attrPrefix)] = s.Value
	}
	return doc, nil
}
