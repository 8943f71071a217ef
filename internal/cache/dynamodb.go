package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the store.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error)
	PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error)
}

// dynamoItem is the table layout. ExpiresAt (unix milliseconds) decides
// visibility; TTL (unix seconds) is for the table's native expiry and only
// removes rows eventually.
type dynamoItem struct {
	Key       string `dynamodbav:"cache_key"`
	Value     string `dynamodbav:"value"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	TTL       int64  `dynamodbav:"ttl"`
}

// DynamoDB is a Store backed by a DynamoDB table with partition key
// "cache_key" (string).
type DynamoDB struct {
	client    DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDynamoDB returns a store over tableName.
func NewDynamoDB(client DynamoDBAPI, tableName string) *DynamoDB {
	return &DynamoDB{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// DialDynamoDB loads the default AWS configuration for region. endpoint, when
// it is an http(s) URL, overrides the service endpoint (DynamoDB Local).
func DialDynamoDB(ctx context.Context, region, endpoint, tableName string) (*DynamoDB, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := dyn.NewFromConfig(cfg, func(o *dyn.Options) {
		if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamoDB(client, tableName), nil
}

func (d *DynamoDB) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"cache_key": &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoDB) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := d.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &d.tableName,
		Key:            d.keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return "", false, nil
	}
	var it dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return "", false, fmt.Errorf("unmarshal item: %w", err)
	}
	if it.ExpiresAt <= d.nowFunc().UnixMilli() {
		return "", false, nil
	}
	return it.Value, true, nil
}

func (d *DynamoDB) item(key, value string, ttl time.Duration) (map[string]types.AttributeValue, error) {
	exp := d.nowFunc().Add(ttl)
	item, err := attributevalue.MarshalMap(dynamoItem{
		Key:       key,
		Value:     value,
		ExpiresAt: exp.UnixMilli(),
		TTL:       exp.Unix() + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return item, nil
}

func (d *DynamoDB) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := checkTTL(ttl); err != nil {
		return err
	}
	item, err := d.item(key, value, ttl)
	if err != nil {
		return err
	}
	if _, err := d.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &d.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// setNXCondition admits the write when no row exists or the stored row has
// expired but was not yet removed by the table TTL.
const setNXCondition = "attribute_not_exists(cache_key) OR expires_at <= :now"

func (d *DynamoDB) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := checkTTL(ttl); err != nil {
		return false, err
	}
	now := d.nowFunc()
	item, err := d.item(key, value, ttl)
	if err != nil {
		return false, err
	}
	_, err = d.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &d.tableName,
		Item:                item,
		ConditionExpression: aws.String(setNXCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Ping checks that the table exists and is reachable.
func (d *DynamoDB) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dyn.DescribeTableInput{TableName: &d.tableName})
	return err
}

func (d *DynamoDB) Close() error { return nil }
