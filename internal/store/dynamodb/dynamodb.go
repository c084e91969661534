package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/store"
)

const (
	attrSourceSystem = "sourceSystem"
	attrSortKey      = "sk"
	attrGSI1PK       = "gsi1pk"
	attrGSI1SK       = "gsi1sk"
)

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func WithRegion(region string) Option {
	return func(s *Store) {
		s.Region = region
	}
}

func WithEndpoint(endpoint string) Option {
	return func(s *Store) {
		s.Endpoint = endpoint
	}
}

func WithClient(client dynamodbiface.DynamoDBAPI) Option {
	return func(s *Store) {
		s.client = client
	}
}

// Store keeps catalog records in a DynamoDB table whose hash/range key is
// (sourceSystem, sk), with a global secondary index GSI1 on (gsi1pk, gsi1sk).
type Store struct {
	logger *zap.Logger
	client dynamodbiface.DynamoDBAPI

	Table    string
	Region   string
	Endpoint string
}

func New(table string, opts ...Option) (*Store, error) {
	s := &Store{
		Table:  table,
		logger: zap.NewNop(),
	}

	for _, o := range opts {
		o(s)
	}

	if s.client != nil {
		return s, nil
	}

	awsConfig := &aws.Config{}
	if s.Region != "" {
		awsConfig.Region = aws.String(s.Region)
	}
	if s.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	s.client = dynamodb.New(sess)

	return s, nil
}

func (s *Store) Put(ctx context.Context, r catalog.Record) error {
	item, err := dynamodbattribute.MarshalMap(r)
	if err != nil {
		return catalog.ErrStoreWrite.Wrap(err)
	}

	s.logger.Debug("put item",
		zap.String("table", s.Table),
		zap.String("source_system", r.SourceSystem),
		zap.String("sk", r.SortKey),
	)

	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item:      item,
	})
	if err != nil {
		return catalog.ErrStoreWrite.Wrap(err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q store.Query) (store.Result, error) {
	out, err := s.client.QueryWithContext(ctx, queryInput(s.Table, q))
	if err != nil {
		return store.Result{}, catalog.ErrStoreRead.Wrap(err)
	}

	records := make([]catalog.Record, 0, len(out.Items))
	if err := dynamodbattribute.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return store.Result{}, catalog.ErrStoreRead.Wrap(err)
	}

	// A LastEvaluatedKey also means the 1MB page cap cut the result short.
	res := store.Result{
		Records:   records,
		Truncated: len(out.LastEvaluatedKey) > 0,
	}
	if q.Limit > 0 && len(records) > q.Limit {
		res.Records = records[:q.Limit]
		res.Truncated = true
	}
	return res, nil
}

func queryInput(table string, q store.Query) *dynamodb.QueryInput {
	pk, sk := attrSourceSystem, attrSortKey
	if q.Index == store.SecondaryIndex {
		pk, sk = attrGSI1PK, attrGSI1SK
	}

	expr := "#pk = :pk"
	names := map[string]*string{
		"#pk": aws.String(pk),
	}
	values := map[string]*dynamodb.AttributeValue{
		":pk": {S: aws.String(q.PartitionKey)},
	}

	if q.Range != nil {
		expr += " AND #sk BETWEEN :lower AND :upper"
		names["#sk"] = aws.String(sk)
		values[":lower"] = &dynamodb.AttributeValue{S: aws.String(q.Range.Lower)}
		values[":upper"] = &dynamodb.AttributeValue{S: aws.String(q.Range.Upper)}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(!q.Descending),
	}
	if q.Index != store.PrimaryIndex {
		input.IndexName = aws.String(string(q.Index))
	}
	if q.Limit > 0 {
		// one extra item tells a full page from a truncated one
		input.Limit = aws.Int64(int64(q.Limit) + 1)
	}
	return input
}

// Migrate creates the table and GSI1 when they do not exist yet and waits
// for the table to become active.
func (s *Store) Migrate(ctx context.Context) error {
	stringAttr := func(name string) *dynamodb.AttributeDefinition {
		return &dynamodb.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
		}
	}
	keySchema := func(hash, rng string) []*dynamodb.KeySchemaElement {
		return []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String(hash), KeyType: aws.String(dynamodb.KeyTypeHash)},
			{AttributeName: aws.String(rng), KeyType: aws.String(dynamodb.KeyTypeRange)},
		}
	}

	_, err := s.client.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(s.Table),
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			stringAttr(attrSourceSystem),
			stringAttr(attrSortKey),
			stringAttr(attrGSI1PK),
			stringAttr(attrGSI1SK),
		},
		KeySchema: keySchema(attrSourceSystem, attrSortKey),
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			{
				IndexName:  aws.String(string(store.SecondaryIndex)),
				KeySchema:  keySchema(attrGSI1PK, attrGSI1SK),
				Projection: &dynamodb.Projection{ProjectionType: aws.String(dynamodb.ProjectionTypeAll)},
			},
		},
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeResourceInUseException {
			s.logger.Info("table already exists", zap.String("table", s.Table))
			return nil
		}
		return fmt.Errorf("creating table %q: %w", s.Table, err)
	}

	s.logger.Info("table created, waiting until active", zap.String("table", s.Table))
	return s.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.Table),
	})
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}
