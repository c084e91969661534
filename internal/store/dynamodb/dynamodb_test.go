package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/store"
)

type fakeClient struct {
	dynamodbiface.DynamoDBAPI

	puts     []*dynamodb.PutItemInput
	queries  []*dynamodb.QueryInput
	queryOut *dynamodb.QueryOutput
	err      error
}

func (f *fakeClient) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, f.err
}

func (f *fakeClient) QueryWithContext(ctx aws.Context, in *dynamodb.QueryInput, _ ...request.Option) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.queryOut, nil
}

var testRecord = catalog.Record{
	SourceSystem:     "crm",
	SortKey:          "2024-01-15T10:00:00Z#a.csv",
	SecondaryPartKey: "bucket1",
	SecondarySortKey: "2024-01-15T10:00:00Z#crm#a.csv",
	Container:        "bucket1",
	ObjectKey:        "a.csv",
	Locator:          "s3://bucket1/a.csv",
	IngestedAt:       "2024-01-15T10:00:00Z",
	SizeBytes:        42,
	ETag:             "abc",
	ContentType:      "text/csv",
	Status:           catalog.StatusIngested,
}

func TestStorePut(t *testing.T) {
	client := &fakeClient{}
	s, err := New("catalog", WithClient(client))
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), testRecord))
	require.Len(t, client.puts, 1)

	in := client.puts[0]
	assert.Equal(t, "catalog", aws.StringValue(in.TableName))
	assert.Equal(t, "crm", aws.StringValue(in.Item["sourceSystem"].S))
	assert.Equal(t, "2024-01-15T10:00:00Z#a.csv", aws.StringValue(in.Item["sk"].S))
	assert.Equal(t, "bucket1", aws.StringValue(in.Item["gsi1pk"].S))
	assert.Equal(t, "2024-01-15T10:00:00Z#crm#a.csv", aws.StringValue(in.Item["gsi1sk"].S))
	assert.Equal(t, "42", aws.StringValue(in.Item["sizeBytes"].N))
	assert.Equal(t, "INGESTED", aws.StringValue(in.Item["status"].S))

	t.Run("failure is a store write error", func(t *testing.T) {
		client := &fakeClient{err: errors.New("throttled")}
		s, err := New("catalog", WithClient(client))
		require.NoError(t, err)

		err = s.Put(context.Background(), testRecord)
		assert.True(t, catalog.ErrStoreWrite.Has(err))
	})
}

func TestStoreQuery(t *testing.T) {
	item, err := dynamodbattribute.MarshalMap(testRecord)
	require.NoError(t, err)

	t.Run("primary descending", func(t *testing.T) {
		client := &fakeClient{queryOut: &dynamodb.QueryOutput{Items: []map[string]*dynamodb.AttributeValue{item}}}
		s, err := New("catalog", WithClient(client))
		require.NoError(t, err)

		res, err := s.Query(context.Background(), store.Query{PartitionKey: "crm", Descending: true})
		require.NoError(t, err)
		assert.Equal(t, []catalog.Record{testRecord}, res.Records)
		assert.False(t, res.Truncated)

		in := client.queries[0]
		assert.Nil(t, in.IndexName)
		assert.Equal(t, "#pk = :pk", aws.StringValue(in.KeyConditionExpression))
		assert.Equal(t, "sourceSystem", aws.StringValue(in.ExpressionAttributeNames["#pk"]))
		assert.Equal(t, "crm", aws.StringValue(in.ExpressionAttributeValues[":pk"].S))
		assert.False(t, aws.BoolValue(in.ScanIndexForward))
	})

	t.Run("secondary range", func(t *testing.T) {
		client := &fakeClient{queryOut: &dynamodb.QueryOutput{
			LastEvaluatedKey: map[string]*dynamodb.AttributeValue{"sk": {S: aws.String("x")}},
		}}
		s, err := New("catalog", WithClient(client))
		require.NoError(t, err)

		res, err := s.Query(context.Background(), store.Query{
			Index:        store.SecondaryIndex,
			PartitionKey: "bucket1",
			Range:        &store.KeyRange{Lower: "2024-01-01T00:00:00Z#", Upper: "2024-01-31T23:59:59Z~"},
			Limit:        100,
		})
		require.NoError(t, err)
		assert.Empty(t, res.Records)
		assert.True(t, res.Truncated)

		in := client.queries[0]
		assert.Equal(t, "GSI1", aws.StringValue(in.IndexName))
		assert.Equal(t, "#pk = :pk AND #sk BETWEEN :lower AND :upper", aws.StringValue(in.KeyConditionExpression))
		assert.Equal(t, "gsi1pk", aws.StringValue(in.ExpressionAttributeNames["#pk"]))
		assert.Equal(t, "gsi1sk", aws.StringValue(in.ExpressionAttributeNames["#sk"]))
		assert.Equal(t, "2024-01-01T00:00:00Z#", aws.StringValue(in.ExpressionAttributeValues[":lower"].S))
		assert.Equal(t, "2024-01-31T23:59:59Z~", aws.StringValue(in.ExpressionAttributeValues[":upper"].S))
		assert.True(t, aws.BoolValue(in.ScanIndexForward))
		assert.Equal(t, int64(101), aws.Int64Value(in.Limit))
	})

	t.Run("limit", func(t *testing.T) {
		other := testRecord
		other.SortKey = "2024-01-16T00:00:00Z#b.csv"
		otherItem, err := dynamodbattribute.MarshalMap(other)
		require.NoError(t, err)

		// exactly Limit matches: DynamoDB stops without reaching Limit+1
		client := &fakeClient{queryOut: &dynamodb.QueryOutput{
			Items: []map[string]*dynamodb.AttributeValue{item, otherItem},
		}}
		s, err := New("catalog", WithClient(client))
		require.NoError(t, err)

		res, err := s.Query(context.Background(), store.Query{PartitionKey: "crm", Limit: 2})
		require.NoError(t, err)
		assert.Len(t, res.Records, 2)
		assert.False(t, res.Truncated)
		assert.Equal(t, int64(3), aws.Int64Value(client.queries[0].Limit))

		// more than Limit matches: the extra item is dropped
		client = &fakeClient{queryOut: &dynamodb.QueryOutput{
			Items:            []map[string]*dynamodb.AttributeValue{item, otherItem},
			LastEvaluatedKey: otherItem,
		}}
		s, err = New("catalog", WithClient(client))
		require.NoError(t, err)

		res, err = s.Query(context.Background(), store.Query{PartitionKey: "crm", Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []catalog.Record{testRecord}, res.Records)
		assert.True(t, res.Truncated)
	})

	t.Run("failure is a store read error", func(t *testing.T) {
		client := &fakeClient{err: errors.New("unavailable")}
		s, err := New("catalog", WithClient(client))
		require.NoError(t, err)

		_, err = s.Query(context.Background(), store.Query{PartitionKey: "crm"})
		assert.True(t, catalog.ErrStoreRead.Has(err))
	})
}
