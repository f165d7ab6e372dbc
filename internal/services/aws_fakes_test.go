package services

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	lambdaclient "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 keeps objects in memory, keyed by bucket/key
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	f.objects[id] = body
	f.types[id] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String(`"fake-etag"`)}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fakeDynamo stores items by PK and answers RunsKey queries newest first
type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]map[string]ddbtypes.AttributeValue
	putErr  error
	lastPut *dynamodb.PutItemInput
	queries []*dynamodb.QueryInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]ddbtypes.AttributeValue{}}
}

func stringAttr(item map[string]ddbtypes.AttributeValue, name string) string {
	if v, ok := item[name].(*ddbtypes.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[stringAttr(params.Item, "PK")] = params.Item
	f.lastPut = params
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[stringAttr(params.Key, "PK")]}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, params)

	runsKey := stringAttr(params.ExpressionAttributeValues, ":runsKey")
	var matched []map[string]ddbtypes.AttributeValue
	for _, item := range f.items {
		if stringAttr(item, "RunsKey") == runsKey {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return stringAttr(matched[i], "StartedAt") > stringAttr(matched[j], "StartedAt")
	})
	if params.Limit != nil && int(*params.Limit) < len(matched) {
		matched = matched[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: matched}, nil
}

// fakeLambda records invocations
type fakeLambda struct {
	mu     sync.Mutex
	inputs []*lambdaclient.InvokeInput
	err    error
}

func (f *fakeLambda) Invoke(ctx context.Context, params *lambdaclient.InvokeInput, optFns ...func(*lambdaclient.Options)) (*lambdaclient.InvokeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &lambdaclient.InvokeOutput{StatusCode: 202}, nil
}
