package dynamodb

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is an in-memory table that understands the queries and the conditional put that Store
// uses. Query results are split into pages of queryPageSize items so that pagination is exercised.
type fakeClient struct {
	items         map[namespaceAndKey]map[string]types.AttributeValue
	batchSizes    []int
	queryPageSize int
	lock          sync.Mutex
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[namespaceAndKey]map[string]types.AttributeValue), queryPageSize: 3}
}

func itemID(av map[string]types.AttributeValue) namespaceAndKey {
	namespace, _ := stringAttr(av, tablePartitionKey)
	key, _ := stringAttr(av, tableSortKey)
	return namespaceAndKey{namespace: namespace, key: key}
}

func (f *fakeClient) GetItem(
	ctx context.Context,
	params *dynamodb.GetItemInput,
	optFns ...func(*dynamodb.Options),
) (*dynamodb.GetItemOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemID(params.Key)]}, nil
}

func (f *fakeClient) PutItem(
	ctx context.Context,
	params *dynamodb.PutItemInput,
	optFns ...func(*dynamodb.Options),
) (*dynamodb.PutItemOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	id := itemID(params.Item)
	if params.ConditionExpression != nil {
		if old, ok := f.items[id]; ok {
			oldVersion, _ := strconv.Atoi(old[versionAttribute].(*types.AttributeValueMemberN).Value)
			newVersion, _ := strconv.Atoi(params.ExpressionAttributeValues[":version"].(*types.AttributeValueMemberN).Value)
			if newVersion <= oldVersion {
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
			}
		}
	}
	f.items[id] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) BatchWriteItem(
	ctx context.Context,
	params *dynamodb.BatchWriteItemInput,
	optFns ...func(*dynamodb.Options),
) (*dynamodb.BatchWriteItemOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, requests := range params.RequestItems {
		f.batchSizes = append(f.batchSizes, len(requests))
		for _, r := range requests {
			if r.PutRequest != nil {
				f.items[itemID(r.PutRequest.Item)] = r.PutRequest.Item
			}
			if r.DeleteRequest != nil {
				delete(f.items, itemID(r.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (f *fakeClient) Query(
	ctx context.Context,
	params *dynamodb.QueryInput,
	optFns ...func(*dynamodb.Options),
) (*dynamodb.QueryOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	namespace := params.ExpressionAttributeValues[":namespace"].(*types.AttributeValueMemberS).Value
	var ids []namespaceAndKey
	for id := range f.items {
		if id.namespace == namespace {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].key < ids[j].key })

	start := 0
	if params.ExclusiveStartKey != nil {
		startAfter := itemID(params.ExclusiveStartKey).key
		for start < len(ids) && ids[start].key <= startAfter {
			start++
		}
	}
	end := start + f.queryPageSize
	if end > len(ids) {
		end = len(ids)
	}
	out := &dynamodb.QueryOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, f.items[id])
	}
	if end < len(ids) {
		out.LastEvaluatedKey = makeKey(ids[end-1].namespace, ids[end-1].key)
	}
	return out, nil
}

func (f *fakeClient) clearPrefix(prefix string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for id := range f.items {
		if len(id.namespace) > len(prefix) && id.namespace[:len(prefix)+1] == prefix+":" {
			delete(f.items, id)
		}
	}
}
