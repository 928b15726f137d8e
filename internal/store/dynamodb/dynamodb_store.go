// Package dynamodb contains a durable store implementation for DynamoDB.
//
// The table must have a string partition key named "namespace" and a string sort key named "key". Each
// item has the namespace "<prefix>:<kind>" (or just "<kind>" if there is no prefix), and its serialized
// form and version are stored in the "item" and "version" attributes. An item whose namespace and key
// are both "<prefix>:$inited" exists once the store has been initialized.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

const (
	tablePartitionKey = "namespace"
	tableSortKey      = "key"
	versionAttribute  = "version"
	itemJSONAttribute = "item"

	maxBatchWriteItems = 25
)

var errNoTableName = errors.New("DynamoDB table name is required") //nolint:stylecheck

// Options contains the parameters for a Store.
type Options struct {
	TableName string
	Prefix    string

	// Endpoint overrides the AWS service endpoint, for instance to use a local DynamoDB instance.
	Endpoint string
}

// Client is the subset of the DynamoDB API that Store uses. *dynamodb.Client implements it.
type Client interface {
	dynamodb.QueryAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(
		ctx context.Context,
		params *dynamodb.BatchWriteItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.BatchWriteItemOutput, error)
}

// Store is a DurableStore that uses DynamoDB.
type Store struct {
	client         Client
	table          string
	prefix         string
	context        context.Context
	cancelContext  context.CancelFunc
	loggers        ldlog.Loggers
	testUpdateHook func()
}

type namespaceAndKey struct {
	namespace string
	key       string
}

// NewStore creates a Store using the default AWS configuration sources (environment variables, shared
// config files, and instance metadata).
func NewStore(options Options, loggers ldlog.Loggers) (*Store, error) {
	if options.TableName == "" {
		return nil, errNoTableName
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("unable to configure DynamoDB client: %w", err)
	}
	var optFns []func(*dynamodb.Options)
	if options.Endpoint != "" {
		endpoint := options.Endpoint
		optFns = append(optFns, func(o *dynamodb.Options) {
			o.EndpointResolver = dynamodb.EndpointResolverFromURL(endpoint)
		})
	}
	return NewStoreWithClient(dynamodb.NewFromConfig(awsConfig, optFns...), options, loggers)
}

// NewStoreWithClient creates a Store that uses an existing client.
func NewStoreWithClient(client Client, options Options, loggers ldlog.Loggers) (*Store, error) {
	if options.TableName == "" {
		return nil, errNoTableName
	}
	ctx, cancel := context.WithCancel(context.Background())
	store := &Store{
		client:        client,
		table:         options.TableName,
		prefix:        options.Prefix,
		context:       ctx,
		cancelContext: cancel,
		loggers:       loggers,
	}
	store.loggers.SetPrefix("DynamoDBDataStore:")
	store.loggers.Infof("Using DynamoDB table %s", store.table)
	return store, nil
}

func (s *Store) Init(allData []st.SerializedCollection) error {
	unusedOldKeys, err := s.readExistingKeys(allData)
	if err != nil {
		return fmt.Errorf("failed to get existing items prior to Init: %w", err)
	}

	var requests []types.WriteRequest
	numItems := 0
	for _, coll := range allData {
		for _, item := range coll.Items {
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: s.encodeItem(coll.Kind, item.Key, item.Item)},
			})
			delete(unusedOldKeys, namespaceAndKey{namespace: s.namespaceForKind(coll.Kind), key: item.Key})
			numItems++
		}
	}
	for k := range unusedOldKeys {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: makeKey(k.namespace, k.key)},
		})
	}
	requests = append(requests, types.WriteRequest{
		PutRequest: &types.PutRequest{Item: makeKey(s.initedKey(), s.initedKey())},
	})

	if err := s.batchWriteRequests(requests); err != nil {
		return fmt.Errorf("failed to write %d item(s) in batches: %w", len(requests), err)
	}
	s.loggers.Infof("Initialized table %q with %d item(s)", s.table, numItems)
	return nil
}

func (s *Store) Get(kind st.DataKind, key string) (st.SerializedItemDescriptor, error) {
	result, err := s.client.GetItem(s.context, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
		Key:            makeKey(s.namespaceForKind(kind), key),
	})
	if err != nil {
		return st.SerializedItemDescriptor{}.NotFound(), fmt.Errorf("failed to get %s key %s: %w", kind.Name, key, err)
	}
	if len(result.Item) == 0 {
		if s.loggers.IsDebugEnabled() {
			s.loggers.Debugf("Item not found (key=%s)", key)
		}
		return st.SerializedItemDescriptor{}.NotFound(), nil
	}
	if _, item, ok := decodeItem(result.Item); ok {
		return item, nil
	}
	return st.SerializedItemDescriptor{}.NotFound(), fmt.Errorf("invalid data for %s key %s", kind.Name, key)
}

func (s *Store) GetAll(kind st.DataKind) ([]st.KeyedSerializedItemDescriptor, error) {
	var results []st.KeyedSerializedItemDescriptor
	paginator := dynamodb.NewQueryPaginator(s.client, s.makeQueryForKind(kind))
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(s.context)
		if err != nil {
			return nil, err
		}
		for _, av := range out.Items {
			if key, item, ok := decodeItem(av); ok {
				results = append(results, st.KeyedSerializedItemDescriptor{Key: key, Item: item})
			}
		}
	}
	return results, nil
}

func (s *Store) Upsert(kind st.DataKind, key string, newItem st.SerializedItemDescriptor) (bool, error) {
	if s.testUpdateHook != nil {
		s.testUpdateHook()
	}
	_, err := s.client.PutItem(s.context, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                s.encodeItem(kind, key, newItem),
		ConditionExpression: aws.String("attribute_not_exists(#namespace) or :version > #version"),
		ExpressionAttributeNames: map[string]string{
			"#namespace": tablePartitionKey,
			"#version":   versionAttribute,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":version": &types.AttributeValueMemberN{Value: strconv.Itoa(newItem.Version)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			if s.loggers.IsDebugEnabled() {
				s.loggers.Debugf("Not updating item due to condition (namespace=%s key=%s version=%d)",
					kind.Name, key, newItem.Version)
			}
			return false, nil
		}
		return false, fmt.Errorf("failed to put %s key %s: %w", kind.Name, key, err)
	}
	return true, nil
}

func (s *Store) IsInitialized() bool {
	result, err := s.getInitedItem()
	return err == nil && len(result.Item) != 0
}

func (s *Store) IsStoreAvailable() bool {
	_, err := s.getInitedItem()
	return err == nil
}

func (s *Store) Close() error {
	s.cancelContext()
	return nil
}

func (s *Store) getInitedItem() (*dynamodb.GetItemOutput, error) {
	return s.client.GetItem(s.context, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
		Key:            makeKey(s.initedKey(), s.initedKey()),
	})
}

func (s *Store) prefixedNamespace(base string) string {
	if s.prefix == "" {
		return base
	}
	return s.prefix + ":" + base
}

func (s *Store) namespaceForKind(kind st.DataKind) string {
	return s.prefixedNamespace(kind.Name)
}

func (s *Store) initedKey() string {
	return s.prefixedNamespace("$inited")
}

func (s *Store) makeQueryForKind(kind st.DataKind) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String("#namespace = :namespace"),
		ExpressionAttributeNames: map[string]string{
			"#namespace": tablePartitionKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":namespace": attrValueOfString(s.namespaceForKind(kind)),
		},
	}
}

func (s *Store) readExistingKeys(newData []st.SerializedCollection) (map[namespaceAndKey]struct{}, error) {
	keys := make(map[namespaceAndKey]struct{})
	for _, coll := range newData {
		query := s.makeQueryForKind(coll.Kind)
		query.ProjectionExpression = aws.String("#namespace, #key")
		query.ExpressionAttributeNames["#key"] = tableSortKey
		paginator := dynamodb.NewQueryPaginator(s.client, query)
		for paginator.HasMorePages() {
			out, err := paginator.NextPage(s.context)
			if err != nil {
				return nil, err
			}
			for _, av := range out.Items {
				namespace, _ := stringAttr(av, tablePartitionKey)
				key, _ := stringAttr(av, tableSortKey)
				keys[namespaceAndKey{namespace: namespace, key: key}] = struct{}{}
			}
		}
	}
	return keys, nil
}

func (s *Store) batchWriteRequests(requests []types.WriteRequest) error {
	for len(requests) > 0 {
		batchSize := len(requests)
		if batchSize > maxBatchWriteItems {
			batchSize = maxBatchWriteItems
		}
		batch := requests[:batchSize]
		requests = requests[batchSize:]
		_, err := s.client.BatchWriteItem(s.context, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: batch},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) encodeItem(kind st.DataKind, key string, item st.SerializedItemDescriptor) map[string]types.AttributeValue {
	av := makeKey(s.namespaceForKind(kind), key)
	av[versionAttribute] = &types.AttributeValueMemberN{Value: strconv.Itoa(item.Version)}
	av[itemJSONAttribute] = attrValueOfString(string(item.SerializedItem))
	return av
}

func decodeItem(av map[string]types.AttributeValue) (string, st.SerializedItemDescriptor, bool) {
	key, ok1 := stringAttr(av, tableSortKey)
	itemJSON, ok2 := stringAttr(av, itemJSONAttribute)
	versionValue, ok3 := av[versionAttribute].(*types.AttributeValueMemberN)
	if !ok1 || !ok2 || !ok3 {
		return "", st.SerializedItemDescriptor{}, false
	}
	version, _ := strconv.Atoi(versionValue.Value)
	_, deleted, _ := st.ReadVersionInfo([]byte(itemJSON))
	return key, st.SerializedItemDescriptor{Version: version, Deleted: deleted, SerializedItem: []byte(itemJSON)}, true
}

func makeKey(namespace, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		tablePartitionKey: attrValueOfString(namespace),
		tableSortKey:      attrValueOfString(key),
	}
}

func stringAttr(av map[string]types.AttributeValue, name string) (string, bool) {
	if s, ok := av[name].(*types.AttributeValueMemberS); ok {
		return s.Value, true
	}
	return "", false
}

func attrValueOfString(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}
