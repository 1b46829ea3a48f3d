package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAPI implements API with overridable hooks; unset hooks panic through
// the embedded nil interface
type stubAPI struct {
	API
	getItem    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	query      func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	deleteItem func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	updateItem func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	transact   func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
}

func (s *stubAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return s.getItem(in)
}

func (s *stubAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return s.query(in)
}

func (s *stubAPI) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return s.deleteItem(in)
}

func (s *stubAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return s.updateItem(in)
}

func (s *stubAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return s.transact(in)
}

var testTables = Tables{
	ToolServers:   "ToolServers",
	Clients:       "ClientApps",
	Users:         "Users",
	Registrations: "BuildRegistrations",
	UniqueKeys:    "UniqueKeys",
}

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func TestCreateToolServerDuplicateName(t *testing.T) {
	var got *dynamodb.TransactWriteItemsInput
	api := &stubAPI{transact: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
		got = in
		return nil, cancelled("None", "ConditionalCheckFailed")
	}}
	ops := NewToolServerOperations(NewClientWithAPI(api, testTables))

	err := ops.CreateToolServer(context.Background(), &models.ToolServer{Id: "s1", Name: "echo"})

	assert.ErrorIs(t, err, ErrAlreadyExists)
	require.Len(t, got.TransactItems, 2)
	assert.Equal(t, "UniqueKeys", aws.ToString(got.TransactItems[1].Put.TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "toolserver/name/echo"}, got.TransactItems[1].Put.Item[uniqueKeyAttr])
}

func TestUpdateToolServerSwapsNameOnlyWhenChanged(t *testing.T) {
	var calls [][]types.TransactWriteItem
	api := &stubAPI{transact: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
		calls = append(calls, in.TransactItems)
		return &dynamodb.TransactWriteItemsOutput{}, nil
	}}
	ops := NewToolServerOperations(NewClientWithAPI(api, testTables))
	server := &models.ToolServer{Id: "s1", Name: "echo", State: models.StateActive}

	require.NoError(t, ops.UpdateToolServer(context.Background(), server, "echo"))
	require.NoError(t, ops.UpdateToolServer(context.Background(), server, "old-echo"))

	require.Len(t, calls, 2)
	assert.Len(t, calls[0], 1)
	require.Len(t, calls[1], 3)
	assert.NotNil(t, calls[1][1].Delete)
	assert.NotNil(t, calls[1][2].Put)
}

func TestSoftDeleteMissingServer(t *testing.T) {
	api := &stubAPI{transact: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
		return nil, cancelled("ConditionalCheckFailed", "None")
	}}
	ops := NewToolServerOperations(NewClientWithAPI(api, testTables))

	err := ops.SoftDeleteToolServer(context.Background(), &models.ToolServer{Id: "s1", Name: "echo"}, time.Now())

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetClientByClientIdUsesConsistentReads(t *testing.T) {
	item, err := attributevalue.MarshalMap(toClientItem(&models.ClientApp{
		Id:        "c1",
		Name:      "app",
		ClientId:  "app_abc",
		State:     models.StateActive,
		RateLimit: models.RateLimit{Count: 1000, Period: "hour"},
		CreatedAt: time.Unix(1700000000, 0),
		UpdatedAt: time.Unix(1700000000, 0),
	}))
	require.NoError(t, err)

	api := &stubAPI{getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		assert.True(t, aws.ToBool(in.ConsistentRead))
		switch aws.ToString(in.TableName) {
		case "UniqueKeys":
			assert.Equal(t, &types.AttributeValueMemberS{Value: "client/client_id/app_abc"}, in.Key[uniqueKeyAttr])
			return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
				uniqueKeyAttr:   in.Key[uniqueKeyAttr],
				uniqueOwnerAttr: &types.AttributeValueMemberS{Value: "c1"},
			}}, nil
		case "ClientApps":
			return &dynamodb.GetItemOutput{Item: item}, nil
		}
		return nil, errors.New("unexpected table")
	}}
	ops := NewClientOperations(NewClientWithAPI(api, testTables))

	app, err := ops.GetClientByClientId(context.Background(), "app_abc")

	require.NoError(t, err)
	assert.Equal(t, "c1", app.Id)
	assert.Equal(t, "1000/hour", app.RateLimit.String())
	assert.Nil(t, app.LastAccessedAt)
}

func TestGetClientByUnknownClientId(t *testing.T) {
	api := &stubAPI{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{}, nil
	}}
	ops := NewClientOperations(NewClientWithAPI(api, testTables))

	_, err := ops.GetClientByClientId(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRotateAPIKeyConditionFailure(t *testing.T) {
	api := &stubAPI{updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		assert.Contains(t, aws.ToString(in.ConditionExpression), "ApiKeyHash = :old_hash")
		return nil, &types.ConditionalCheckFailedException{}
	}}
	ops := NewClientOperations(NewClientWithAPI(api, testTables))

	err := ops.RotateAPIKey(context.Background(), "c1", "old", "new", time.Now())

	assert.ErrorIs(t, err, ErrConditionFailed)
}

func registrationItems(t *testing.T, buildIds ...string) []map[string]types.AttributeValue {
	items := make([]map[string]types.AttributeValue, 0, len(buildIds))
	for i, buildId := range buildIds {
		item, err := attributevalue.MarshalMap(registrationItem{
			ServerId:       "s1",
			RegistrationId: "r" + string(rune('0'+i)),
			BuildId:        buildId,
			RegisteredAt:   1700000000,
		})
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}

func TestDeleteRegistrationRetriesAfterRace(t *testing.T) {
	queries := 0
	var deleted []string
	api := &stubAPI{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			queries++
			assert.True(t, aws.ToBool(in.ConsistentRead))
			if queries == 1 {
				return &dynamodb.QueryOutput{Items: registrationItems(t, "b1", "b1")}, nil
			}
			return &dynamodb.QueryOutput{Items: registrationItems(t, "b1", "b1")[1:]}, nil
		},
		deleteItem: func(in *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
			id := in.Key["RegistrationId"].(*types.AttributeValueMemberS).Value
			if id == "r0" {
				return nil, &types.ConditionalCheckFailedException{}
			}
			deleted = append(deleted, id)
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}
	ops := NewRegistrationOperations(NewClientWithAPI(api, testTables))

	reg, err := ops.DeleteRegistration(context.Background(), "s1", "b1")

	require.NoError(t, err)
	assert.Equal(t, "r1", reg.Id)
	assert.Equal(t, []string{"r1"}, deleted)
	assert.Equal(t, 2, queries)
}

func TestDeleteRegistrationNotFound(t *testing.T) {
	api := &stubAPI{query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		return &dynamodb.QueryOutput{}, nil
	}}
	ops := NewRegistrationOperations(NewClientWithAPI(api, testTables))

	_, err := ops.DeleteRegistration(context.Background(), "s1", "b1")

	assert.ErrorIs(t, err, ErrNotFound)
}
