package database

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imyashkale/mcpgateway/internal/models"
)

type userItem struct {
	Id           string `dynamodbav:"Id"`
	Username     string `dynamodbav:"Username"`
	PasswordHash string `dynamodbav:"PasswordHash"`
	Email        string `dynamodbav:"Email"`
	State        string `dynamodbav:"State"`
	CreatedAt    int64  `dynamodbav:"CreatedAt"`
}

// UserOperations handles all DynamoDB operations for users
type UserOperations struct {
	client    *Client
	tableName string
}

// NewUserOperations creates a new UserOperations instance
func NewUserOperations(client *Client) *UserOperations {
	return &UserOperations{
		client:    client,
		tableName: client.Tables.Users,
	}
}

func usernameKey(username string) string {
	return uniqueKey("user", "username", username)
}

// CreateUser stores a new user and claims its username
func (ops *UserOperations) CreateUser(ctx context.Context, user *models.User) error {
	av, err := attributevalue.MarshalMap(userItem{
		Id:           user.Id,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Email:        user.Email,
		State:        string(user.State),
		CreatedAt:    user.CreatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	return ops.client.transact(ctx,
		txOp{
			item: types.TransactWriteItem{Put: &types.Put{
				TableName:           aws.String(ops.tableName),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(Id)"),
			}},
			onFail: ErrAlreadyExists,
		},
		ops.client.claimUnique(usernameKey(user.Username), user.Id),
	)
}

// GetUser retrieves a user by ID
func (ops *UserOperations) GetUser(ctx context.Context, id string) (*models.User, error) {
	result, err := ops.client.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(ops.tableName),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var temp userItem
	if err := attributevalue.UnmarshalMap(result.Item, &temp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &models.User{
		Id:           temp.Id,
		Username:     temp.Username,
		PasswordHash: temp.PasswordHash,
		Email:        temp.Email,
		State:        models.LifecycleState(temp.State),
		CreatedAt:    time.Unix(temp.CreatedAt, 0).UTC(),
	}, nil
}

// GetUserByUsername resolves a username through its unique key
func (ops *UserOperations) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	id, err := ops.client.lookupOwner(ctx, usernameKey(username))
	if err != nil {
		return nil, err
	}
	return ops.GetUser(ctx, id)
}
