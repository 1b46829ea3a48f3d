package database

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/models"
)

type clientItem struct {
	Id           string `dynamodbav:"Id"`
	Name         string `dynamodbav:"Name"`
	ClientId     string `dynamodbav:"ClientId"`
	APIKeyHash   string `dynamodbav:"ApiKeyHash"`
	Description  string `dynamodbav:"Description"`
	State        string `dynamodbav:"State"`
	RateLimit    string `dynamodbav:"RateLimit"`
	CreatedAt    int64  `dynamodbav:"CreatedAt"`
	UpdatedAt    int64  `dynamodbav:"UpdatedAt"`
	LastAccessed int64  `dynamodbav:"LastAccessedAt"`
}

// ClientOperations handles all DynamoDB operations for client applications
type ClientOperations struct {
	client    *Client
	tableName string
}

// NewClientOperations creates a new ClientOperations instance
func NewClientOperations(client *Client) *ClientOperations {
	return &ClientOperations{
		client:    client,
		tableName: client.Tables.Clients,
	}
}

func clientNameKey(name string) string {
	return uniqueKey("client", "name", name)
}

func clientIdKey(clientId string) string {
	return uniqueKey("client", "client_id", clientId)
}

// CreateClient stores a new client and claims its name and public client id
func (ops *ClientOperations) CreateClient(ctx context.Context, app *models.ClientApp) error {
	av, err := attributevalue.MarshalMap(toClientItem(app))
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}

	err = ops.client.transact(ctx,
		txOp{
			item: types.TransactWriteItem{Put: &types.Put{
				TableName:           aws.String(ops.tableName),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(Id)"),
			}},
			onFail: ErrAlreadyExists,
		},
		ops.client.claimUnique(clientNameKey(app.Name), app.Id),
		ops.client.claimUnique(clientIdKey(app.ClientId), app.Id),
	)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"id":        app.Id,
		"client_id": app.ClientId,
	}).Info("Client created successfully in DynamoDB")
	return nil
}

// GetClient retrieves a client by its internal ID with a strongly consistent read
func (ops *ClientOperations) GetClient(ctx context.Context, id string) (*models.ClientApp, error) {
	result, err := ops.client.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(ops.tableName),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	return unmarshalClient(result.Item)
}

// GetClientByClientId resolves the public client id through its unique key
func (ops *ClientOperations) GetClientByClientId(ctx context.Context, clientId string) (*models.ClientApp, error) {
	id, err := ops.client.lookupOwner(ctx, clientIdKey(clientId))
	if err != nil {
		return nil, err
	}
	return ops.GetClient(ctx, id)
}

// GetAllClients retrieves every client, including deleted ones
func (ops *ClientOperations) GetAllClients(ctx context.Context) ([]*models.ClientApp, error) {
	paginator := dynamodb.NewScanPaginator(ops.client.DynamoDB, &dynamodb.ScanInput{
		TableName: aws.String(ops.tableName),
	})

	var apps []*models.ClientApp
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clients: %w", err)
		}
		for _, item := range page.Items {
			app, err := unmarshalClient(item)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal client: %w", err)
			}
			apps = append(apps, app)
		}
	}

	return apps, nil
}

// UpdateClient writes the mutable attributes of a client. The key hash is
// never touched here so a concurrent rotation cannot be undone.
func (ops *ClientOperations) UpdateClient(ctx context.Context, app *models.ClientApp, previousName string) error {
	update := txOp{
		item: types.TransactWriteItem{Update: &types.Update{
			TableName: aws.String(ops.tableName),
			Key: map[string]types.AttributeValue{
				"Id": &types.AttributeValueMemberS{Value: app.Id},
			},
			UpdateExpression:    aws.String("SET #name = :name, Description = :desc, #state = :state, RateLimit = :rate_limit, UpdatedAt = :updated_at"),
			ConditionExpression: aws.String("attribute_exists(Id) AND #state <> :deleted"),
			ExpressionAttributeNames: map[string]string{
				"#name":  "Name",
				"#state": "State",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":name":       &types.AttributeValueMemberS{Value: app.Name},
				":desc":       &types.AttributeValueMemberS{Value: app.Description},
				":state":      &types.AttributeValueMemberS{Value: string(app.State)},
				":rate_limit": &types.AttributeValueMemberS{Value: app.RateLimit.String()},
				":updated_at": unixValue(app.UpdatedAt),
				":deleted":    &types.AttributeValueMemberS{Value: string(models.StateDeleted)},
			},
		}},
		onFail: ErrNotFound,
	}

	txOps := []txOp{update}
	if previousName != app.Name {
		txOps = append(txOps,
			ops.client.releaseUnique(clientNameKey(previousName), app.Id),
			ops.client.claimUnique(clientNameKey(app.Name), app.Id),
		)
	}

	return ops.client.transact(ctx, txOps...)
}

// SoftDeleteClient marks the client DELETED and releases its name. The
// client id stays claimed so it can never be reissued.
func (ops *ClientOperations) SoftDeleteClient(ctx context.Context, app *models.ClientApp, at time.Time) error {
	return ops.client.transact(ctx,
		txOp{
			item: types.TransactWriteItem{Update: &types.Update{
				TableName: aws.String(ops.tableName),
				Key: map[string]types.AttributeValue{
					"Id": &types.AttributeValueMemberS{Value: app.Id},
				},
				UpdateExpression:         aws.String("SET #state = :deleted, UpdatedAt = :updated_at"),
				ConditionExpression:      aws.String("attribute_exists(Id) AND #state <> :deleted"),
				ExpressionAttributeNames: map[string]string{"#state": "State"},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":deleted":    &types.AttributeValueMemberS{Value: string(models.StateDeleted)},
					":updated_at": unixValue(at),
				},
			}},
			onFail: ErrNotFound,
		},
		ops.client.releaseUnique(clientNameKey(app.Name), app.Id),
	)
}

// RotateAPIKey swaps the key hash in a single conditional write. It fails
// with ErrConditionFailed if the stored hash is no longer oldHash.
func (ops *ClientOperations) RotateAPIKey(ctx context.Context, id, oldHash, newHash string, at time.Time) error {
	_, err := ops.client.DynamoDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(ops.tableName),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:         aws.String("SET ApiKeyHash = :new_hash, UpdatedAt = :updated_at"),
		ConditionExpression:      aws.String("ApiKeyHash = :old_hash AND #state <> :deleted"),
		ExpressionAttributeNames: map[string]string{"#state": "State"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new_hash":   &types.AttributeValueMemberS{Value: newHash},
			":old_hash":   &types.AttributeValueMemberS{Value: oldHash},
			":updated_at": unixValue(at),
			":deleted":    &types.AttributeValueMemberS{Value: string(models.StateDeleted)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("failed to rotate client key: %w", err)
	}

	logger.WithField("id", id).Info("Client API key rotated in DynamoDB")
	return nil
}

// TouchLastAccessed sets only the last-accessed timestamp
func (ops *ClientOperations) TouchLastAccessed(ctx context.Context, id string, at time.Time) error {
	_, err := ops.client.DynamoDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(ops.tableName),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET LastAccessedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(Id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": unixValue(at),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update last accessed time: %w", err)
	}
	return nil
}

func toClientItem(app *models.ClientApp) clientItem {
	return clientItem{
		Id:           app.Id,
		Name:         app.Name,
		ClientId:     app.ClientId,
		APIKeyHash:   app.APIKeyHash,
		Description:  app.Description,
		State:        string(app.State),
		RateLimit:    app.RateLimit.String(),
		CreatedAt:    app.CreatedAt.Unix(),
		UpdatedAt:    app.UpdatedAt.Unix(),
		LastAccessed: unixOrZero(app.LastAccessedAt),
	}
}

func unmarshalClient(item map[string]types.AttributeValue) (*models.ClientApp, error) {
	var temp clientItem
	if err := attributevalue.UnmarshalMap(item, &temp); err != nil {
		return nil, err
	}

	app := &models.ClientApp{
		Id:             temp.Id,
		Name:           temp.Name,
		ClientId:       temp.ClientId,
		APIKeyHash:     temp.APIKeyHash,
		Description:    temp.Description,
		State:          models.LifecycleState(temp.State),
		CreatedAt:      time.Unix(temp.CreatedAt, 0).UTC(),
		UpdatedAt:      time.Unix(temp.UpdatedAt, 0).UTC(),
		LastAccessedAt: unixPtr(temp.LastAccessed),
	}

	if temp.RateLimit != "" {
		limit, err := models.ParseRateLimit(temp.RateLimit)
		if err != nil {
			return nil, err
		}
		app.RateLimit = limit
	}

	return app, nil
}
