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

// toolServerItem is the stored shape of a tool server. APIKey holds the
// sealed Layer-2 key exactly as handed in by the service layer.
type toolServerItem struct {
	Id              string                 `dynamodbav:"Id"`
	Name            string                 `dynamodbav:"Name"`
	Description     string                 `dynamodbav:"Description"`
	URL             string                 `dynamodbav:"ServerUrl"`
	APIKey          string                 `dynamodbav:"EncryptedApiKey"`
	Transport       string                 `dynamodbav:"Transport"`
	State           string                 `dynamodbav:"State"`
	Health          string                 `dynamodbav:"Health"`
	LastHealthCheck int64                  `dynamodbav:"LastHealthCheck"`
	Metadata        map[string]interface{} `dynamodbav:"Metadata,omitempty"`
	CreatedAt       int64                  `dynamodbav:"CreatedAt"`
	UpdatedAt       int64                  `dynamodbav:"UpdatedAt"`
}

// ToolServerOperations handles all DynamoDB operations for tool servers
type ToolServerOperations struct {
	client    *Client
	tableName string
}

// NewToolServerOperations creates a new ToolServerOperations instance
func NewToolServerOperations(client *Client) *ToolServerOperations {
	return &ToolServerOperations{
		client:    client,
		tableName: client.Tables.ToolServers,
	}
}

func toolServerNameKey(name string) string {
	return uniqueKey("toolserver", "name", name)
}

// CreateToolServer stores a new tool server and claims its name
func (ops *ToolServerOperations) CreateToolServer(ctx context.Context, server *models.ToolServer) error {
	av, err := attributevalue.MarshalMap(toToolServerItem(server))
	if err != nil {
		return fmt.Errorf("failed to marshal tool server: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"server_id": server.Id,
		"name":      server.Name,
	}).Debug("Creating tool server in DynamoDB")

	err = ops.client.transact(ctx,
		txOp{
			item: types.TransactWriteItem{Put: &types.Put{
				TableName:           aws.String(ops.tableName),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(Id)"),
			}},
			onFail: ErrAlreadyExists,
		},
		ops.client.claimUnique(toolServerNameKey(server.Name), server.Id),
	)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"server_id": server.Id,
		"name":      server.Name,
	}).Info("Tool server created successfully in DynamoDB")
	return nil
}

// GetToolServer retrieves a tool server by ID
func (ops *ToolServerOperations) GetToolServer(ctx context.Context, id string) (*models.ToolServer, error) {
	result, err := ops.client.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(ops.tableName),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"server_id": id,
			"error":     err.Error(),
		}).Error("Failed to get tool server from DynamoDB")
		return nil, fmt.Errorf("failed to get tool server: %w", err)
	}

	if result.Item == nil {
		return nil, ErrNotFound
	}

	return unmarshalToolServer(result.Item)
}

// GetToolServerByName retrieves the non-deleted tool server holding name
func (ops *ToolServerOperations) GetToolServerByName(ctx context.Context, name string) (*models.ToolServer, error) {
	id, err := ops.client.lookupOwner(ctx, toolServerNameKey(name))
	if err != nil {
		return nil, err
	}
	return ops.GetToolServer(ctx, id)
}

// GetAllToolServers retrieves every tool server, including deleted ones
func (ops *ToolServerOperations) GetAllToolServers(ctx context.Context) ([]*models.ToolServer, error) {
	paginator := dynamodb.NewScanPaginator(ops.client.DynamoDB, &dynamodb.ScanInput{
		TableName: aws.String(ops.tableName),
	})

	var servers []*models.ToolServer
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool servers: %w", err)
		}
		for _, item := range page.Items {
			server, err := unmarshalToolServer(item)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool server: %w", err)
			}
			servers = append(servers, server)
		}
	}

	return servers, nil
}

// UpdateToolServer replaces a non-deleted tool server. When the name changed,
// the old name is released and the new one claimed in the same transaction.
func (ops *ToolServerOperations) UpdateToolServer(ctx context.Context, server *models.ToolServer, previousName string) error {
	av, err := attributevalue.MarshalMap(toToolServerItem(server))
	if err != nil {
		return fmt.Errorf("failed to marshal tool server: %w", err)
	}

	put := txOp{
		item: types.TransactWriteItem{Put: &types.Put{
			TableName:                aws.String(ops.tableName),
			Item:                     av,
			ConditionExpression:      aws.String("attribute_exists(Id) AND #state <> :deleted"),
			ExpressionAttributeNames: map[string]string{"#state": "State"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":deleted": &types.AttributeValueMemberS{Value: string(models.StateDeleted)},
			},
		}},
		onFail: ErrNotFound,
	}

	txOps := []txOp{put}
	if previousName != server.Name {
		txOps = append(txOps,
			ops.client.releaseUnique(toolServerNameKey(previousName), server.Id),
			ops.client.claimUnique(toolServerNameKey(server.Name), server.Id),
		)
	}

	if err := ops.client.transact(ctx, txOps...); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"server_id": server.Id,
		"name":      server.Name,
	}).Info("Tool server updated successfully in DynamoDB")
	return nil
}

// SoftDeleteToolServer marks the server DELETED and releases its name
func (ops *ToolServerOperations) SoftDeleteToolServer(ctx context.Context, server *models.ToolServer, at time.Time) error {
	return ops.client.transact(ctx,
		txOp{
			item: types.TransactWriteItem{Update: &types.Update{
				TableName: aws.String(ops.tableName),
				Key: map[string]types.AttributeValue{
					"Id": &types.AttributeValueMemberS{Value: server.Id},
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
		ops.client.releaseUnique(toolServerNameKey(server.Name), server.Id),
	)
}

// UpdateHealth records the result of a health probe
func (ops *ToolServerOperations) UpdateHealth(ctx context.Context, id string, status models.HealthStatus, at time.Time) error {
	_, err := ops.client.DynamoDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(ops.tableName),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET Health = :health, LastHealthCheck = :checked_at"),
		ConditionExpression: aws.String("attribute_exists(Id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":health":     &types.AttributeValueMemberS{Value: string(status)},
			":checked_at": unixValue(at),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update tool server health: %w", err)
	}
	return nil
}

func toToolServerItem(server *models.ToolServer) toolServerItem {
	return toolServerItem{
		Id:              server.Id,
		Name:            server.Name,
		Description:     server.Description,
		URL:             server.URL,
		APIKey:          server.APIKey,
		Transport:       string(server.Transport),
		State:           string(server.State),
		Health:          string(server.Health),
		LastHealthCheck: unixOrZero(server.LastHealthCheck),
		Metadata:        server.Metadata,
		CreatedAt:       server.CreatedAt.Unix(),
		UpdatedAt:       server.UpdatedAt.Unix(),
	}
}

// unmarshalToolServer converts a DynamoDB item to the ToolServer domain model
func unmarshalToolServer(item map[string]types.AttributeValue) (*models.ToolServer, error) {
	var temp toolServerItem
	if err := attributevalue.UnmarshalMap(item, &temp); err != nil {
		return nil, err
	}

	return &models.ToolServer{
		Id:              temp.Id,
		Name:            temp.Name,
		Description:     temp.Description,
		URL:             temp.URL,
		APIKey:          temp.APIKey,
		Transport:       models.TransportKind(temp.Transport),
		State:           models.LifecycleState(temp.State),
		Health:          models.HealthStatus(temp.Health),
		LastHealthCheck: unixPtr(temp.LastHealthCheck),
		Metadata:        temp.Metadata,
		CreatedAt:       time.Unix(temp.CreatedAt, 0).UTC(),
		UpdatedAt:       time.Unix(temp.UpdatedAt, 0).UTC(),
	}, nil
}
