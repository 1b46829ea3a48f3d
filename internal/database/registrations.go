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

// maxUnregisterAttempts bounds retries when concurrent unregisters race for
// the same matching item
const maxUnregisterAttempts = 5

type registrationItem struct {
	ServerId       string `dynamodbav:"ServerId"`
	RegistrationId string `dynamodbav:"RegistrationId"`
	BuildId        string `dynamodbav:"BuildId"`
	RegisteredAt   int64  `dynamodbav:"RegisteredAt"`
}

// RegistrationOperations handles all DynamoDB operations for build registrations.
// Items are keyed by ServerId (partition) and RegistrationId (sort).
type RegistrationOperations struct {
	client    *Client
	tableName string
}

// NewRegistrationOperations creates a new RegistrationOperations instance
func NewRegistrationOperations(client *Client) *RegistrationOperations {
	return &RegistrationOperations{
		client:    client,
		tableName: client.Tables.Registrations,
	}
}

// CreateRegistration inserts a registration; duplicates of the same build id are allowed
func (ops *RegistrationOperations) CreateRegistration(ctx context.Context, reg *models.BuildRegistration) error {
	av, err := attributevalue.MarshalMap(registrationItem{
		ServerId:       reg.ServerId,
		RegistrationId: reg.Id,
		BuildId:        reg.BuildId,
		RegisteredAt:   reg.RegisteredAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}

	_, err = ops.client.DynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(ops.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(RegistrationId)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrAlreadyExists
		}
		logger.WithFields(map[string]interface{}{
			"server_id": reg.ServerId,
			"build_id":  reg.BuildId,
			"error":     err.Error(),
		}).Error("Failed to create registration in DynamoDB")
		return fmt.Errorf("failed to create registration: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"server_id":       reg.ServerId,
		"build_id":        reg.BuildId,
		"registration_id": reg.Id,
	}).Info("Build registered successfully in DynamoDB")
	return nil
}

// GetRegistrationsByServerId returns every registration for a server
func (ops *RegistrationOperations) GetRegistrationsByServerId(ctx context.Context, serverId string) ([]*models.BuildRegistration, error) {
	return ops.query(ctx, serverId, "")
}

// DeleteRegistration removes exactly one registration of buildId for the
// server and returns it. ErrNotFound when none matches.
func (ops *RegistrationOperations) DeleteRegistration(ctx context.Context, serverId, buildId string) (*models.BuildRegistration, error) {
	for attempt := 0; attempt < maxUnregisterAttempts; attempt++ {
		matches, err := ops.query(ctx, serverId, buildId)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, ErrNotFound
		}

		target := matches[0]
		_, err = ops.client.DynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(ops.tableName),
			Key: map[string]types.AttributeValue{
				"ServerId":       &types.AttributeValueMemberS{Value: serverId},
				"RegistrationId": &types.AttributeValueMemberS{Value: target.Id},
			},
			ConditionExpression: aws.String("attribute_exists(RegistrationId)"),
		})
		if err == nil {
			return target, nil
		}
		if !isConditionFailed(err) {
			return nil, fmt.Errorf("failed to delete registration: %w", err)
		}
		// another request removed this item first; look again
	}

	return nil, ErrConditionFailed
}

func (ops *RegistrationOperations) query(ctx context.Context, serverId, buildId string) ([]*models.BuildRegistration, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(ops.tableName),
		KeyConditionExpression: aws.String("ServerId = :serverId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":serverId": &types.AttributeValueMemberS{Value: serverId},
		},
		ConsistentRead: aws.Bool(true),
	}
	if buildId != "" {
		input.FilterExpression = aws.String("BuildId = :buildId")
		input.ExpressionAttributeValues[":buildId"] = &types.AttributeValueMemberS{Value: buildId}
	}

	paginator := dynamodb.NewQueryPaginator(ops.client.DynamoDB, input)

	var regs []*models.BuildRegistration
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query registrations: %w", err)
		}
		for _, item := range page.Items {
			var temp registrationItem
			if err := attributevalue.UnmarshalMap(item, &temp); err != nil {
				return nil, fmt.Errorf("failed to unmarshal registration: %w", err)
			}
			regs = append(regs, &models.BuildRegistration{
				Id:           temp.RegistrationId,
				ServerId:     temp.ServerId,
				BuildId:      temp.BuildId,
				RegisteredAt: time.Unix(temp.RegisteredAt, 0).UTC(),
			})
		}
	}

	return regs, nil
}
