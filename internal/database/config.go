package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	appConfig "github.com/imyashkale/mcpgateway/internal/config"
	"github.com/imyashkale/mcpgateway/internal/logger"
)

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a record or one of its unique values already exists
	ErrAlreadyExists = errors.New("record already exists")
	// ErrConditionFailed is returned when a record changed between read and write
	ErrConditionFailed = errors.New("record was modified concurrently")
)

// API is the subset of the DynamoDB client used by this package
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Tables names every table the gateway uses
type Tables struct {
	ToolServers   string
	Clients       string
	Users         string
	Registrations string
	UniqueKeys    string
}

func (t Tables) all() []string {
	return []string{t.ToolServers, t.Clients, t.Users, t.Registrations, t.UniqueKeys}
}

// Config holds the DynamoDB configuration
type Config struct {
	Region   string
	Endpoint string
	Tables   Tables
}

// Client wraps the DynamoDB client
type Client struct {
	DynamoDB API
	Tables   Tables
}

// NewConfig creates a new database configuration from the application config
func NewConfig(appCfg *appConfig.Config) *Config {
	return &Config{
		Region:   appCfg.AWSRegion,
		Endpoint: appCfg.DynamoDBEndpoint,
		Tables: Tables{
			ToolServers:   appCfg.ToolServersTableName,
			Clients:       appCfg.ClientsTableName,
			Users:         appCfg.UsersTableName,
			Registrations: appCfg.RegistrationsTableName,
			UniqueKeys:    appCfg.UniqueKeysTableName,
		},
	}
}

// NewClient creates a new DynamoDB client
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	// Load AWS SDK config
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	// Create DynamoDB client, optionally against a local endpoint
	dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	client := NewClientWithAPI(dynamoClient, cfg.Tables)

	// Verify tables exist
	for _, table := range cfg.Tables.all() {
		if err := ensureTableExists(ctx, dynamoClient, table); err != nil {
			logger.WithError(err).Warn("Could not verify table existence")
		}
	}

	return client, nil
}

// NewClientWithAPI wraps an existing DynamoDB API implementation
func NewClientWithAPI(api API, tables Tables) *Client {
	return &Client{
		DynamoDB: api,
		Tables:   tables,
	}
}

// ensureTableExists checks if the DynamoDB table exists
func ensureTableExists(ctx context.Context, client API, tableName string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})

	if err != nil {
		return fmt.Errorf("table %s does not exist or cannot be accessed: %w", tableName, err)
	}

	logger.WithField("table", tableName).Info("DynamoDB table verified successfully")
	return nil
}
