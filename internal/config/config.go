package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER
const (
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Logging configuration
	LogLevel  string
	LogFormat string

	// Storage configuration
	StoreDriver string

	// AWS configuration
	AWSRegion        string
	DynamoDBEndpoint string

	// DynamoDB tables
	ToolServersTableName   string
	ClientsTableName       string
	UsersTableName         string
	RegistrationsTableName string
	UniqueKeysTableName    string

	// Layer-0 token configuration
	JWTSecretKey             string
	JWTAlgorithm             string
	AccessTokenExpireMinutes int
	RequireAdminAuth         bool

	// Browser origins allowed by CORS; empty means any
	CORSAllowedOrigins []string

	// Layer-2 key encryption at rest
	ServerKeyEncryptionKey string

	// Session timeouts
	HandshakeTimeout time.Duration
	InvokeTimeout    time.Duration

	// Stdio servers run commands on the gateway host
	AllowStdio bool

	// Health prober
	HealthCheckInterval time.Duration
	HealthCheckWorkers  int

	// Bootstrap
	BootstrapFile string
	AdminUsername string
	AdminPassword string
}

// New creates a new Config instance by loading environment variables
// from .env file (if present) and OS environment.
// OS environment variables take precedence over .env file values.
// Panics if required configuration values are missing or invalid.
func New() *Config {
	// Load .env file from project root (silently ignore if not found)
	envPath := filepath.Join(".", ".env")
	_ = godotenv.Load(envPath)

	cfg := Load()

	// Validate required configuration
	cfg.validate()

	return cfg
}

// Load reads configuration from the environment without validating it
func Load() *Config {
	return &Config{
		Port: getEnvOrDefault("PORT", "8000"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		StoreDriver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDynamoDB)),

		AWSRegion:        getEnvOrDefault("AWS_REGION", "us-east-1"),
		DynamoDBEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),

		ToolServersTableName:   getEnvOrDefault("DYNAMODB_TOOL_SERVERS_TABLE", "ToolServers"),
		ClientsTableName:       getEnvOrDefault("DYNAMODB_CLIENTS_TABLE", "ClientApps"),
		UsersTableName:         getEnvOrDefault("DYNAMODB_USERS_TABLE", "Users"),
		RegistrationsTableName: getEnvOrDefault("DYNAMODB_REGISTRATIONS_TABLE", "BuildRegistrations"),
		UniqueKeysTableName:    getEnvOrDefault("DYNAMODB_UNIQUE_KEYS_TABLE", "UniqueKeys"),

		JWTSecretKey:             os.Getenv("JWT_SECRET_KEY"),
		JWTAlgorithm:             strings.ToUpper(getEnvOrDefault("JWT_ALGORITHM", "HS256")),
		AccessTokenExpireMinutes: getInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		RequireAdminAuth:         getBool("REQUIRE_ADMIN_AUTH", true),

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),

		ServerKeyEncryptionKey: os.Getenv("SERVER_KEY_ENCRYPTION_KEY"),

		HandshakeTimeout: getDuration("MCP_HANDSHAKE_TIMEOUT", 10*time.Second),
		InvokeTimeout:    getDuration("MCP_INVOKE_TIMEOUT", 30*time.Second),
		AllowStdio:       getBool("MCP_ALLOW_STDIO", false),

		HealthCheckInterval: getDuration("HEALTH_CHECK_INTERVAL", 0),
		HealthCheckWorkers:  getInt("HEALTH_CHECK_WORKERS", 4),

		BootstrapFile: os.Getenv("BOOTSTRAP_FILE"),
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
}

// validate checks that all required configuration values are present and valid
func (c *Config) validate() {
	if err := c.Validate(); err != nil {
		panic(err.Error())
	}
}

// Validate reports the first problem found in the configuration
func (c *Config) Validate() error {
	var missing []string

	if c.JWTSecretKey == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}
	if c.ServerKeyEncryptionKey == "" {
		missing = append(missing, "SERVER_KEY_ENCRYPTION_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("Missing required configuration values: %v", missing)
	}

	// Encryption key length (must be 32 characters for AES-256)
	if len(c.ServerKeyEncryptionKey) != 32 {
		return fmt.Errorf("SERVER_KEY_ENCRYPTION_KEY must be exactly 32 characters (got %d)", len(c.ServerKeyEncryptionKey))
	}

	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("JWT_ALGORITHM must be one of HS256, HS384, HS512 (got '%s')", c.JWTAlgorithm)
	}

	switch c.StoreDriver {
	case StoreDynamoDB, StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be '%s' or '%s' (got '%s')", StoreDynamoDB, StoreMemory, c.StoreDriver)
	}

	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive (got %d)", c.AccessTokenExpireMinutes)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("MCP_HANDSHAKE_TIMEOUT must be positive (got %s)", c.HandshakeTimeout)
	}
	if c.InvokeTimeout <= 0 {
		return fmt.Errorf("MCP_INVOKE_TIMEOUT must be positive (got %s)", c.InvokeTimeout)
	}
	if c.HealthCheckInterval < 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must not be negative (got %s)", c.HealthCheckInterval)
	}
	if c.HealthCheckWorkers <= 0 {
		return fmt.Errorf("HEALTH_CHECK_WORKERS must be positive (got %d)", c.HealthCheckWorkers)
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}

	return nil
}

// getList splits a comma separated variable, dropping empty entries
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt parses an integer variable, returning -1 for unparsable values so
// validate can reject them
func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getDuration accepts Go duration strings ("10s") or a bare number of seconds
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return -1
	}
	return d
}

// HealthCheckEnabled reports whether the periodic prober should run
func (c *Config) HealthCheckEnabled() bool {
	return c.HealthCheckInterval > 0
}

// GetPort returns the server port
func (c *Config) GetPort() string {
	return c.Port
}

// GetLogLevel returns the logging level
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}

// GetAWSRegion returns the AWS region
func (c *Config) GetAWSRegion() string {
	return c.AWSRegion
}

// AccessTokenTTL returns the lifetime of issued Layer-0 tokens
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}
