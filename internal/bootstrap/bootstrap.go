// Package bootstrap seeds the store with an admin user and tool servers at
// startup. Seeding is idempotent: records that already exist are left alone.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/models"
	"gopkg.in/yaml.v2"
)

// Seed is the content of a bootstrap file. ${VAR} references are expanded
// from the environment before parsing, so secrets can stay out of the file.
type Seed struct {
	Admin       *AdminSeed       `yaml:"admin"`
	ToolServers []ToolServerSeed `yaml:"tool_servers"`
}

// AdminSeed describes the administrative user to create
type AdminSeed struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ToolServerSeed describes one tool server to register
type ToolServerSeed struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	URL         string                 `yaml:"server_url"`
	APIKey      string                 `yaml:"api_key"`
	Transport   string                 `yaml:"transport_type"`
	Enabled     *bool                  `yaml:"enabled"`
	Metadata    map[string]interface{} `yaml:"metadata"`
}

// UserEnsurer creates a user unless it exists
type UserEnsurer interface {
	EnsureUser(ctx context.Context, username, password string) error
}

// ToolServerRegistry looks up and registers tool servers
type ToolServerRegistry interface {
	GetByName(ctx context.Context, name string) (*models.ToolServer, error)
	Create(ctx context.Context, req *models.CreateToolServerRequest) (*models.ToolServer, error)
}

// LoadFile reads and parses a bootstrap file
func LoadFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bootstrap file: %w", err)
	}
	return Parse(data)
}

// Parse parses bootstrap YAML
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &seed); err != nil {
		return nil, fmt.Errorf("invalid bootstrap YAML: %w", err)
	}

	for i, s := range seed.ToolServers {
		if s.Name == "" || s.URL == "" {
			return nil, fmt.Errorf("tool_servers[%d]: name and server_url are required", i)
		}
	}
	if seed.Admin != nil && (seed.Admin.Username == "" || seed.Admin.Password == "") {
		return nil, fmt.Errorf("admin: username and password are required")
	}
	return &seed, nil
}

// Apply writes the seed through the services. Existing users and tool
// servers with the same name are skipped.
func Apply(ctx context.Context, seed *Seed, users UserEnsurer, servers ToolServerRegistry) error {
	if seed.Admin != nil {
		if err := users.EnsureUser(ctx, seed.Admin.Username, seed.Admin.Password); err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}
		logger.WithField("username", seed.Admin.Username).Info("Admin user ensured")
	}

	for _, s := range seed.ToolServers {
		existing, err := servers.GetByName(ctx, s.Name)
		switch {
		case err == nil:
			logger.WithFields(map[string]interface{}{
				"name":      s.Name,
				"server_id": existing.Id,
			}).Debug("Tool server already registered")
			continue
		case apperror.KindOf(err) != apperror.KindNotFound:
			return fmt.Errorf("failed to look up tool server %q: %w", s.Name, err)
		}

		_, err = servers.Create(ctx, s.request())
		switch {
		case err == nil:
			logger.WithField("name", s.Name).Info("Tool server seeded")
		case apperror.KindOf(err) == apperror.KindConflict:
			logger.WithField("name", s.Name).Debug("Tool server registered concurrently")
		default:
			return fmt.Errorf("failed to seed tool server %q: %w", s.Name, err)
		}
	}
	return nil
}

func (s ToolServerSeed) request() *models.CreateToolServerRequest {
	return &models.CreateToolServerRequest{
		Name:        s.Name,
		Description: s.Description,
		URL:         s.URL,
		APIKey:      s.APIKey,
		Transport:   models.TransportKind(s.Transport),
		IsEnabled:   s.Enabled,
		Metadata:    normalizeMap(s.Metadata),
	}
}

// normalizeMap turns the map[interface{}]interface{} values yaml.v2 produces
// for nested mappings into map[string]interface{} so they encode as JSON.
func normalizeMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeValue(val)
		}
		return m
	case map[string]interface{}:
		return normalizeMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}
