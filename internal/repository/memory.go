package repository

import (
	"context"
	"sync"
	"time"

	"github.com/imyashkale/mcpgateway/internal/models"
)

// MemoryStore keeps every record in process memory. It backs STORE_DRIVER=memory
// and the service tests. All writes happen under one lock, after every check
// for that write has passed, so multi-record changes are all-or-nothing.
type MemoryStore struct {
	mu sync.RWMutex

	servers       map[string]*models.ToolServer
	serverNames   map[string]string // name -> id, non-deleted only
	clients       map[string]*models.ClientApp
	clientNames   map[string]string // name -> id, non-deleted only
	clientIds     map[string]string // client_id -> id
	users         map[string]*models.User
	usernames     map[string]string
	registrations map[string][]*models.BuildRegistration // server id -> in insertion order
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		servers:       make(map[string]*models.ToolServer),
		serverNames:   make(map[string]string),
		clients:       make(map[string]*models.ClientApp),
		clientNames:   make(map[string]string),
		clientIds:     make(map[string]string),
		users:         make(map[string]*models.User),
		usernames:     make(map[string]string),
		registrations: make(map[string][]*models.BuildRegistration),
	}
}

// NewMemoryRepositories wires all repositories to one MemoryStore
func NewMemoryRepositories(store *MemoryStore) *Repositories {
	return &Repositories{
		ToolServers:   memoryToolServers{store},
		Clients:       memoryClients{store},
		Users:         memoryUsers{store},
		Registrations: memoryRegistrations{store},
	}
}

func copyServer(s *models.ToolServer) *models.ToolServer {
	c := *s
	if s.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	if s.LastHealthCheck != nil {
		t := *s.LastHealthCheck
		c.LastHealthCheck = &t
	}
	return &c
}

func copyClient(a *models.ClientApp) *models.ClientApp {
	c := *a
	if a.LastAccessedAt != nil {
		t := *a.LastAccessedAt
		c.LastAccessedAt = &t
	}
	return &c
}

type memoryToolServers struct{ s *MemoryStore }

func (r memoryToolServers) Create(_ context.Context, server *models.ToolServer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.servers[server.Id]; ok {
		return ErrAlreadyExists
	}
	if _, ok := r.s.serverNames[server.Name]; ok {
		return ErrAlreadyExists
	}
	r.s.servers[server.Id] = copyServer(server)
	r.s.serverNames[server.Name] = server.Id
	return nil
}

func (r memoryToolServers) Get(_ context.Context, id string) (*models.ToolServer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	server, ok := r.s.servers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyServer(server), nil
}

func (r memoryToolServers) GetByName(ctx context.Context, name string) (*models.ToolServer, error) {
	r.s.mu.RLock()
	id, ok := r.s.serverNames[name]
	r.s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r memoryToolServers) GetAll(_ context.Context) ([]*models.ToolServer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	servers := make([]*models.ToolServer, 0, len(r.s.servers))
	for _, server := range r.s.servers {
		servers = append(servers, copyServer(server))
	}
	return servers, nil
}

func (r memoryToolServers) Update(_ context.Context, server *models.ToolServer, previousName string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.servers[server.Id]
	if !ok || current.State.IsDeleted() {
		return ErrNotFound
	}
	if previousName != server.Name {
		if owner, taken := r.s.serverNames[server.Name]; taken && owner != server.Id {
			return ErrAlreadyExists
		}
		if r.s.serverNames[previousName] != server.Id {
			return ErrConditionFailed
		}
		delete(r.s.serverNames, previousName)
		r.s.serverNames[server.Name] = server.Id
	}
	r.s.servers[server.Id] = copyServer(server)
	return nil
}

func (r memoryToolServers) SoftDelete(_ context.Context, server *models.ToolServer, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.servers[server.Id]
	if !ok || current.State.IsDeleted() {
		return ErrNotFound
	}
	current.State = models.StateDeleted
	current.UpdatedAt = at
	if r.s.serverNames[current.Name] == current.Id {
		delete(r.s.serverNames, current.Name)
	}
	return nil
}

func (r memoryToolServers) UpdateHealth(_ context.Context, id string, status models.HealthStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.servers[id]
	if !ok {
		return ErrNotFound
	}
	current.Health = status
	checked := at
	current.LastHealthCheck = &checked
	return nil
}

type memoryClients struct{ s *MemoryStore }

func (r memoryClients) Create(_ context.Context, app *models.ClientApp) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.clients[app.Id]; ok {
		return ErrAlreadyExists
	}
	if _, ok := r.s.clientNames[app.Name]; ok {
		return ErrAlreadyExists
	}
	if _, ok := r.s.clientIds[app.ClientId]; ok {
		return ErrAlreadyExists
	}
	r.s.clients[app.Id] = copyClient(app)
	r.s.clientNames[app.Name] = app.Id
	r.s.clientIds[app.ClientId] = app.Id
	return nil
}

func (r memoryClients) Get(_ context.Context, id string) (*models.ClientApp, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	app, ok := r.s.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyClient(app), nil
}

func (r memoryClients) GetByClientId(_ context.Context, clientId string) (*models.ClientApp, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.clientIds[clientId]
	if !ok {
		return nil, ErrNotFound
	}
	return copyClient(r.s.clients[id]), nil
}

func (r memoryClients) GetAll(_ context.Context) ([]*models.ClientApp, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	apps := make([]*models.ClientApp, 0, len(r.s.clients))
	for _, app := range r.s.clients {
		apps = append(apps, copyClient(app))
	}
	return apps, nil
}

// Update writes the mutable attributes only; the key hash is left as stored
func (r memoryClients) Update(_ context.Context, app *models.ClientApp, previousName string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.clients[app.Id]
	if !ok || current.State.IsDeleted() {
		return ErrNotFound
	}
	if previousName != app.Name {
		if owner, taken := r.s.clientNames[app.Name]; taken && owner != app.Id {
			return ErrAlreadyExists
		}
		if r.s.clientNames[previousName] != app.Id {
			return ErrConditionFailed
		}
		delete(r.s.clientNames, previousName)
		r.s.clientNames[app.Name] = app.Id
	}
	current.Name = app.Name
	current.Description = app.Description
	current.State = app.State
	current.RateLimit = app.RateLimit
	current.UpdatedAt = app.UpdatedAt
	return nil
}

func (r memoryClients) SoftDelete(_ context.Context, app *models.ClientApp, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.clients[app.Id]
	if !ok || current.State.IsDeleted() {
		return ErrNotFound
	}
	current.State = models.StateDeleted
	current.UpdatedAt = at
	if r.s.clientNames[current.Name] == current.Id {
		delete(r.s.clientNames, current.Name)
	}
	return nil
}

func (r memoryClients) RotateKey(_ context.Context, id, oldHash, newHash string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.clients[id]
	if !ok || current.State.IsDeleted() || current.APIKeyHash != oldHash {
		return ErrConditionFailed
	}
	current.APIKeyHash = newHash
	current.UpdatedAt = at
	return nil
}

func (r memoryClients) TouchLastAccessed(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.clients[id]
	if !ok {
		return ErrNotFound
	}
	accessed := at
	current.LastAccessedAt = &accessed
	return nil
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.Id]; ok {
		return ErrAlreadyExists
	}
	if _, ok := r.s.usernames[user.Username]; ok {
		return ErrAlreadyExists
	}
	u := *user
	r.s.users[user.Id] = &u
	r.s.usernames[user.Username] = user.Id
	return nil
}

func (r memoryUsers) Get(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

func (r memoryUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.s.mu.RLock()
	id, ok := r.s.usernames[username]
	r.s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

type memoryRegistrations struct{ s *MemoryStore }

func (r memoryRegistrations) Create(_ context.Context, reg *models.BuildRegistration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.registrations[reg.ServerId] {
		if existing.Id == reg.Id {
			return ErrAlreadyExists
		}
	}
	c := *reg
	r.s.registrations[reg.ServerId] = append(r.s.registrations[reg.ServerId], &c)
	return nil
}

func (r memoryRegistrations) ListByServer(_ context.Context, serverId string) ([]*models.BuildRegistration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	regs := make([]*models.BuildRegistration, 0, len(r.s.registrations[serverId]))
	for _, reg := range r.s.registrations[serverId] {
		c := *reg
		regs = append(regs, &c)
	}
	return regs, nil
}

func (r memoryRegistrations) DeleteOne(_ context.Context, serverId, buildId string) (*models.BuildRegistration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	regs := r.s.registrations[serverId]
	for i, reg := range regs {
		if reg.BuildId == buildId {
			r.s.registrations[serverId] = append(regs[:i:i], regs[i+1:]...)
			return reg, nil
		}
	}
	return nil, ErrNotFound
}
