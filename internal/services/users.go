package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles administrative users and Layer-0 token issuance
type UserService struct {
	repo      repository.UserRepository
	tokens    *TokenIssuer
	cost      int
	dummyHash []byte
}

// NewUserService creates a new UserService instance
func NewUserService(repo repository.UserRepository, tokens *TokenIssuer) *UserService {
	return newUserService(repo, tokens, bcrypt.DefaultCost)
}

func newUserService(repo repository.UserRepository, tokens *TokenIssuer, cost int) *UserService {
	// compared against when the username is unknown so both paths cost the same
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return &UserService{
		repo:      repo,
		tokens:    tokens,
		cost:      cost,
		dummyHash: dummy,
	}
}

// CreateUser registers a new ACTIVE user with a bcrypt password hash
func (s *UserService) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperror.New(apperror.KindValidation, "username is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperror.New(apperror.KindValidation, "password must be at most 72 bytes")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Id:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Email:        req.Email,
		State:        models.StateActive,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperror.Newf(apperror.KindConflict, "username %q is already registered", username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"user_id":  user.Id,
		"username": user.Username,
	}).Info("User created")

	return user, nil
}

// EnsureUser creates the user unless the username already exists
func (s *UserService) EnsureUser(ctx context.Context, username, password string) error {
	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	_, err = s.CreateUser(ctx, &models.CreateUserRequest{Username: username, Password: password})
	if apperror.KindOf(err) == apperror.KindConflict {
		return nil
	}
	return err
}

// Authenticate verifies username and password and issues a bearer token
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.TokenResponse, error) {
	invalid := apperror.New(apperror.KindUnauthorized, "incorrect username or password")

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.WithField("username", username).Warn("Password verification failed")
		return nil, invalid
	}

	if !user.State.IsActive() {
		return nil, apperror.New(apperror.KindUnauthorized, "user is inactive")
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}, nil
}

// ResolveToken performs the Layer-0 check: a valid token whose subject is an ACTIVE user
func (s *UserService) ResolveToken(ctx context.Context, token string) (*models.User, error) {
	username, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.New(apperror.KindUnauthorized, "could not validate credentials")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.State.IsActive() {
		return nil, apperror.New(apperror.KindUnauthorized, "user is inactive")
	}

	return user, nil
}
