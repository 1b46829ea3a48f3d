package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/models"
)

const (
	// HeaderClientID and HeaderAPIKey carry Layer-1 credentials
	HeaderClientID = "X-Client-ID"
	HeaderAPIKey   = "X-API-Key"

	userContextKey   = "user"
	clientContextKey = "client"
)

// TokenResolver performs the Layer-0 check
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*models.User, error)
}

// ClientAuthenticator performs the Layer-1 check
type ClientAuthenticator interface {
	Authenticate(ctx context.Context, clientId, apiKey string) (*models.ClientApp, error)
}

// AdminAuth validates the bearer token of an administrative user and places
// the user in the request context. With required unset, requests without a
// token pass through anonymously; a presented token is always verified.
func AdminAuth(resolver TokenResolver, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" && !required {
			c.Next()
			return
		}

		const prefix = "Bearer "
		if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
			logger.WithField("path", c.Request.URL.Path).Warn("Authentication failed: missing or invalid authorization header")
			c.Header("WWW-Authenticate", "Bearer")
			abortWithError(c, apperror.New(apperror.KindUnauthorized, "missing or invalid authorization header"))
			return
		}

		user, err := resolver.ResolveToken(c.Request.Context(), strings.TrimSpace(authHeader[len(prefix):]))
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": apperror.MessageOf(err),
			}).Warn("Authentication failed: token rejected")
			c.Header("WWW-Authenticate", "Bearer")
			abortWithError(c, err)
			return
		}

		c.Set(userContextKey, user)

		logger.WithFields(map[string]interface{}{
			"username": user.Username,
			"path":     c.Request.URL.Path,
		}).Debug("Authentication successful")

		c.Next()
	}
}

// ClientAuth validates X-Client-ID and X-API-Key and places the client in
// the request context
func ClientAuth(auth ClientAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId := c.GetHeader(HeaderClientID)
		apiKey := c.GetHeader(HeaderAPIKey)
		if clientId == "" || apiKey == "" {
			logger.WithField("path", c.Request.URL.Path).Warn("Client authentication failed: missing credentials")
			abortWithError(c, apperror.New(apperror.KindUnauthorized, "missing client credentials"))
			return
		}

		client, err := auth.Authenticate(c.Request.Context(), clientId, apiKey)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"path":      c.Request.URL.Path,
				"client_id": clientId,
				"error":     apperror.MessageOf(err),
			}).Warn("Client authentication failed")
			abortWithError(c, err)
			return
		}

		c.Set(clientContextKey, client)
		c.Next()
	}
}

// CurrentUser returns the user placed in the context by AdminAuth
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// CurrentClient returns the client placed in the context by ClientAuth
func CurrentClient(c *gin.Context) (*models.ClientApp, bool) {
	v, ok := c.Get(clientContextKey)
	if !ok {
		return nil, false
	}
	client, ok := v.(*models.ClientApp)
	return client, ok
}

func abortWithError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("Authentication error")
	}
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error:   string(kind),
		Message: apperror.MessageOf(err),
	})
}
