package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/models"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// respondError writes err as {"error": kind, "message": text}. Unclassified
// errors are logged and reported as internal without their details.
func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	if status >= http.StatusInternalServerError {
		logger.WithFields(map[string]interface{}{
			"path":  c.Request.URL.Path,
			"kind":  kind,
			"error": err.Error(),
		}).Error("Request failed")
	}

	c.JSON(status, models.ErrorResponse{
		Error:   string(kind),
		Message: apperror.MessageOf(err),
	})
}

// respondBindError reports a request body that failed to bind or validate
func respondBindError(c *gin.Context, err error) {
	respondError(c, apperror.Wrap(apperror.KindValidation, err, err.Error()))
}

// pageParams reads skip and limit from the query string
func pageParams(c *gin.Context) (skip, limit int, err error) {
	skip, err = intQuery(c, "skip", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err = intQuery(c, "limit", defaultPageLimit)
	if err != nil {
		return 0, 0, err
	}

	if skip < 0 {
		return 0, 0, apperror.New(apperror.KindValidation, "skip must not be negative")
	}
	if limit < 1 || limit > maxPageLimit {
		return 0, 0, apperror.Newf(apperror.KindValidation, "limit must be between 1 and %d", maxPageLimit)
	}
	return skip, limit, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Newf(apperror.KindValidation, "%s must be an integer", name)
	}
	return v, nil
}

func boolQuery(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.Newf(apperror.KindValidation, "%s must be a boolean", name)
	}
	return v, nil
}
