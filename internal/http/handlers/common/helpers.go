package common

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mzansigig/gigwork-backend/internal/http/middleware"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
)

// CurrentUserID extracts the authenticated user id set by the auth middleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	return userID, nil
}

// CurrentUserRole extracts the authenticated user's role.
func CurrentUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", apperror.ErrUnauthorized
	}
	role, ok := raw.(string)
	if !ok {
		return "", apperror.ErrUnauthorized
	}
	return role, nil
}

// ParseUUIDParam parses a UUID from a URL parameter.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("parameter %s is missing", paramName))
	}
	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("parameter %s must be a valid UUID", paramName))
	}
	return parsed, nil
}

// BindJSON binds the request body, wrapping binding failures as validation
// errors so the error handler reports them with a 400.
func BindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "invalid request body: "+err.Error())
	}
	return nil
}

// Fail records the error for the centralized error handler.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery safely reads an integer query parameter with a fallback value.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extracts limit and offset from query parameters with defaults.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
