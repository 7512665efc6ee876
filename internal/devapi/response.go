package devapi

import (
	"github.com/gin-gonic/gin"
)

// Response is the body of every error reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error tags.
const (
	msgInvalidRequest  = "INVALID_REQUEST"
	msgDuplicateEmail  = "DUPLICATE_EMAIL"
	msgEmailRequired   = "EMAIL_REQUIRED"
	msgBadCredentials  = "BAD_CREDENTIALS"
	msgTooManyAttempts = "TOO_MANY_ATTEMPTS"
	msgInvalidRefresh  = "INVALID_REFRESH"
	msgNotCommon       = "NOT_COMMON"
	msgCommonLimit     = "COMMON_LIMIT"
	msgTodoNotFound    = "TODO_NOT_FOUND"
	msgInternal        = "INTERNAL_ERROR"
)

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}
