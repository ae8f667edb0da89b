package server

import (
	"github.com/gin-gonic/gin"

	"github.com/loopcrm/edgegate/internal/faults"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware converts errors recorded on the gin context into
// a JSON response. Handlers that already wrote a body are left alone.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		kind := faults.KindOf(lastErr.Err)
		c.AbortWithStatusJSON(faults.HTTPStatus(kind), errorResponse{
			Error: errorPayload{
				Type:    string(kind),
				Message: faults.UserMessage(kind),
			},
		})
	}
}

// AbortWithError records err and stops the handler chain; the middleware
// above turns it into the response.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// classifyErrorForLog feeds the request logger's error fields.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	kind := faults.KindOf(err)
	return string(kind), string(kind)
}
