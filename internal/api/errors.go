package api

import (
	"github.com/gin-gonic/gin"

	"yt-studio/internal/pipeline"
)

// errorBody is the shape of the non-2xx JSON responses written by
// writeError and writeFailureErr.
type errorBody struct {
	Error     string         `json:"error"`
	ErrorCode string         `json:"errorCode,omitempty"`
	Subcode   string         `json:"subcode,omitempty"`
	Message   string         `json:"message"`
	RequestID string         `json:"requestId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, code pipeline.Code, message string) {
	c.JSON(status, errorBody{
		Error:     message,
		ErrorCode: string(code),
		Message:   message,
		RequestID: requestIDFrom(c),
	})
}

// writeFailureErr unwraps a *pipeline.Failure and reports its code/subcode/
// details; any other error is reported as a generic message at status.
func writeFailureErr(c *gin.Context, status int, err error) {
	failure, ok := pipeline.AsFailure(err)
	if !ok {
		c.JSON(status, errorBody{Error: err.Error(), Message: err.Error(), RequestID: requestIDFrom(c)})
		return
	}
	c.JSON(status, errorBody{
		Error:     failure.Message,
		ErrorCode: string(failure.FailureCode),
		Subcode:   failure.Subcode,
		Message:   failure.Message,
		RequestID: requestIDFrom(c),
		Details:   failure.Details,
	})
}
