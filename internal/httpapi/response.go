// Package httpapi implements the gateway's HTTP surface: connect, get, send,
// close, and the liveness banner.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/whisper/ws-relay/internal/apierr"
)

// envelope is the uniform success shape: {"success":true,"result":...}.
type envelope struct {
	Success bool `json:"success"`
	Result  any  `json:"result"`
}

// errEnvelope is the uniform failure shape: {"success":false,"error":"..."}.
type errEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ok writes a successful envelope with the given result.
func ok(c *gin.Context, result any) {
	c.JSON(200, envelope{Success: true, Result: result})
}

// fail writes an error envelope, using the status carried by err.
func fail(c *gin.Context, err *apierr.Error) {
	c.JSON(err.StatusCode(), errEnvelope{Success: false, Error: err.Message})
}
