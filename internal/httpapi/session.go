// Package httpapi is the HTTP/SSE transport: a gin router in front of
// internal/usecase's command ports and internal/turnflow's connect/
// disconnect hooks.
//
// Identity/session management belongs to an upstream collaborator; this
// package only consumes a resolved player id carried on a session cookie,
// it never authenticates one.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vctt94/koikoisrv/internal/gameerr"
)

// sessionCookie is the cookie name the core expects an upstream identity
// layer to have set; here we set it ourselves on first connect, standing in
// for that collaborator.
const sessionCookie = "koikoi_pid"

const sessionCookieTTL = 30 * 24 * time.Hour

// resolveOrAssignPlayerID reads the session cookie if present, or mints a
// fresh player id and sets the cookie, for the connect endpoint only; every
// other endpoint must already have one (requirePlayerID).
func resolveOrAssignPlayerID(c *gin.Context) string {
	if pid, err := c.Cookie(sessionCookie); err == nil && pid != "" {
		return pid
	}
	pid := uuid.NewString()
	c.SetCookie(sessionCookie, pid, int(sessionCookieTTL.Seconds()), "/", "", false, true)
	return pid
}

// requirePlayerID reads the session cookie, aborting the request with 401
// if absent. It returns ok=false after already writing the response.
func requirePlayerID(c *gin.Context) (string, bool) {
	pid, err := c.Cookie(sessionCookie)
	if err != nil || pid == "" {
		writeError(c, gameerr.New(gameerr.CodeUnauthorized, "no session cookie present"))
		return "", false
	}
	return pid, true
}

// writeError renders the {error:{code,message,details?},timestamp}
// envelope, translating a *gameerr.GameError to its mapped status or
// falling back to 500 for anything else (a bug, not a modeled failure).
func writeError(c *gin.Context, err error) {
	if ge, ok := gameerr.As(err); ok {
		body := gin.H{
			"error": gin.H{
				"code":    string(ge.Code),
				"message": ge.Message,
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if ge.Details != nil {
			body["error"].(gin.H)["details"] = ge.Details
		}
		c.JSON(ge.HTTPStatus(), body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    string(gameerr.CodeInternal),
			"message": "internal error",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
