package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vctt94/koikoisrv/internal/gameerr"
)

var errPlain = errors.New("boom")

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	return c, rec
}

func TestResolveOrAssignPlayerIDMintsOneWhenAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/connect", nil)
	c, rec := newTestContext(req)

	pid := resolveOrAssignPlayerID(c)
	require.NotEmpty(t, pid)

	res := rec.Result()
	var found bool
	for _, ck := range res.Cookies() {
		if ck.Name == sessionCookie {
			found = true
			require.Equal(t, pid, ck.Value)
		}
	}
	require.True(t, found, "resolveOrAssignPlayerID must set the session cookie")
}

func TestResolveOrAssignPlayerIDReusesExistingCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/connect", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "existing-id"})
	c, _ := newTestContext(req)

	pid := resolveOrAssignPlayerID(c)
	require.Equal(t, "existing-id", pid)
}

func TestRequirePlayerIDRejectsMissingCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/actions/play-hand-card", nil)
	c, rec := newTestContext(req)

	_, ok := requirePlayerID(c)
	require.False(t, ok)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePlayerIDAcceptsCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/actions/play-hand-card", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "p1"})
	c, _ := newTestContext(req)

	pid, ok := requirePlayerID(c)
	require.True(t, ok)
	require.Equal(t, "p1", pid)
}

func TestWriteErrorMapsGameErrorStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	c, rec := newTestContext(req)

	writeError(c, gameerr.New(gameerr.CodeGameNotFound, "no such game"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "GAME_NOT_FOUND")
}

func TestWriteErrorDefaultsToInternalForPlainError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	c, rec := newTestContext(req)

	writeError(c, errPlain)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
