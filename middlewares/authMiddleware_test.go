package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/whoami", RequireUser(), func(c *gin.Context) {
		ctx := c.Request.Context()
		userId, _ := utils.GetUserIdFromContext(ctx)
		groupId, _ := utils.GetGroupIdFromContext(ctx)
		c.JSON(http.StatusOK, gin.H{"user": userId, "group": groupId, "claim": CtxValue(ctx) != nil})
	})
	r.GET("/tenant", RequireTenant(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func signed(t *testing.T, claim utils.JwtCustomClaim) string {
	t.Helper()
	token, err := utils.JwtGenerate(claim)
	require.NoError(t, err)
	return token
}

func serve(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_ClaimsIntoContext(t *testing.T) {
	t.Setenv("API_SECRET", "middleware-secret")
	r := newTestRouter()
	token := signed(t, utils.JwtCustomClaim{UserId: "u1", UserName: "alice", GroupId: "g1"})

	w := serve(r, "/whoami", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1","group":"g1","claim":true}`, w.Body.String())

	w = serve(r, "/whoami", map[string]string{"token": token})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_GroupOverrideOnlyForAdmins(t *testing.T) {
	t.Setenv("API_SECRET", "middleware-secret")
	r := newTestRouter()

	user := signed(t, utils.JwtCustomClaim{UserId: "u1", GroupId: "g1"})
	w := serve(r, "/whoami", map[string]string{"Authorization": "Bearer " + user, "X-Group-Id": "g9"})
	assert.Contains(t, w.Body.String(), `"group":"g1"`)

	admin := signed(t, utils.JwtCustomClaim{UserId: "root", IsAdmin: true})
	w = serve(r, "/whoami", map[string]string{"Authorization": "Bearer " + admin, "X-Group-Id": "g9"})
	assert.Contains(t, w.Body.String(), `"group":"g9"`)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	t.Setenv("API_SECRET", "middleware-secret")
	r := newTestRouter()

	w := serve(r, "/whoami", map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, "/whoami", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	noGroup := signed(t, utils.JwtCustomClaim{UserId: "u1"})
	w = serve(r, "/tenant", map[string]string{"Authorization": "Bearer " + noGroup})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "GroupRequired")
}
