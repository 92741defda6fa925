package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
}

func token(t *testing.T, userID, email, role string) string {
	t.Helper()
	tok, err := utils.GenerateToken(userID, email, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		session, ok := GetSession(c)
		require.True(t, ok)
		ident, err := ContextAuthenticator{}.CurrentUser(c.Request.Context())
		require.NoError(t, err)
		require.NotNil(t, ident)
		c.JSON(http.StatusOK, gin.H{"role": session.Role, "email": session.Email, "ident": ident.UserID})
	})

	w := serve(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Token abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + token(t, "U1", "x@y.com", "caterer")})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + token(t, "U1", " Sam@X.com ", "supplier")})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"role":"supplier","email":"sam@x.com","ident":"U1"}`, w.Body.String())
}

func TestContextAuthenticatorWithoutIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ident, err := ContextAuthenticator{}.CurrentUser(req.Context())
	assert.NoError(t, err)
	assert.Nil(t, ident)

	ctx := WithIdentity(req.Context(), models.Identity{UserID: "A1"})
	ident, err = ContextAuthenticator{}.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A1", ident.UserID)
}

func TestWebSocketAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/ws", WebSocketAuthMiddleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/ws", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/ws?token=garbage", nil).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/ws?token="+token(t, "A1", "a@x.com", "admin"), nil).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/ws", map[string]string{
		"Authorization": "Bearer " + token(t, "A1", "a@x.com", "admin"),
	}).Code)
}

func TestRoleCheck(t *testing.T) {
	r := gin.New()
	r.GET("/supplier", AuthMiddleware(), RoleCheck(models.RoleSupplier), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/open", RoleCheck(models.RoleSupplier), func(c *gin.Context) { c.Status(http.StatusOK) })

	admin := map[string]string{"Authorization": "Bearer " + token(t, "A1", "a@x.com", "admin")}
	supplier := map[string]string{"Authorization": "Bearer " + token(t, "U1", "s@x.com", "supplier")}

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/supplier", admin).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/supplier", supplier).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/open", nil).Code)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Now()

	assert.True(t, rl.allow("1.2.3.4", now))
	assert.True(t, rl.allow("1.2.3.4", now.Add(100*time.Millisecond)))
	assert.False(t, rl.allow("1.2.3.4", now.Add(200*time.Millisecond)))
	assert.True(t, rl.allow("5.6.7.8", now.Add(200*time.Millisecond)))

	// first hit has left the window
	assert.True(t, rl.allow("1.2.3.4", now.Add(1050*time.Millisecond)))
	assert.False(t, rl.allow("1.2.3.4", now.Add(1080*time.Millisecond)))
}

func TestRateLimitHandler(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(1, time.Minute).RateLimit())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/ping", nil).Code)
}

func TestSendLimiterPerUser(t *testing.T) {
	r := gin.New()
	r.POST("/send", AuthMiddleware(), NewSendLimiter(time.Hour, 2).Limit(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	alice := map[string]string{"Authorization": "Bearer " + token(t, "U1", "a@x.com", "supplier")}
	bob := map[string]string{"Authorization": "Bearer " + token(t, "U2", "b@x.com", "supplier")}

	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/send", alice).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/send", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/send", alice).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/send", bob).Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(false))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	r = gin.New()
	r.Use(SecurityHeaders(true))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = serve(r, http.MethodGet, "/", nil)
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddlewares([]string{"https://portal.example.com"}))
	r.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodOptions, "/api", map[string]string{
		"Origin":                        "https://portal.example.com",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://portal.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve(r, http.MethodGet, "/api", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
