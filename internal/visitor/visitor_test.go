package visitor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret"), Issuer: "swrfmods", Duration: time.Hour}
}

func TestTokenRoundTrip(t *testing.T) {
	ts := testTokens()
	token, exp, err := ts.Sign("v-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, err := ts.VisitorID(token)
	require.NoError(t, err)
	assert.Equal(t, "v-1", id)
}

func TestTokenRejectsForeignSecretAndIssuer(t *testing.T) {
	token, _, err := testTokens().Sign("v-1")
	require.NoError(t, err)

	other := testTokens()
	other.Secret = []byte("other-secret")
	_, err = other.Parse(token)
	assert.Error(t, err)

	other = testTokens()
	other.Issuer = "someone-else"
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestTokenRejectsExpired(t *testing.T) {
	ts := testTokens()
	ts.Duration = -time.Minute
	token, _, err := ts.Sign("v-1")
	require.NoError(t, err)
	_, err = ts.Parse(token)
	assert.Error(t, err)
}

func newRouter(ts TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(ts, false))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, MustGetVisitor(c))
	})
	return r
}

func TestMiddlewareMintsVisitor(t *testing.T) {
	r := newRouter(testTokens())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(TokenHeader))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestMiddlewareReusesCookieAndBearer(t *testing.T) {
	ts := testTokens()
	token, _, err := ts.Sign("known")
	require.NoError(t, err)
	r := newRouter(ts)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "known", w.Body.String())
	assert.Empty(t, w.Header().Get(TokenHeader))

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "known", w.Body.String())
}

func TestMiddlewareReplacesTamperedToken(t *testing.T) {
	r := newRouter(testTokens())
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEqual(t, "", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(TokenHeader))
}

func TestIsNewOnlyForMintedVisitors(t *testing.T) {
	ts := testTokens()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(ts, false))
	r.GET("/new", func(c *gin.Context) {
		if IsNew(c) {
			c.String(http.StatusOK, "new")
			return
		}
		c.String(http.StatusOK, "known")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/new", nil))
	assert.Equal(t, "new", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/new", nil)
	req.Header.Set("Authorization", "Bearer "+w.Header().Get(TokenHeader))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "known", w.Body.String())
}
