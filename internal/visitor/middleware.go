package visitor

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CookieName    = "swrf_visitor"
	TokenHeader   = "X-Visitor-Token"
	CtxVisitorID  = "visitor_id"
	CtxNewVisitor = "visitor_new"
)

// Middleware resolves the visitor from the cookie or a bearer token. When
// neither carries a valid token a new visitor is minted; its token is set
// as a cookie and echoed in the X-Visitor-Token header.
func Middleware(tokens TokenService, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := tokenFromRequest(c); raw != "" {
			if claims, err := tokens.Parse(raw); err == nil {
				c.Set(CtxVisitorID, claims.VisitorID)
				c.Next()
				return
			}
		}

		id := uuid.NewString()
		token, exp, err := tokens.Sign(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
			c.Abort()
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, token, int(time.Until(exp).Seconds()), "/", "", secureCookie, true)
		c.Header(TokenHeader, token)
		c.Set(CtxVisitorID, id)
		c.Set(CtxNewVisitor, true)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); len(h) > len("bearer ") && strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	if v, err := c.Cookie(CookieName); err == nil {
		return strings.TrimSpace(v)
	}
	return ""
}

// MustGetVisitor returns the visitor id set by Middleware, or "".
func MustGetVisitor(c *gin.Context) string {
	return c.GetString(CtxVisitorID)
}

// IsNew reports whether Middleware minted the visitor on this request, in
// which case nothing can have been stored for it yet.
func IsNew(c *gin.Context) bool {
	return c.GetBool(CtxNewVisitor)
}
