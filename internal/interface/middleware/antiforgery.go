package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/notism-go/pkg/helpers"
	"github.com/oksasatya/notism-go/pkg/response"
)

// AntiForgery enforces the double-submit pair on state-changing session calls.
func AntiForgery(cookies *helpers.CookieManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cookies.ValidateAntiForgery(c); err != nil {
			response.Abort(c, http.StatusBadRequest, "Anti-forgery token validation failed", nil)
			return
		}
		c.Next()
	}
}
