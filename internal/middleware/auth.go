package middleware

import (
	"errors"
	"net/http"
	"strings"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/ledger"
	"recon-ledger/internal/util"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 校验 JWT，并在 context 里放入当前用户。
// A locked store answers before the token is even looked at.
func AuthMiddleware(jwtSecret string, app *ledger.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !app.Unlocked() {
			util.Fail(c, apperr.ErrStorageUnavailable)
			c.Abort()
			return
		}

		var tokenStr string

		// 1) Header: Authorization: Bearer xxx
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenStr = parts[1]
			}
		}

		// 2) URL 查询参数 ?token=xxx（用于下载等无法自定义 Header 的场景）
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}

		// 3) Cookie rl_token
		if tokenStr == "" {
			if cookie, err := c.Cookie("rl_token"); err == nil {
				tokenStr = cookie
			}
		}

		if tokenStr == "" {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
			c.Abort()
			return
		}

		claims, err := util.ParseToken(jwtSecret, tokenStr)
		if err != nil {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "session expired, unlock again")
			c.Abort()
			return
		}

		user, err := app.User(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				util.Error(c, http.StatusUnauthorized, util.CodeAuth, "unknown user")
			} else {
				util.Fail(c, err)
			}
			c.Abort()
			return
		}

		c.Set("currentUser", user)
		c.Next()
	}
}
