package handler

import (
	"net/http"

	"recon-ledger/internal/store"
	"recon-ledger/internal/util"

	"github.com/gin-gonic/gin"
)

// currentUser 取出 AuthMiddleware 放入的用户
func currentUser(c *gin.Context) (*store.User, bool) {
	v, ok := c.Get("currentUser")
	if !ok {
		return nil, false
	}
	user, ok := v.(*store.User)
	return user, ok && user != nil
}

func userResp(u *store.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"address":    u.Address,
		"created_at": u.CreatedAt,
	}
}

// GetMe 返回当前登录用户信息（需要经过 AuthMiddleware）
func GetMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	util.Success(c, util.Response{"user": userResp(user)})
}
