package handler

import (
	"net/http"

	"recon-ledger/internal/ledger"
	"recon-ledger/internal/store"
	"recon-ledger/internal/util"

	"github.com/gin-gonic/gin"
)

// UpdateProfileReq 更新基本资料请求；空字符串清空该字段
type UpdateProfileReq struct {
	Email     *string `json:"email" binding:"omitempty,max=254"`
	FirstName *string `json:"first_name" binding:"omitempty,max=64"`
	LastName  *string `json:"last_name" binding:"omitempty,max=64"`
	Address   *string `json:"address" binding:"omitempty,max=255"`
}

// UpdateProfile 更新当前用户的资料
func UpdateProfile(app *ledger.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
			return
		}

		var req UpdateProfileReq
		if err := c.ShouldBindJSON(&req); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
			return
		}

		ctx := c.Request.Context()
		if _, err := app.EditProfile(ctx, user.ID, store.UserPatch{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Address:   req.Address,
		}); err != nil {
			util.Fail(c, err)
			return
		}

		updated, err := app.User(ctx, user.ID)
		if err != nil {
			util.Fail(c, err)
			return
		}
		util.Success(c, util.Response{"user": userResp(updated)})
	}
}
