package handler

import (
	"net/http"
	"time"

	"recon-ledger/internal/config"
	"recon-ledger/internal/ledger"
	"recon-ledger/internal/util"

	"github.com/gin-gonic/gin"
)

// AuthHandler covers onboarding, unlock and secret recovery. A successful
// call returns a session token for the store's user.
type AuthHandler struct {
	App      *ledger.App
	JWT      config.JWTConfig
	TokenTTL time.Duration
}

// NewAuthHandler 构造函数
func NewAuthHandler(app *ledger.App, jwtCfg config.JWTConfig) *AuthHandler {
	ttlHours := jwtCfg.ExpireHours
	if ttlHours <= 0 {
		ttlHours = 12
	}
	return &AuthHandler{
		App:      app,
		JWT:      jwtCfg,
		TokenTTL: time.Duration(ttlHours) * time.Hour,
	}
}

func (h *AuthHandler) issue(c *gin.Context, userID string, extra util.Response) {
	token, err := util.GenerateToken(h.JWT.Secret, h.JWT.Issuer, userID, h.TokenTTL)
	if err != nil {
		util.Fail(c, err)
		return
	}
	if extra == nil {
		extra = util.Response{}
	}
	extra["token"] = token
	util.Success(c, extra)
}

// ---------- 初始化 ----------

type onboardReq struct {
	Email     string  `json:"email" binding:"required"`
	FirstName *string `json:"first_name" binding:"omitempty,max=64"`
	LastName  *string `json:"last_name" binding:"omitempty,max=64"`
	Address   *string `json:"address" binding:"omitempty,max=255"`
}

// Onboard creates the store and returns the secret once, for the user to
// write down.
func (h *AuthHandler) Onboard(c *gin.Context) {
	var req onboardReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	res, err := h.App.Onboard(c.Request.Context(), ledger.OnboardInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Address:   req.Address,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}
	h.issue(c, res.UserID, util.Response{
		"user_id":        res.UserID,
		"secret":         res.DisplaySecret,
		"secret_storage": res.StorageKind,
	})
}

// ---------- 解锁 ----------

// Unlock opens the store with the saved secret.
func (h *AuthHandler) Unlock(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.App.Unlock(ctx); err != nil {
		util.Fail(c, err)
		return
	}
	user, err := h.App.User(ctx, "")
	if err != nil {
		util.Fail(c, err)
		return
	}
	h.issue(c, user.ID, util.Response{"user": userResp(user)})
}

type recoverReq struct {
	Secret string `json:"secret" binding:"required"`
}

// Recover accepts the secret shown at onboarding when the saved copy is gone.
func (h *AuthHandler) Recover(c *gin.Context) {
	var req recoverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	ctx := c.Request.Context()
	if err := h.App.RecoverSecret(ctx, req.Secret); err != nil {
		util.Fail(c, err)
		return
	}
	user, err := h.App.User(ctx, "")
	if err != nil {
		util.Fail(c, err)
		return
	}
	h.issue(c, user.ID, util.Response{"user": userResp(user)})
}

// Lock closes the store. Tokens stay valid but every call answers locked
// until the next unlock.
func (h *AuthHandler) Lock(c *gin.Context) {
	if err := h.App.Close(); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"message": "locked"})
}
