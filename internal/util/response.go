package util

import (
	"errors"
	"net/http"

	"recon-ledger/internal/apperr"

	"github.com/gin-gonic/gin"
)

// 通用返回结构里的 data 使用 map
type Response map[string]interface{}

// 业务错误码
const (
	CodeOK           = 0
	CodeInvalidParam = 40001
	CodeAuth         = 40101
	CodeLocked       = 40102
	CodeNotFound     = 40401
	CodeConflict     = 40901
	CodeTooLarge     = 41301
	CodeRateLimited  = 42901
	CodeServerErr    = 50001
)

// Success 统一成功返回
func Success(c *gin.Context, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Error 统一错误返回
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}

// Fail maps a core error onto status, code and a user-safe message.
func Fail(c *gin.Context, err error) {
	msg := apperr.Public(err)
	switch {
	case apperr.IsValidation(err):
		Error(c, http.StatusBadRequest, CodeInvalidParam, msg)
	case errors.Is(err, apperr.ErrConstraint):
		Error(c, http.StatusConflict, CodeConflict, msg)
	case errors.Is(err, apperr.ErrNotFound):
		Error(c, http.StatusNotFound, CodeNotFound, msg)
	case errors.Is(err, apperr.ErrBadPassword):
		Error(c, http.StatusBadRequest, CodeInvalidParam, msg)
	case errors.Is(err, apperr.ErrRateLimited):
		Error(c, http.StatusTooManyRequests, CodeRateLimited, msg)
	case errors.Is(err, apperr.ErrResourceLimit):
		Error(c, http.StatusRequestEntityTooLarge, CodeTooLarge, msg)
	case errors.Is(err, apperr.ErrStorageUnavailable):
		Error(c, http.StatusServiceUnavailable, CodeLocked, msg)
	default:
		Error(c, http.StatusInternalServerError, CodeServerErr, msg)
	}
}
