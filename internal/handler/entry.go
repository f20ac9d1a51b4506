package handler

import (
	"net/http"
	"time"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/ledger"
	"recon-ledger/internal/store"
	"recon-ledger/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// EntryHandler 负责账目相关接口
type EntryHandler struct {
	App *ledger.App
}

func NewEntryHandler(app *ledger.App) *EntryHandler {
	return &EntryHandler{App: app}
}

// ---------- 请求/响应结构 ----------

type createTxReq struct {
	Date         string  `json:"date"`
	Description  string  `json:"description" binding:"max=255"`
	Amount       string  `json:"amount"`
	Type         string  `json:"type"`
	Category     *string `json:"category" binding:"omitempty,max=64"`
	CheckNumber  *string `json:"check_number" binding:"omitempty,max=32"`
	IsReconciled bool    `json:"is_reconciled"`
	AccountID    *string `json:"account_id" binding:"omitempty,max=64"`
}

// updateTxReq: 未提供的字段保持不变
type updateTxReq struct {
	Date         *string `json:"date"`
	Description  *string `json:"description" binding:"omitempty,max=255"`
	Amount       *string `json:"amount"`
	Type         *string `json:"type"`
	Category     *string `json:"category" binding:"omitempty,max=64"`
	CheckNumber  *string `json:"check_number" binding:"omitempty,max=32"`
	IsReconciled *bool   `json:"is_reconciled"`
	AccountID    *string `json:"account_id" binding:"omitempty,max=64"`
}

type txResp struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Description  string    `json:"description"`
	Amount       string    `json:"amount"`
	Type         string    `json:"type"`
	Category     *string   `json:"category"`
	CheckNumber  *string   `json:"check_number"`
	IsReconciled bool      `json:"is_reconciled"`
	AccountID    *string   `json:"account_id"`
	Balance      string    `json:"balance,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ---------- 工具函数 ----------

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Invalid("amount must be a decimal number")
	}
	return d, nil
}

func toTxResp(t store.Transaction) txResp {
	return txResp{
		ID:           t.ID,
		Date:         t.Date,
		Description:  t.Description,
		Amount:       t.Amount.StringFixed(2),
		Type:         string(t.Type),
		Category:     t.Category,
		CheckNumber:  t.CheckNumber,
		IsReconciled: t.IsReconciled,
		AccountID:    t.AccountID,
		CreatedAt:    t.CreatedAt,
	}
}

func (r updateTxReq) patch() (store.TransactionPatch, error) {
	p := store.TransactionPatch{
		Date:         r.Date,
		Description:  r.Description,
		Category:     r.Category,
		CheckNumber:  r.CheckNumber,
		IsReconciled: r.IsReconciled,
		AccountID:    r.AccountID,
	}
	if r.Amount != nil {
		d, err := parseAmount(*r.Amount)
		if err != nil {
			return p, err
		}
		p.Amount = &d
	}
	if r.Type != nil {
		t := store.TxType(*r.Type)
		p.Type = &t
	}
	return p, nil
}

// ---------- 接口实现 ----------

// Ledger GET /api/ledger
func (h *EntryHandler) Ledger(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	snap, err := h.App.LoadAll(c.Request.Context(), user.ID)
	if err != nil {
		util.Fail(c, err)
		return
	}

	running := ledger.RunningBalances(snap.Transactions)
	list := make([]txResp, 0, len(snap.Transactions))
	for i, t := range snap.Transactions {
		r := toTxResp(t)
		r.Balance = running[i].StringFixed(2)
		list = append(list, r)
	}
	cats := make([]gin.H, 0, len(snap.Categories))
	for _, ct := range snap.Categories {
		cats = append(cats, categoryResp(ct))
	}

	util.Success(c, util.Response{
		"user":         userResp(snap.User),
		"transactions": list,
		"categories":   cats,
		"balance":      snap.Balance.StringFixed(2),
	})
}

// CreateTransaction POST /api/transactions
func (h *EntryHandler) CreateTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	var req createTxReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		util.Fail(c, err)
		return
	}

	id, err := h.App.SubmitTransaction(c.Request.Context(), store.NewTransaction{
		OwnerID:      user.ID,
		Date:         req.Date,
		Description:  req.Description,
		Amount:       amount,
		Type:         store.TxType(req.Type),
		Category:     req.Category,
		CheckNumber:  req.CheckNumber,
		IsReconciled: req.IsReconciled,
		AccountID:    req.AccountID,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"id": id})
}

// UpdateTransaction PUT /api/transactions/:id
func (h *EntryHandler) UpdateTransaction(c *gin.Context) {
	var req updateTxReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	p, err := req.patch()
	if err != nil {
		util.Fail(c, err)
		return
	}
	n, err := h.App.EditTransaction(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		util.Fail(c, err)
		return
	}
	if n == 0 && !p.IsEmpty() {
		util.Fail(c, apperr.ErrNotFound)
		return
	}
	util.Success(c, util.Response{"updated": n})
}

// DeleteTransaction DELETE /api/transactions/:id
func (h *EntryHandler) DeleteTransaction(c *gin.Context) {
	n, err := h.App.RemoveTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.Fail(c, err)
		return
	}
	if n == 0 {
		util.Fail(c, apperr.ErrNotFound)
		return
	}
	util.Success(c, util.Response{"deleted": n})
}

// ---------- 分类 ----------

type createCategoryReq struct {
	Name string `json:"name" binding:"required,max=64"`
	Type string `json:"type" binding:"required"`
}

func categoryResp(ct store.Category) gin.H {
	return gin.H{
		"id":         ct.ID,
		"name":       ct.Name,
		"type":       ct.Type,
		"is_default": ct.IsDefault,
	}
}

// ListCategories GET /api/categories
func (h *EntryHandler) ListCategories(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	cats, err := h.App.ListCategories(c.Request.Context(), user.ID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	list := make([]gin.H, 0, len(cats))
	for _, ct := range cats {
		list = append(list, categoryResp(ct))
	}
	util.Success(c, util.Response{"categories": list})
}

// CreateCategory POST /api/categories
func (h *EntryHandler) CreateCategory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	var req createCategoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	id, err := h.App.CreateCategory(c.Request.Context(), user.ID, req.Name, req.Type)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"id": id})
}

// DeleteCategory DELETE /api/categories/:id
func (h *EntryHandler) DeleteCategory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	n, err := h.App.DeleteCategory(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		util.Fail(c, err)
		return
	}
	if n == 0 {
		util.Fail(c, apperr.ErrNotFound)
		return
	}
	util.Success(c, util.Response{"deleted": n})
}
