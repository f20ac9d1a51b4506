package handler

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"recon-ledger/internal/ingest"
	"recon-ledger/internal/ledger"
	"recon-ledger/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ImportExportHandler 负责对账单导入、对账确认和账目导出
type ImportExportHandler struct {
	App       *ledger.App
	MaxUpload int64
}

func NewImportExportHandler(app *ledger.App, maxUpload int64) *ImportExportHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &ImportExportHandler{App: app, MaxUpload: maxUpload}
}

type matchResp struct {
	Transaction  txResp `json:"transaction"`
	Score        int    `json:"score"`
	DaysApart    *int   `json:"days_apart"`
	IsReconciled bool   `json:"is_reconciled"`
}

type matchSetResp struct {
	Entry   ingest.Candidate `json:"entry"`
	Matches []matchResp      `json:"matches"`
}

func toMatchSets(sets []ledger.MatchSet) []matchSetResp {
	out := make([]matchSetResp, 0, len(sets))
	for _, s := range sets {
		r := matchSetResp{Entry: s.Entry, Matches: make([]matchResp, 0, len(s.Matches))}
		for _, m := range s.Matches {
			mr := matchResp{Transaction: toTxResp(m.Transaction), Score: m.Score, IsReconciled: m.IsReconciled}
			if m.HasDate {
				days := m.DaysApart
				mr.DaysApart = &days
			}
			r.Matches = append(r.Matches, mr)
		}
		out = append(out, r)
	}
	return out
}

type importCSVReq struct {
	CSV string `json:"csv"`
}

// ImportStatement POST /api/import/csv
// 支持 multipart 上传（字段 file，.csv 或 .xlsx）或 JSON {"csv": "..."}
func (h *ImportExportHandler) ImportStatement(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUpload)
	ctx := c.Request.Context()

	var (
		sets []ledger.MatchSet
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "missing file")
			return
		}
		f, ferr := fh.Open()
		if ferr != nil {
			util.Fail(c, ferr)
			return
		}
		defer f.Close()

		if strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
			sets, err = h.App.ImportXLSX(ctx, user.ID, f)
		} else {
			raw, rerr := io.ReadAll(f)
			if rerr != nil {
				util.Fail(c, rerr)
				return
			}
			sets, err = h.App.ImportCSV(ctx, user.ID, string(raw))
		}
	} else {
		var req importCSVReq
		if berr := c.ShouldBindJSON(&req); berr != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
			return
		}
		sets, err = h.App.ImportCSV(ctx, user.ID, req.CSV)
	}
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"candidates": toMatchSets(sets)})
}

type confirmImportReq struct {
	Candidates []ingest.Candidate    `json:"candidates"`
	Choices    []ledger.ImportChoice `json:"choices"`
}

// ConfirmImport POST /api/import/confirm
func (h *ImportExportHandler) ConfirmImport(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	var req confirmImportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	out, err := h.App.ConfirmImport(c.Request.Context(), user.ID, req.Candidates, req.Choices)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"result": out})
}

type reviewReq struct {
	Entries []ingest.Candidate `json:"entries"`
}

// ReconcileReview POST /api/reconcile/review
func (h *ImportExportHandler) ReconcileReview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	var req reviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	sets, err := h.App.StartReconciliationReview(c.Request.Context(), user.ID, req.Entries)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"matches": toMatchSets(sets)})
}

type reconcileConfirmReq struct {
	Selections []ledger.Selection `json:"selections"`
}

// ReconcileConfirm POST /api/reconcile/confirm
func (h *ImportExportHandler) ReconcileConfirm(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return
	}
	var req reconcileConfirmReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	out, err := h.App.ConfirmReconciliation(c.Request.Context(), user.ID, req.Selections)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"result": out})
}

// ---------- 导出 ----------

var exportHeaders = []string{"Date", "Description", "Type", "Amount", "Category", "Check Number", "Reconciled", "Balance"}

// exportRows 返回解密后的账目行，新的在前
func (h *ImportExportHandler) exportRows(c *gin.Context) ([][]string, bool) {
	user, ok := currentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
		return nil, false
	}
	snap, err := h.App.LoadAll(c.Request.Context(), user.ID)
	if err != nil {
		util.Fail(c, err)
		return nil, false
	}
	running := ledger.RunningBalances(snap.Transactions)
	rows := make([][]string, 0, len(snap.Transactions))
	for i, t := range snap.Transactions {
		reconciled := "no"
		if t.IsReconciled {
			reconciled = "yes"
		}
		rows = append(rows, []string{
			t.Date,
			t.Description,
			string(t.Type),
			t.Amount.StringFixed(2),
			deref(t.Category),
			deref(t.CheckNumber),
			reconciled,
			running[i].StringFixed(2),
		})
	}
	return rows, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExportCSV 导出账目为 CSV
func (h *ImportExportHandler) ExportCSV(c *gin.Context) {
	rows, ok := h.exportRows(c)
	if !ok {
		return
	}

	// 设置响应头
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"ledger_%s.csv\"",
		time.Now().Format("20060102")))

	// UTF-8 BOM（让 Excel 正确识别编码）
	_, _ = c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write(exportHeaders)
	_ = writer.WriteAll(rows)
}

// ExportXLSX 导出账目为 XLSX
func (h *ImportExportHandler) ExportXLSX(c *gin.Context) {
	rows, ok := h.exportRows(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Ledger"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Fail(c, err)
		return
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	// 设置表头
	for i, hd := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, hd)
	}
	// 写入数据
	for r, row := range rows {
		for i, v := range row {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	// 设置列宽
	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "B", "B", 32)
	_ = f.SetColWidth(sheetName, "C", "G", 12)
	_ = f.SetColWidth(sheetName, "H", "H", 14)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"ledger_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Fail(c, err)
	}
}
