package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"recon-ledger/internal/ledger"
	"recon-ledger/internal/util"

	"github.com/gin-gonic/gin"
)

// BackupHandler 负责整库导出/导入接口
type BackupHandler struct {
	App       *ledger.App
	BackupDir string
}

// NewBackupHandler 构造函数
func NewBackupHandler(app *ledger.App, backupDir string) *BackupHandler {
	return &BackupHandler{App: app, BackupDir: backupDir}
}

const backupExt = ".rlbak"

type storeArchiveReq struct {
	Path     string `json:"path" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// resolve places bare file names in the backup directory.
func (h *BackupHandler) resolve(p string) string {
	if p != filepath.Base(p) || h.BackupDir == "" {
		return p
	}
	if filepath.Ext(p) == "" {
		p += backupExt
	}
	return filepath.Join(h.BackupDir, p)
}

// ExportStore POST /api/store/export
func (h *BackupHandler) ExportStore(c *gin.Context) {
	var req storeArchiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	path := h.resolve(req.Path)
	if err := h.App.ExportStore(c.Request.Context(), path, req.Password); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"path": path})
}

// ImportStore POST /api/store/import
func (h *BackupHandler) ImportStore(c *gin.Context) {
	var req storeArchiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if err := h.App.ImportStore(c.Request.Context(), h.resolve(req.Path), req.Password); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"message": "store restored"})
}

type backupItem struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ListBackups GET /api/store/backups 列出备份目录中的导出文件，新的在前
func (h *BackupHandler) ListBackups(c *gin.Context) {
	entries, err := os.ReadDir(h.BackupDir)
	if err != nil && !os.IsNotExist(err) {
		util.Fail(c, err)
		return
	}
	list := make([]backupItem, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), backupExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		list = append(list, backupItem{Name: e.Name(), Size: info.Size(), CreatedAt: info.ModTime()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	util.Success(c, util.Response{"backups": list})
}
