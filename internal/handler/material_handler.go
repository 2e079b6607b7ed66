package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studymind-go/internal/service"
	"studymind-go/pkg/log"
)

// MaterialHandler 负责学习资料的上传、处理和问答。
type MaterialHandler struct {
	materialService service.MaterialService
}

// NewMaterialHandler 创建一个新的 MaterialHandler 实例。
func NewMaterialHandler(materialService service.MaterialService) *MaterialHandler {
	return &MaterialHandler{materialService: materialService}
}

type processMaterialRequest struct {
	MaterialID string `json:"materialId"`
}

type queryMaterialRequest struct {
	MaterialID string `json:"materialId"`
	Question   string `json:"question"`
}

// Process 处理 POST /process-material，同步完成提取和切块。
func (h *MaterialHandler) Process(c *gin.Context) {
	var req processMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.MaterialID) == "" {
		badRequest(c, "materialId is required")
		return
	}
	if !validID(req.MaterialID) {
		abortWithError(c, service.ErrMaterialNotFound)
		return
	}

	chunks, err := h.materialService.Process(c.Request.Context(), userIDFrom(c), req.MaterialID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chunks": chunks})
}

// Query 处理 POST /query-material，把网关的 SSE 流转发给浏览器。
func (h *MaterialHandler) Query(c *gin.Context) {
	var req queryMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.MaterialID) == "" || strings.TrimSpace(req.Question) == "" {
		badRequest(c, "materialId and question are required")
		return
	}
	if !validID(req.MaterialID) {
		abortWithError(c, service.ErrMaterialNotFound)
		return
	}

	body, err := h.materialService.Query(c.Request.Context(), userIDFrom(c), req.MaterialID, req.Question)
	if err != nil {
		abortWithError(c, err)
		return
	}
	streamSSE(c, body)
}

// Upload 处理 POST /api/v1/materials 的 multipart 上传。
func (h *MaterialHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}

	material, err := h.materialService.Upload(c.Request.Context(), userIDFrom(c), file)
	if err != nil {
		abortWithError(c, err)
		return
	}
	log.Infof("[MaterialHandler] 用户 %s 上传资料 %s", material.UserID, material.FileName)
	ok(c, "上传成功", material)
}

// List 处理 GET /api/v1/materials。
func (h *MaterialHandler) List(c *gin.Context) {
	materials, err := h.materialService.List(c.Request.Context(), userIDFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	ok(c, "获取资料列表成功", materials)
}
