package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meli_sync_v1_202608/internal/api/dto"
	"meli_sync_v1_202608/internal/service"
	"meli_sync_v1_202608/internal/task"
)

type SyncController struct {
	syncService *service.SyncService
}

func NewSyncController(syncService *service.SyncService) *SyncController {
	return &SyncController{syncService: syncService}
}

// sellerIDParam 解析路径里的卖家 ID
func sellerIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "无效的卖家 ID"})
		return 0, false
	}
	return id, true
}

// ==================== 同步触发 ====================

// Start 触发商品同步
// @Summary 触发卖家商品同步
// @Tags Sync
// @Param id path int true "卖家ID"
// @Param body body dto.StartSyncReq false "同步选项"
// @Success 200 {object} dto.StartSyncResp
// @Router /api/sellers/{id}/sync/start [post]
func (ctrl *SyncController) Start(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	var req dto.StartSyncReq
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	result, err := ctrl.syncService.StartSync(c.Request.Context(), sellerID, service.SyncOptions{
		CBTOnly:  req.CBTOnly,
		Full:     req.Full,
		MaxItems: req.MaxItems,
		MaxPages: req.MaxPages,
	})
	if err != nil {
		if errors.Is(err, task.ErrJobRunning) {
			c.JSON(http.StatusConflict, gin.H{"code": 409, "message": "该卖家已有同步任务在运行"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "触发同步失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": result})
}

// ==================== 同步控制 ====================

// Pause 暂停同步
// @Summary 暂停卖家商品同步
// @Tags Sync
// @Param id path int true "卖家ID"
// @Router /api/sellers/{id}/sync/pause [post]
func (ctrl *SyncController) Pause(c *gin.Context) {
	ctrl.control(c, ctrl.syncService.PauseSync, "已暂停")
}

// Resume 恢复同步
// @Summary 恢复被暂停的商品同步
// @Tags Sync
// @Param id path int true "卖家ID"
// @Router /api/sellers/{id}/sync/resume [post]
func (ctrl *SyncController) Resume(c *gin.Context) {
	ctrl.control(c, ctrl.syncService.ResumeSync, "已恢复")
}

// Stop 停止同步
// @Summary 停止卖家商品同步（下次从头开始）
// @Tags Sync
// @Param id path int true "卖家ID"
// @Router /api/sellers/{id}/sync/stop [post]
func (ctrl *SyncController) Stop(c *gin.Context) {
	ctrl.control(c, ctrl.syncService.StopSync, "已停止")
}

func (ctrl *SyncController) control(c *gin.Context, op func(int64) error, okMsg string) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	if err := op(sellerID); err != nil {
		if errors.Is(err, task.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "该卖家没有进行中的同步任务"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": okMsg})
}

// ==================== 状态查询 ====================

// Status 查询同步状态
// @Summary 查询卖家同步状态
// @Tags Sync
// @Param id path int true "卖家ID"
// @Router /api/sellers/{id}/sync/status [get]
func (ctrl *SyncController) Status(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	status, err := ctrl.syncService.Status(c.Request.Context(), sellerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": status})
}
