package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meli_sync_v1_202608/internal/task"
)

type TaskController struct {
	taskManager *task.TaskManager
}

func NewTaskController(taskManager *task.TaskManager) *TaskController {
	return &TaskController{taskManager: taskManager}
}

// ==================== 全局任务 ====================

// TriggerAll 触发所有活跃卖家的商品同步
// @Summary 立即对所有活跃卖家执行一轮商品同步
// @Tags Task
// @Param full query bool false "全量模式"
// @Router /api/tasks/item-sync [post]
func (ctrl *TaskController) TriggerAll(c *gin.Context) {
	full := c.Query("full") == "true"

	if err := ctrl.taskManager.TriggerAllSync(full); err != nil {
		if errors.Is(err, task.ErrTaskDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": 503, "message": "商品同步任务未启用"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "同步任务已提交", "data": gin.H{"full": full}})
}

// Status 查询后台任务开关状态
// @Summary 查询后台任务启用情况
// @Tags Task
// @Router /api/tasks/status [get]
func (ctrl *TaskController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": ctrl.taskManager.Status()})
}
