package task

import (
	"log"
	"time"

	"meli_sync_v1_202608/internal/repository"
)

// ==================== TaskManager 业务同步任务管理器 ====================

// TaskManager 统一管理后台同步任务
// 管理范围：商品定时同步 + 同步任务登记表的进程级收尾
type TaskManager struct {
	itemTask *ItemSyncTask
	jobs     *JobRegistry
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	SellerRepo repository.SellerRepository
	Syncer     SellerSyncer
	Jobs       *JobRegistry
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	ItemEnabled     bool
	ItemConcurrency int
	IncrementalSpec string
	FullSpec        string
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		ItemEnabled:     true,
		ItemConcurrency: 3,
		IncrementalSpec: "0 */30 * * * *",
		FullSpec:        "0 0 3 * * *",
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{jobs: deps.Jobs}

	// 商品同步任务
	if cfg.ItemEnabled && deps.Syncer != nil {
		tm.itemTask = NewItemSyncTask(deps.SellerRepo, deps.Syncer, deps.Jobs)
		tm.itemTask.SetConcurrency(cfg.ItemConcurrency, 300*time.Millisecond)
		tm.itemTask.SetSchedule(cfg.IncrementalSpec, cfg.FullSpec)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	log.Println("[TaskManager] 正在启动后台同步任务...")

	if tm.itemTask != nil {
		tm.itemTask.Start()
	}

	log.Println("[TaskManager] 后台同步任务已全部启动")
}

// Stop 停止所有任务
// 先停定时器，再取消所有进行中的同步循环
func (tm *TaskManager) Stop() {
	log.Println("[TaskManager] 正在停止后台同步任务...")

	if tm.itemTask != nil {
		tm.itemTask.Stop()
	}
	if tm.jobs != nil {
		tm.jobs.CancelAll()
	}

	log.Println("[TaskManager] 后台同步任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerAllSync 触发所有活跃卖家商品同步（后台异步执行）
// 单卖家的手动触发走同步控制面，不在这里重复提供
func (tm *TaskManager) TriggerAllSync(full bool) error {
	if tm.itemTask == nil {
		return ErrTaskDisabled
	}
	tm.itemTask.SyncAllNow(full)
	return nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"item_sync": tm.itemTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
