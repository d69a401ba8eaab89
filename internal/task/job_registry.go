package task

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ==================== JobRegistry 同步任务登记表 ====================

var (
	// ErrJobRunning 同一卖家最多一个活跃同步循环
	ErrJobRunning = errors.New("该卖家已有同步任务在运行")
	// ErrJobNotFound 目标卖家没有登记中的同步任务
	ErrJobNotFound = errors.New("该卖家没有进行中的同步任务")
)

// JobStatus 任务状态快照（状态接口直接返回该结构）
type JobStatus struct {
	SellerID     int64     `json:"seller_id"`
	RunID        string    `json:"run_id"`
	Running      bool      `json:"running"`
	Paused       bool      `json:"paused"`
	Stopped      bool      `json:"stopped"`
	BatchIndex   int       `json:"batch_index"`
	PagesScanned int       `json:"pages_scanned"`
	ItemsScanned int       `json:"items_scanned"`
	ItemsNew     int64     `json:"items_new"`
	ItemsFailed  int       `json:"items_failed"`
	DupStreak    int       `json:"dup_streak"`
	HaltedReason string    `json:"halted_reason,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// Progress 同步循环每批回写的进度
type Progress struct {
	BatchIndex   int
	PagesScanned int
	ItemsScanned int
	ItemsNew     int64
	ItemsFailed  int
	DupStreak    int
}

// jobEntry 登记条目：快照 + 运行句柄
// done 在循环退出时关闭，状态轮询方和测试可以 join
type jobEntry struct {
	JobStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// JobRegistry 按卖家登记同步任务的状态机
// 作为显式依赖注入编排层，不做包级单例，测试可以按用例隔离实例。
// 条目只存在于进程内：进程重启会静默丢弃暂停中/进行中的任务。
type JobRegistry struct {
	mu   sync.Mutex
	jobs map[int64]*jobEntry
}

// NewJobRegistry 创建登记表
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[int64]*jobEntry)}
}

// ==================== 生命周期 ====================

// Begin 登记一次同步运行
// 无条目或条目已 stopped 时从第 0 批新建；
// 存在非活跃的残留条目（暂停后进程内恢复 / 熔断后重启）时从记录的批次续跑。
// 已有活跃循环时返回 ErrJobRunning —— 每个卖家最多一个循环。
func (r *JobRegistry) Begin(sellerID int64, runID string) (resumeBatch int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.jobs[sellerID]; ok {
		if entry.Running {
			return 0, ErrJobRunning
		}
		if !entry.Stopped {
			// 续跑：保留进度计数，换新 RunID 和句柄
			entry.Running = true
			entry.Paused = false
			entry.RunID = runID
			entry.HaltedReason = ""
			entry.StartedAt = time.Now()
			entry.done = make(chan struct{})
			entry.cancel = nil
			return entry.BatchIndex, nil
		}
		// stopped 残留视同不存在
	}

	r.jobs[sellerID] = &jobEntry{
		JobStatus: JobStatus{
			SellerID:  sellerID,
			RunID:     runID,
			Running:   true,
			StartedAt: time.Now(),
		},
		done: make(chan struct{}),
	}
	return 0, nil
}

// AttachCancel 绑定运行句柄（进程退出时统一取消）
func (r *JobRegistry) AttachCancel(sellerID int64, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.jobs[sellerID]; ok {
		entry.cancel = cancel
	}
}

// Finish 自然完成或 stop 确认：关闭句柄并移除条目
func (r *JobRegistry) Finish(sellerID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.jobs[sellerID]; ok {
		entry.Running = false
		close(entry.done)
		delete(r.jobs, sellerID)
	}
}

// Halt 运行中止但保留条目（凭证过期、重试预算耗尽）
// 运营处理后再次 start 会从记录的批次续跑
func (r *JobRegistry) Halt(sellerID int64, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.jobs[sellerID]; ok {
		entry.Running = false
		entry.HaltedReason = reason
		close(entry.done)
	}
}

// ==================== 控制 ====================

// Pause 置暂停标记，循环在批次间轮询到后进入空转
func (r *JobRegistry) Pause(sellerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[sellerID]
	if !ok {
		return ErrJobNotFound
	}
	entry.Paused = true
	return nil
}

// Resume 清暂停标记
func (r *JobRegistry) Resume(sellerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[sellerID]
	if !ok {
		return ErrJobNotFound
	}
	entry.Paused = false
	return nil
}

// Stop 置停止标记并清除暂停（空转中的循环要能醒来退出而不是永远挂着）
// 停止是协作式的：进行中的上游调用不会被打断，循环在下一次检查点退出
func (r *JobRegistry) Stop(sellerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[sellerID]
	if !ok {
		return ErrJobNotFound
	}
	entry.Stopped = true
	entry.Paused = false
	return nil
}

// ==================== 查询 ====================

// Flags 返回循环在检查点需要的控制标记
func (r *JobRegistry) Flags(sellerID int64) (paused, stopped, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, found := r.jobs[sellerID]
	if !found {
		return false, false, false
	}
	return entry.Paused, entry.Stopped, true
}

// IsRunning 是否有活跃循环（定时任务用来跳过手动触发中的卖家）
func (r *JobRegistry) IsRunning(sellerID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[sellerID]
	return ok && entry.Running
}

// Status 返回状态快照
func (r *JobRegistry) Status(sellerID int64) (JobStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[sellerID]
	if !ok {
		return JobStatus{}, false
	}
	return entry.JobStatus, true
}

// Done 返回可 join 的完成信号
func (r *JobRegistry) Done(sellerID int64) (<-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[sellerID]
	if !ok {
		return nil, false
	}
	return entry.done, true
}

// UpdateProgress 回写循环进度
func (r *JobRegistry) UpdateProgress(sellerID int64, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[sellerID]
	if !ok {
		return
	}
	entry.BatchIndex = p.BatchIndex
	entry.PagesScanned = p.PagesScanned
	entry.ItemsScanned = p.ItemsScanned
	entry.ItemsNew = p.ItemsNew
	entry.ItemsFailed = p.ItemsFailed
	entry.DupStreak = p.DupStreak
}

// CancelAll 进程退出时取消所有运行句柄
func (r *JobRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.jobs {
		if entry.cancel != nil {
			entry.cancel()
		}
	}
}
