package task

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"meli_sync_v1_202608/internal/repository"
)

// ==================== ItemSyncTask 商品同步任务 ====================

// SellerSyncer 同步编排入口
// 接口定义在 task 包，由 service 层实现并注入，避免 task -> service 的反向依赖
type SellerSyncer interface {
	// SyncSellerNow 同步阻塞执行一次完整的商品同步
	// full 为 true 时禁用重复批次早停，跑完整个目录
	SyncSellerNow(ctx context.Context, sellerID int64, full bool) error
}

// ItemSyncTask 商品同步定时任务
// 同步策略：
//   - 增量同步：每 30 分钟，靠重复批次判停提前收敛
//   - 全量同步：每日凌晨 3 点，扫完整个目录
type ItemSyncTask struct {
	sellerRepo repository.SellerRepository
	syncer     SellerSyncer
	jobs       *JobRegistry
	cron       *cron.Cron

	// 并发控制
	concurrencyLimit int
	sleepTime        time.Duration

	// cron 表达式（带秒）
	incrementalSpec string
	fullSpec        string
}

// NewItemSyncTask 创建商品同步任务
func NewItemSyncTask(
	sellerRepo repository.SellerRepository,
	syncer SellerSyncer,
	jobs *JobRegistry,
) *ItemSyncTask {
	return &ItemSyncTask{
		sellerRepo:       sellerRepo,
		syncer:           syncer,
		jobs:             jobs,
		cron:             cron.New(cron.WithSeconds()),
		concurrencyLimit: 3,
		sleepTime:        300 * time.Millisecond,
		incrementalSpec:  "0 */30 * * * *",
		fullSpec:         "0 0 3 * * *",
	}
}

// SetConcurrency 设置并发参数
func (t *ItemSyncTask) SetConcurrency(limit int, sleep time.Duration) {
	t.concurrencyLimit = limit
	t.sleepTime = sleep
}

// SetSchedule 设置 cron 表达式
func (t *ItemSyncTask) SetSchedule(incremental, full string) {
	if incremental != "" {
		t.incrementalSpec = incremental
	}
	if full != "" {
		t.fullSpec = full
	}
}

// Start 启动定时任务
func (t *ItemSyncTask) Start() {
	// 首次执行（延迟 60 秒，等服务完全就绪）
	go func() {
		time.Sleep(60 * time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		log.Println("[ItemSyncTask] 执行首次商品同步...")
		t.syncAllSellers(ctx, false)
	}()

	// 增量同步
	_, _ = t.cron.AddFunc(t.incrementalSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Hour)
		defer cancel()
		t.syncAllSellers(ctx, false)
	})

	// 全量同步
	_, _ = t.cron.AddFunc(t.fullSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
		defer cancel()
		log.Println("[ItemSyncTask] 开始每日全量商品同步...")
		t.syncAllSellers(ctx, true)
	})

	t.cron.Start()
	log.Printf("[ItemSyncTask] 已启动 (增量 %s / 全量 %s)", t.incrementalSpec, t.fullSpec)
}

// Stop 停止任务
func (t *ItemSyncTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[ItemSyncTask] 已停止")
}

// syncAllSellers 同步所有活跃卖家的商品
func (t *ItemSyncTask) syncAllSellers(ctx context.Context, full bool) {
	syncType := "增量"
	if full {
		syncType = "全量"
	}
	log.Printf("[ItemSyncTask] 开始%s商品同步...", syncType)

	sellers, err := t.sellerRepo.ListActive(ctx, 1000)
	if err != nil {
		log.Printf("[ItemSyncTask] 获取卖家列表失败: %v", err)
		return
	}

	if len(sellers) == 0 {
		log.Println("[ItemSyncTask] 无活跃卖家需要同步")
		return
	}

	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup

	var (
		successCount int
		skipCount    int
		failCount    int
		mu           sync.Mutex
	)

	log.Printf("[ItemSyncTask] 开始处理 %d 个卖家", len(sellers))

	for i := range sellers {
		seller := sellers[i]
		select {
		case <-ctx.Done():
			log.Println("[ItemSyncTask] 任务超时停止")
			wg.Wait()
			return
		default:
		}

		// 手动触发的同步还在跑的卖家直接跳过，不排队等锁
		if t.jobs.IsRunning(seller.ID) {
			mu.Lock()
			skipCount++
			mu.Unlock()
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		time.Sleep(t.sleepTime)

		go func(sellerID int64, nickname string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := t.syncer.SyncSellerNow(ctx, sellerID, full)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case errors.Is(err, ErrJobRunning):
				skipCount++
			case err != nil:
				log.Printf("[ItemSyncTask] 卖家 %s(%d) 同步失败: %v", nickname, sellerID, err)
				failCount++
			default:
				successCount++
			}
		}(seller.ID, seller.Nickname)
	}

	wg.Wait()
	log.Printf("[ItemSyncTask] %s同步完成: 成功 %d, 跳过 %d, 失败 %d",
		syncType, successCount, skipCount, failCount)
}

// ==================== 手动触发 ====================

// SyncSellerNow 立即同步单个卖家
func (t *ItemSyncTask) SyncSellerNow(ctx context.Context, sellerID int64, full bool) error {
	return t.syncer.SyncSellerNow(ctx, sellerID, full)
}

// SyncAllNow 立即同步所有活跃卖家
func (t *ItemSyncTask) SyncAllNow(full bool) {
	go func() {
		timeout := 1 * time.Hour
		if full {
			timeout = 6 * time.Hour
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		t.syncAllSellers(ctx, full)
	}()
}
