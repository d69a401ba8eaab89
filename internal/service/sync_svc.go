package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"meli_sync_v1_202608/internal/config"
	"meli_sync_v1_202608/internal/model"
	"meli_sync_v1_202608/internal/repository"
	"meli_sync_v1_202608/internal/task"
	"meli_sync_v1_202608/pkg/meli"
)

// ==================== SyncService 商品同步编排 ====================

// offsetFallbackSorts 普通分页模式触顶后的兜底排序序列
// 每换一种排序都从 offset=0 重扫，靠唯一键去重捞取上限之外的商品
var offsetFallbackSorts = []string{"", "start_time_desc", "start_time_asc"}

// SyncOptions 单次同步运行的选项
type SyncOptions struct {
	CBTOnly  bool // 只入库 CBT 前缀的跨境商品
	MaxItems int  // 本次运行扫描商品数上限，0 不限
	MaxPages int  // 本次运行页数上限，0 不限
	Full     bool // 全量模式：详情全部重拉，禁用重复批次早停
	Wait     bool // 同步阻塞跑完整个循环（定时任务与测试使用）
}

// SyncStartResult 同步触发的返回
type SyncStartResult struct {
	RunID      string `json:"run_id"`
	Mode       string `json:"mode"` // scan / offset
	Background bool   `json:"background"`

	// 内联阶段统计（触发请求返回前已处理的部分）
	InlinePages  int   `json:"inline_pages"`
	ItemsScanned int   `json:"items_scanned"`
	ItemsNew     int64 `json:"items_new"`
}

// SyncService 商品同步编排服务
// 职责：凭证校验 -> 任务登记 -> 分页循环（scan / offset 双策略）->
// 去重入库 -> 终止判定；控制面（暂停/恢复/停止）走 JobRegistry
type SyncService struct {
	sellerRepo repository.SellerRepository
	itemRepo   repository.ItemRepository
	client     *meli.Client
	jobs       *task.JobRegistry
	cfg        config.SyncConfig
	logger     *zap.Logger
}

// NewSyncService 创建同步编排服务
func NewSyncService(
	sellerRepo repository.SellerRepository,
	itemRepo repository.ItemRepository,
	client *meli.Client,
	jobs *task.JobRegistry,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		sellerRepo: sellerRepo,
		itemRepo:   itemRepo,
		client:     client,
		jobs:       jobs,
		cfg:        cfg,
		logger:     logger,
	}
}

// syncRun 一次同步运行的全部内部状态，单 goroutine 独占
type syncRun struct {
	seller *model.GlobalSeller
	auth   meli.Auth
	opts   SyncOptions
	runID  string

	// 翻页策略
	cursor  *meli.CursorManager
	useScan bool
	modeSet bool
	offset  int
	sortIdx int

	// 进度计数
	batchIndex   int
	pages        int
	itemsScanned int
	itemsNew     int64
	itemsFailed  int
	dupStreak    int
	streakHold   int // 游标重置后预期重扫的页数，期间零新增不计入判停
	consecFails  int
}

// ==================== 触发 ====================

// StartSync 触发一次商品同步
// 同一卖家最多一个活跃循环，重复触发返回 task.ErrJobRunning。
// 非 Wait 模式先内联处理若干页（触发方立即看到首批结果），
// 剩余部分交给后台 goroutine，其 context 由登记表持有，进程退出时统一取消。
func (s *SyncService) StartSync(ctx context.Context, sellerID int64, opts SyncOptions) (*SyncStartResult, error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("卖家不存在: %w", err)
	}
	if !seller.CredentialValid() {
		return nil, fmt.Errorf("卖家 %s 授权已失效，请重新授权", seller.Nickname)
	}

	runID := uuid.NewString()
	resumeBatch, err := s.jobs.Begin(seller.ID, runID)
	if err != nil {
		return nil, err
	}

	run := &syncRun{
		seller:     seller,
		auth:       meli.Auth{SellerID: seller.MeliSellerID, AccessToken: seller.AccessToken},
		opts:       opts,
		runID:      runID,
		cursor:     meli.NewCursorManager(s.cfg.CursorTTL()),
		batchIndex: resumeBatch,
		// 续跑时 offset 模式从记录批次换算的位置继续；scan 模式反正要重扫
		offset: resumeBatch * s.cfg.PageLimit,
	}
	if resumeBatch > 0 {
		if st, ok := s.jobs.Status(seller.ID); ok {
			run.itemsScanned = st.ItemsScanned
			run.itemsNew = st.ItemsNew
			run.itemsFailed = st.ItemsFailed
			run.dupStreak = st.DupStreak
		}
		s.logger.Info("同步续跑",
			zap.Int64("seller_id", seller.ID),
			zap.Int("resume_batch", resumeBatch))
	}

	// Wait 模式：调用方 context 全程有效，直接跑到终态
	if opts.Wait {
		_, err := s.runLoop(ctx, run, 0)
		return s.resultOf(run, false), err
	}

	// 后台运行的 context 不能挂在触发请求上，请求返回后循环还要继续
	runCtx, cancel := context.WithCancel(context.Background())
	s.jobs.AttachCancel(seller.ID, cancel)

	done, err := s.runLoop(runCtx, run, s.cfg.InlinePages)
	if done || err != nil {
		cancel()
		return s.resultOf(run, false), err
	}

	// 快照必须在后台 goroutine 启动前取，之后 run 归该 goroutine 独占
	result := s.resultOf(run, true)

	go func() {
		defer cancel()
		if _, bgErr := s.runLoop(runCtx, run, 0); bgErr != nil {
			s.logger.Warn("后台同步中止",
				zap.Int64("seller_id", run.seller.ID),
				zap.String("run_id", run.runID),
				zap.Error(bgErr))
		}
	}()

	return result, nil
}

func (s *SyncService) resultOf(run *syncRun, background bool) *SyncStartResult {
	mode := "offset"
	if run.useScan {
		mode = "scan"
	}
	return &SyncStartResult{
		RunID:        run.runID,
		Mode:         mode,
		Background:   background,
		InlinePages:  run.pages,
		ItemsScanned: run.itemsScanned,
		ItemsNew:     run.itemsNew,
	}
}

// ==================== 控制面 ====================

// PauseSync 暂停同步，循环在批次间进入空转
func (s *SyncService) PauseSync(sellerID int64) error {
	return s.jobs.Pause(sellerID)
}

// ResumeSync 恢复被暂停的同步
func (s *SyncService) ResumeSync(sellerID int64) error {
	return s.jobs.Resume(sellerID)
}

// StopSync 停止同步并移除任务登记，下次 start 从头开始
func (s *SyncService) StopSync(sellerID int64) error {
	return s.jobs.Stop(sellerID)
}

// SyncStatus 同步状态快照
type SyncStatus struct {
	SellerID   int64           `json:"seller_id"`
	Nickname   string          `json:"nickname"`
	ItemCount  int64           `json:"item_count"`
	LastSyncAt *time.Time      `json:"last_sync_at"`
	Active     bool            `json:"active"`
	Job        *task.JobStatus `json:"job,omitempty"`
}

// Status 查询卖家同步状态（持久化信息 + 进行中任务快照）
func (s *SyncService) Status(ctx context.Context, sellerID int64) (*SyncStatus, error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("卖家不存在: %w", err)
	}

	st := &SyncStatus{
		SellerID:   seller.ID,
		Nickname:   seller.Nickname,
		ItemCount:  seller.ItemCount,
		LastSyncAt: seller.LastSyncAt,
	}
	if job, ok := s.jobs.Status(seller.ID); ok {
		st.Active = job.Running
		st.Job = &job
	}
	return st, nil
}

// SyncSellerNow 定时任务入口（task.SellerSyncer 实现）
// 同步阻塞跑完，增量模式靠重复批次判停提前收敛
func (s *SyncService) SyncSellerNow(ctx context.Context, sellerID int64, full bool) error {
	_, err := s.StartSync(ctx, sellerID, SyncOptions{Full: full, Wait: true})
	return err
}

// ==================== 同步循环 ====================

// runLoop 分页循环主体
// pageBudget > 0 时最多处理该页数后交还控制权（内联阶段用），
// 返回 done=true 表示运行已达终态（完成/停止/熔断），登记表已收尾。
func (s *SyncService) runLoop(ctx context.Context, run *syncRun, pageBudget int) (bool, error) {
	pagesThisCall := 0

	for {
		if pageBudget > 0 && pagesThisCall >= pageBudget {
			return false, nil
		}

		select {
		case <-ctx.Done():
			s.jobs.Halt(run.seller.ID, "运行被取消")
			return true, ctx.Err()
		default:
		}

		// 批次间检查点：停止优先于暂停
		paused, stopped, ok := s.jobs.Flags(run.seller.ID)
		if !ok {
			return true, nil
		}
		if stopped {
			s.jobs.Finish(run.seller.ID)
			s.logger.Info("同步已停止",
				zap.Int64("seller_id", run.seller.ID),
				zap.String("run_id", run.runID))
			return true, nil
		}
		if paused {
			if err := s.sleep(ctx, s.cfg.PausePoll()); err != nil {
				s.jobs.Halt(run.seller.ID, "运行被取消")
				return true, err
			}
			continue
		}

		wasScan := run.useScan
		page, err := s.fetchPage(ctx, run)
		if err != nil {
			if done, herr := s.handlePageError(ctx, run, err); done {
				return true, herr
			}
			if serr := s.sleep(ctx, s.cfg.PageDelay()); serr != nil {
				s.jobs.Halt(run.seller.ID, "运行被取消")
				return true, serr
			}
			continue
		}
		run.consecFails = 0
		run.pages++
		pagesThisCall++

		// 首页依据估算总量定翻页策略：超过阈值走 scan（无 offset 上限）
		// 首页本身按 offset 拿到的结果照常入库，下一轮再从初始 scan 开始
		if !run.modeSet {
			run.modeSet = true
			if page.Total > s.cfg.ScanThreshold {
				run.useScan = true
				s.logger.Info("目录规模超过阈值，切换 scan 模式",
					zap.Int64("seller_id", run.seller.ID),
					zap.Int("total", page.Total))
			}
		}

		// offset 触顶：换一种排序从头重扫，兜底序列用尽即视为翻页到底
		if page.PaginationLimitReached {
			run.sortIdx++
			if run.sortIdx < len(offsetFallbackSorts) {
				run.offset = 0
				s.logger.Info("offset 触顶，切换排序重扫",
					zap.Int64("seller_id", run.seller.ID),
					zap.String("sort", offsetFallbackSorts[run.sortIdx]))
				continue
			}
			return true, s.complete(ctx, run, "offset 翻页到底")
		}

		if wasScan && page.ScrollID != "" {
			run.cursor.Issue(page.ScrollID)
		}

		newRows, scanned, failed, perr := s.processPage(ctx, run, page.IDs)
		run.itemsScanned += scanned
		run.itemsNew += newRows
		run.itemsFailed += failed
		if scanned > 0 {
			if newRows > 0 {
				run.dupStreak = 0
			} else if run.streakHold == 0 {
				run.dupStreak++
			}
		}
		if run.streakHold > 0 {
			run.streakHold--
		}
		run.batchIndex++
		s.jobs.UpdateProgress(run.seller.ID, task.Progress{
			BatchIndex:   run.batchIndex,
			PagesScanned: run.pages,
			ItemsScanned: run.itemsScanned,
			ItemsNew:     run.itemsNew,
			ItemsFailed:  run.itemsFailed,
			DupStreak:    run.dupStreak,
		})

		if perr != nil {
			if done, herr := s.handlePageError(ctx, run, perr); done {
				return true, herr
			}
			if serr := s.sleep(ctx, s.cfg.PageDelay()); serr != nil {
				s.jobs.Halt(run.seller.ID, "运行被取消")
				return true, serr
			}
			continue
		}

		// ---- 终止判定 ----

		// scan 模式上游不再签发游标即为最后一页
		if wasScan && page.ScrollID == "" {
			return true, s.complete(ctx, run, "scan 扫描完成")
		}

		// offset 模式本页不满即为最后一页
		if !wasScan && !run.useScan {
			if len(page.IDs) < s.cfg.PageLimit {
				return true, s.complete(ctx, run, "offset 扫描完成")
			}
			run.offset += s.cfg.PageLimit
		}

		// 增量模式：连续零新增批次达到阈值，认为目录已收敛
		if !run.opts.Full && run.dupStreak >= s.cfg.DupStreakLimit {
			return true, s.complete(ctx, run, "目录已收敛")
		}

		if run.opts.MaxPages > 0 && run.pages >= run.opts.MaxPages {
			return true, s.complete(ctx, run, "达到页数上限")
		}
		if run.opts.MaxItems > 0 && run.itemsScanned >= run.opts.MaxItems {
			return true, s.complete(ctx, run, "达到商品数上限")
		}

		if serr := s.sleep(ctx, s.cfg.PageDelay()); serr != nil {
			s.jobs.Halt(run.seller.ID, "运行被取消")
			return true, serr
		}
	}
}

// fetchPage 按当前翻页策略拉一页商品 ID
func (s *SyncService) fetchPage(ctx context.Context, run *syncRun) (*meli.SearchPage, error) {
	q := meli.SearchQuery{Limit: s.cfg.PageLimit}
	if run.useScan {
		q.UseScan = true
		if token, ok := run.cursor.Current(); ok {
			q.ScrollID = token
		}
		if run.cursor.Stale() {
			// 超过名义有效期照常使用，上游拒绝时才重置
			s.logger.Debug("游标超过名义有效期", zap.Int64("seller_id", run.seller.ID))
		}
	} else {
		q.Offset = run.offset
		q.Sort = offsetFallbackSorts[run.sortIdx]
	}
	return s.client.SearchPage(ctx, run.auth, q)
}

// handlePageError 页级错误处理，返回 done=true 表示运行终止且登记表已收尾
// 分类处理：
//   - 游标过期：重置游标从头重扫，不计入失败（去重保证重扫安全）
//   - 凭证过期：标记卖家 token 状态并熔断，绝不自动重试
//   - 参数非法：直接熔断
//   - 其余（网络 / 重试耗尽的 503 / 二次 429）：连续失败计数，达到预算即熔断
func (s *SyncService) handlePageError(ctx context.Context, run *syncRun, err error) (bool, error) {
	switch meli.KindOf(err) {
	case meli.KindCursorExpired:
		run.cursor.Reset()
		// 重扫的前段是已入库页，零新增不代表目录收敛
		run.dupStreak = 0
		run.streakHold = run.pages
		s.logger.Warn("游标被上游拒绝，重置后从头扫描",
			zap.Int64("seller_id", run.seller.ID),
			zap.String("run_id", run.runID))
		return false, nil

	case meli.KindCredentialExpired:
		if uerr := s.sellerRepo.UpdateTokenStatus(ctx, run.seller.ID, model.TokenStatusExpired); uerr != nil {
			s.logger.Error("标记凭证状态失败", zap.Int64("seller_id", run.seller.ID), zap.Error(uerr))
		}
		s.jobs.Halt(run.seller.ID, "凭证过期，需要重新授权")
		s.logger.Error("凭证过期，同步熔断",
			zap.Int64("seller_id", run.seller.ID),
			zap.String("run_id", run.runID))
		return true, err

	case meli.KindValidation:
		s.jobs.Halt(run.seller.ID, err.Error())
		return true, err

	default:
		run.consecFails++
		s.logger.Warn("页级请求失败",
			zap.Int64("seller_id", run.seller.ID),
			zap.Int("consec_fails", run.consecFails),
			zap.Error(err))
		if run.consecFails >= s.cfg.MaxConsecFails {
			s.jobs.Halt(run.seller.ID, fmt.Sprintf("连续失败 %d 次: %v", run.consecFails, err))
			return true, err
		}
		return false, nil
	}
}

// processPage 处理一页商品 ID：CBT 过滤 -> 去重 -> 批量详情 -> 分块入库
// 返回本页新增行数、有效扫描数、详情失败数
func (s *SyncService) processPage(ctx context.Context, run *syncRun, ids []string) (newRows int64, scanned, failed int, err error) {
	pageIDs := ids
	if run.opts.CBTOnly {
		pageIDs = make([]string, 0, len(ids))
		for _, id := range ids {
			if model.IsCBTItemID(id) {
				pageIDs = append(pageIDs, id)
			}
		}
	}
	scanned = len(pageIDs)
	if scanned == 0 {
		return 0, 0, 0, nil
	}

	// 增量模式只拉本地未知商品的详情；全量模式全部重拉刷新字段
	fetchIDs := pageIDs
	if !run.opts.Full {
		unknown, ferr := s.itemRepo.FilterUnknown(ctx, run.seller.MeliSellerID, pageIDs)
		if ferr != nil {
			return 0, scanned, 0, ferr
		}
		fetchIDs = unknown
	}
	if len(fetchIDs) == 0 {
		// 整页已知，构成一个零新增批次
		return 0, scanned, 0, nil
	}

	details, derr := s.client.FetchDetails(ctx, run.auth, fetchIDs)
	if derr != nil && len(details) == 0 {
		return 0, scanned, 0, derr
	}

	now := time.Now()
	rows := make([]model.Item, 0, len(details))
	succeeded := make(map[string]struct{}, len(details))
	for _, res := range details {
		if res.Code != 200 {
			continue
		}
		var dto meli.ItemDetailDTO
		if uerr := json.Unmarshal(res.Body, &dto); uerr != nil || dto.ID == "" {
			continue
		}
		succeeded[dto.ID] = struct{}{}
		rows = append(rows, *s.toItemModel(run, &dto, res.Body, now))
	}

	// 失败条目按成功体里回显的商品 ID 反推，不依赖结果顺序；
	// 拉取中途出错时只在已覆盖的前缀里找，后面的块由页级重试补
	covered := fetchIDs
	if derr != nil && len(details) < len(fetchIDs) {
		covered = fetchIDs[:len(details)]
	}
	var failedIDs []string
	for _, id := range covered {
		if _, ok := succeeded[id]; !ok {
			failedIDs = append(failedIDs, id)
		}
	}

	// 入库按配置分块，每块一个事务
	for start := 0; start < len(rows); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		n, uerr := s.itemRepo.BatchUpsert(ctx, chunk)
		if uerr != nil {
			return newRows, scanned, len(failedIDs), uerr
		}
		newRows += n
	}

	if len(failedIDs) > 0 {
		if uerr := s.itemRepo.UpdateSyncError(ctx, run.seller.MeliSellerID, failedIDs, "详情拉取失败"); uerr != nil {
			s.logger.Warn("写入商品诊断字段失败", zap.Error(uerr))
		}
	}

	// FetchDetails 的部分失败在入库后再上抛，已拉到的详情不浪费
	return newRows, scanned, len(failedIDs), derr
}

// complete 运行自然完成：刷新卖家同步水位并移除任务登记
func (s *SyncService) complete(ctx context.Context, run *syncRun, reason string) error {
	count, err := s.itemRepo.CountBySeller(ctx, run.seller.MeliSellerID)
	if err == nil {
		err = s.sellerRepo.UpdateLastSync(ctx, run.seller.ID, time.Now(), count)
	}
	if err != nil {
		s.logger.Warn("刷新卖家同步水位失败", zap.Int64("seller_id", run.seller.ID), zap.Error(err))
	}

	s.jobs.Finish(run.seller.ID)
	s.logger.Info("同步完成",
		zap.Int64("seller_id", run.seller.ID),
		zap.String("run_id", run.runID),
		zap.String("reason", reason),
		zap.Int("pages", run.pages),
		zap.Int("items_scanned", run.itemsScanned),
		zap.Int64("items_new", run.itemsNew),
		zap.Int("items_failed", run.itemsFailed))
	return nil
}

// toItemModel 上游详情 DTO -> 本地镜像行
func (s *SyncService) toItemModel(run *syncRun, dto *meli.ItemDetailDTO, raw json.RawMessage, now time.Time) *model.Item {
	sellerID := dto.SellerID
	if sellerID == 0 {
		sellerID = run.seller.MeliSellerID
	}
	return &model.Item{
		SellerID:          sellerID,
		MeliItemID:        dto.ID,
		SiteID:            dto.SiteID,
		Title:             dto.Title,
		Price:             dto.Price,
		CurrencyID:        dto.CurrencyID,
		CategoryID:        dto.CategoryID,
		AvailableQuantity: dto.AvailableQuantity,
		SoldQuantity:      dto.SoldQuantity,
		Status:            dto.Status,
		SubStatus:         pq.StringArray(dto.SubStatus),
		ListingTypeID:     dto.ListingTypeID,
		Condition:         dto.Condition,
		Permalink:         dto.Permalink,
		ThumbnailURL:      dto.ThumbnailURL(),
		StartTime:         parseMeliTime(dto.StartTime),
		StopTime:          parseMeliTime(dto.StopTime),
		EndTime:           parseMeliTime(dto.EndTime),
		LastSyncedAt:      &now,
		SyncError:         "",
		RawPayload:        datatypes.JSON(raw),
	}
}

// parseMeliTime 解析上游 RFC3339 时间串，空串与解析失败返回 nil
func parseMeliTime(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

// sleep 可取消的等待
func (s *SyncService) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
