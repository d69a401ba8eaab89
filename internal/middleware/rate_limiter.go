package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ==================== SyncRateLimiter 同步限流器 ====================

// SyncRateLimiter 同步触发限流器
// 防止用户频繁触发手动同步导致上游 API 限流
type SyncRateLimiter struct {
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewSyncRateLimiter 创建限流器
// 作为依赖注入路由层，每个进程一个实例即可
func NewSyncRateLimiter() *SyncRateLimiter {
	return &SyncRateLimiter{}
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时顺带记下执行时间
// key: 限流键，如 "seller:123:item"
// interval: 冷却间隔
func (r *SyncRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流
func (r *SyncRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key 生成工具 ====================

// SyncType 同步类型
type SyncType string

const (
	SyncTypeItem SyncType = "item"
	SyncTypeFull SyncType = "full"
)

// 各类型的默认冷却间隔
var defaultIntervals = map[SyncType]time.Duration{
	SyncTypeItem: 1 * time.Minute,
	SyncTypeFull: 10 * time.Minute,
}

// GetInterval 获取同步类型的默认冷却间隔
func GetInterval(syncType SyncType) time.Duration {
	if d, ok := defaultIntervals[syncType]; ok {
		return d
	}
	return 1 * time.Minute
}

// SellerSyncKey 生成卖家级同步 Key
func SellerSyncKey(sellerID int64, syncType SyncType) string {
	return fmt.Sprintf("seller:%d:%s", sellerID, syncType)
}
