package meli

import "time"

// ==================== CursorManager 扫描游标管理 ====================

// DefaultCursorTTL 上游 scroll 游标的名义有效期
const DefaultCursorTTL = 5 * time.Minute

// CursorManager 管理一次同步运行中的单个 scan 游标生命周期
// 状态机：None → Issued → (上游拒绝) → None
//
// 注意：本地检测到游标超过 TTL 时并不主动丢弃 —— 实测上游游标经常
// 略超名义有效期仍然可用，提前丢弃会白白损失已推进的扫描进度。
// 只有上游明确拒绝（游标类 400）时才 Reset，下一次搜索退回初始请求。
// 因为入库按 (seller_id, meli_item_id) 幂等去重，从头重扫是安全的。
//
// 非并发安全：每个同步循环独占一个实例。
type CursorManager struct {
	token    string
	issuedAt time.Time
	ttl      time.Duration

	now func() time.Time // 测试钩子
}

// NewCursorManager 创建游标管理器，ttl <= 0 时使用默认 5 分钟
func NewCursorManager(ttl time.Duration) *CursorManager {
	if ttl <= 0 {
		ttl = DefaultCursorTTL
	}
	return &CursorManager{ttl: ttl, now: time.Now}
}

// Current 返回当前游标；ok=false 表示处于 None 状态，下一次搜索是初始请求
func (m *CursorManager) Current() (token string, ok bool) {
	return m.token, m.token != ""
}

// Issue 记录上游签发的新游标
func (m *CursorManager) Issue(token string) {
	m.token = token
	m.issuedAt = m.now()
}

// Stale 判断游标是否已超过名义 TTL（仅用于日志，不触发丢弃）
func (m *CursorManager) Stale() bool {
	if m.token == "" {
		return false
	}
	return m.now().Sub(m.issuedAt) >= m.ttl
}

// Reset 丢弃游标，回到 None 状态
// 仅在上游明确拒绝游标时调用
func (m *CursorManager) Reset() {
	m.token = ""
	m.issuedAt = time.Time{}
}
