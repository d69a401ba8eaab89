package meli

import (
	"testing"
	"time"
)

func TestCursorManager_IssueAndCurrent(t *testing.T) {
	m := NewCursorManager(0)

	if _, ok := m.Current(); ok {
		t.Error("初始状态不应有游标")
	}

	m.Issue("scroll-token-1")
	token, ok := m.Current()
	if !ok {
		t.Fatal("Issue 后应有游标")
	}
	if token != "scroll-token-1" {
		t.Errorf("Current() = %q, want %q", token, "scroll-token-1")
	}
}

func TestCursorManager_Reset(t *testing.T) {
	m := NewCursorManager(0)
	m.Issue("scroll-token-1")
	m.Reset()

	if _, ok := m.Current(); ok {
		t.Error("Reset 后不应有游标")
	}
}

func TestCursorManager_Stale(t *testing.T) {
	m := NewCursorManager(5 * time.Minute)

	now := time.Now()
	m.now = func() time.Time { return now }

	if m.Stale() {
		t.Error("无游标时不应为过期")
	}

	m.Issue("scroll-token-1")
	if m.Stale() {
		t.Error("刚签发的游标不应为过期")
	}

	// 时间推到 TTL 之后
	m.now = func() time.Time { return now.Add(6 * time.Minute) }
	if !m.Stale() {
		t.Error("超过 TTL 的游标应判定为过期")
	}

	// 过期只是日志提示，游标仍然可用
	if token, ok := m.Current(); !ok || token != "scroll-token-1" {
		t.Error("过期游标在上游拒绝前应继续可用")
	}
}

func TestCursorManager_DefaultTTL(t *testing.T) {
	m := NewCursorManager(0)
	if m.ttl != DefaultCursorTTL {
		t.Errorf("默认 TTL = %v, want %v", m.ttl, DefaultCursorTTL)
	}
}
