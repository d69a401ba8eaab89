package task

import (
	"context"
	"errors"
	"testing"
)

type noopSyncer struct{}

func (noopSyncer) SyncSellerNow(ctx context.Context, sellerID int64, full bool) error {
	return nil
}

func TestTaskManager_TriggerDisabled(t *testing.T) {
	tm := NewTaskManager(
		&TaskManagerDeps{Jobs: NewJobRegistry()},
		&TaskManagerConfig{ItemEnabled: false},
	)

	if err := tm.TriggerAllSync(false); !errors.Is(err, ErrTaskDisabled) {
		t.Errorf("未启用任务触发应返回 ErrTaskDisabled, got %v", err)
	}
	if tm.Status()["item_sync"] {
		t.Error("未启用时 item_sync 状态应为 false")
	}
}

func TestTaskManager_StatusEnabled(t *testing.T) {
	tm := NewTaskManager(
		&TaskManagerDeps{Syncer: noopSyncer{}, Jobs: NewJobRegistry()},
		nil, // 走默认配置
	)

	if !tm.Status()["item_sync"] {
		t.Error("启用时 item_sync 状态应为 true")
	}
}
