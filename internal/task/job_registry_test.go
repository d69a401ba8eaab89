package task

import (
	"errors"
	"testing"
)

func TestJobRegistry_BeginFresh(t *testing.T) {
	r := NewJobRegistry()

	batch, err := r.Begin(1, "run-1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if batch != 0 {
		t.Errorf("新任务应从第 0 批开始, got %d", batch)
	}
	if !r.IsRunning(1) {
		t.Error("Begin 后应处于运行中")
	}
}

func TestJobRegistry_BeginConflict(t *testing.T) {
	r := NewJobRegistry()

	if _, err := r.Begin(1, "run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := r.Begin(1, "run-2"); !errors.Is(err, ErrJobRunning) {
		t.Errorf("重复 Begin 应返回 ErrJobRunning, got %v", err)
	}

	// 不同卖家互不影响
	if _, err := r.Begin(2, "run-3"); err != nil {
		t.Errorf("其他卖家 Begin 失败: %v", err)
	}
}

func TestJobRegistry_HaltThenResumeFromBatch(t *testing.T) {
	r := NewJobRegistry()

	if _, err := r.Begin(1, "run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	r.UpdateProgress(1, Progress{BatchIndex: 7, PagesScanned: 7, ItemsNew: 350})
	r.Halt(1, "凭证过期")

	status, ok := r.Status(1)
	if !ok {
		t.Fatal("Halt 后条目应保留")
	}
	if status.Running {
		t.Error("Halt 后不应处于运行中")
	}
	if status.HaltedReason != "凭证过期" {
		t.Errorf("HaltedReason = %q", status.HaltedReason)
	}

	// 再次 Begin 从记录批次续跑
	batch, err := r.Begin(1, "run-2")
	if err != nil {
		t.Fatalf("续跑 Begin() error = %v", err)
	}
	if batch != 7 {
		t.Errorf("续跑批次 = %d, want 7", batch)
	}
	status, _ = r.Status(1)
	if status.HaltedReason != "" {
		t.Error("续跑后应清除中止原因")
	}
	if status.RunID != "run-2" {
		t.Errorf("RunID = %q, want run-2", status.RunID)
	}
}

func TestJobRegistry_StopThenBeginFresh(t *testing.T) {
	r := NewJobRegistry()

	if _, err := r.Begin(1, "run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	r.UpdateProgress(1, Progress{BatchIndex: 5})

	if err := r.Stop(1); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	// 循环在检查点确认停止
	r.Finish(1)

	if _, ok := r.Status(1); ok {
		t.Error("停止确认后条目应被移除")
	}

	batch, err := r.Begin(1, "run-2")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if batch != 0 {
		t.Errorf("停止后重新开始应从第 0 批, got %d", batch)
	}
}

func TestJobRegistry_PauseResume(t *testing.T) {
	r := NewJobRegistry()

	if err := r.Pause(1); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("无任务 Pause 应返回 ErrJobNotFound, got %v", err)
	}

	if _, err := r.Begin(1, "run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := r.Pause(1); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	paused, stopped, ok := r.Flags(1)
	if !ok || !paused || stopped {
		t.Errorf("Flags = (%v, %v, %v), want (true, false, true)", paused, stopped, ok)
	}

	if err := r.Resume(1); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	paused, _, _ = r.Flags(1)
	if paused {
		t.Error("Resume 后应清除暂停标记")
	}
}

func TestJobRegistry_StopClearsPause(t *testing.T) {
	r := NewJobRegistry()

	if _, err := r.Begin(1, "run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := r.Pause(1); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := r.Stop(1); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	paused, stopped, _ := r.Flags(1)
	if paused {
		t.Error("Stop 应清除暂停标记，空转中的循环才能醒来退出")
	}
	if !stopped {
		t.Error("Stop 后应置停止标记")
	}
}

func TestJobRegistry_DoneChannel(t *testing.T) {
	r := NewJobRegistry()

	if _, err := r.Begin(1, "run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	done, ok := r.Done(1)
	if !ok {
		t.Fatal("运行中应能取到完成信号")
	}

	select {
	case <-done:
		t.Fatal("任务未结束，done 不应关闭")
	default:
	}

	r.Finish(1)

	select {
	case <-done:
	default:
		t.Fatal("Finish 后 done 应已关闭")
	}
}

func TestJobRegistry_CancelAll(t *testing.T) {
	r := NewJobRegistry()

	canceled := make(map[int64]bool)
	for _, id := range []int64{1, 2} {
		id := id
		if _, err := r.Begin(id, "run"); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		r.AttachCancel(id, func() { canceled[id] = true })
	}

	r.CancelAll()

	if !canceled[1] || !canceled[2] {
		t.Errorf("CancelAll 应取消所有运行句柄, got %v", canceled)
	}
}

func TestJobRegistry_UpdateProgress(t *testing.T) {
	r := NewJobRegistry()

	if _, err := r.Begin(1, "run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	r.UpdateProgress(1, Progress{
		BatchIndex: 3, PagesScanned: 3, ItemsScanned: 150, ItemsNew: 120, ItemsFailed: 2, DupStreak: 1,
	})

	status, _ := r.Status(1)
	if status.BatchIndex != 3 || status.ItemsScanned != 150 || status.ItemsNew != 120 {
		t.Errorf("进度未正确回写: %+v", status)
	}

	// 不存在的卖家回写是空操作
	r.UpdateProgress(99, Progress{BatchIndex: 1})
}
