package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cellar/internal/services"
	"cellar/internal/store"
	"cellar/internal/testsupport"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to store.TaskStatus
		want     bool
	}{
		{store.TaskQueued, store.TaskProcessing, true},
		{store.TaskQueued, store.TaskFailed, true},
		{store.TaskQueued, store.TaskDone, false},
		{store.TaskProcessing, store.TaskDone, true},
		{store.TaskProcessing, store.TaskFailed, true},
		{store.TaskProcessing, store.TaskQueued, false},
		{store.TaskDone, store.TaskFailed, false},
		{store.TaskFailed, store.TaskProcessing, false},
		{store.TaskDone, store.TaskDone, false},
	}
	for _, tc := range cases {
		if got := store.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestLabelTaskLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task, err := st.CreateLabelTask(ctx)
	if err != nil {
		t.Fatalf("CreateLabelTask failed: %v", err)
	}
	if task.Status != store.TaskQueued || task.Payload != nil {
		t.Fatalf("unexpected new task: %+v", task)
	}
	if task.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	task, err = st.AdvanceLabelTask(ctx, task.ID, store.TaskProcessing, nil, "")
	if err != nil {
		t.Fatalf("advance to processing failed: %v", err)
	}
	if task.Status != store.TaskProcessing {
		t.Fatalf("expected processing, got %s", task.Status)
	}

	payload := json.RawMessage(`{"producer":"Ridge","label":"Monte Bello"}`)
	task, err = st.AdvanceLabelTask(ctx, task.ID, store.TaskDone, payload, "")
	if err != nil {
		t.Fatalf("advance to done failed: %v", err)
	}
	if task.Status != store.TaskDone || string(task.Payload) != string(payload) {
		t.Fatalf("unexpected done task: %+v", task)
	}

	if _, err := st.AdvanceLabelTask(ctx, task.ID, store.TaskFailed, nil, "late"); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition out of done, got %v", err)
	}
	again, err := st.GetLabelTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetLabelTask failed: %v", err)
	}
	if again.Status != store.TaskDone || string(again.Payload) != string(payload) {
		t.Fatalf("terminal task changed: %+v", again)
	}
}

func TestAdvanceLabelTaskRejectsSkippingProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task, err := st.CreateLabelTask(ctx)
	if err != nil {
		t.Fatalf("CreateLabelTask failed: %v", err)
	}
	if _, err := st.AdvanceLabelTask(ctx, task.ID, store.TaskDone, json.RawMessage(`{}`), ""); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	failed, err := st.AdvanceLabelTask(ctx, task.ID, store.TaskFailed, json.RawMessage(`{"ignored":true}`), "provider error")
	if err != nil {
		t.Fatalf("advance to failed failed: %v", err)
	}
	if failed.Payload != nil || failed.Error != "provider error" {
		t.Fatalf("failed task should carry error without payload: %+v", failed)
	}
}

func TestLabelTaskNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.GetLabelTask(ctx, 99); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.AdvanceLabelTask(ctx, 99, store.TaskProcessing, nil, ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on advance, got %v", err)
	}
}

func TestFailStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stuck, _ := st.CreateLabelTask(ctx)
	queued, _ := st.CreateLabelTask(ctx)
	if _, err := st.AdvanceLabelTask(ctx, stuck.ID, store.TaskProcessing, nil, ""); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	count, err := st.FailStaleProcessing(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FailStaleProcessing failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("fresh task should not be reaped, got %d", count)
	}

	count, err = st.FailStaleProcessing(ctx, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("FailStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reaped task, got %d", count)
	}
	reaped, _ := st.GetLabelTask(ctx, stuck.ID)
	if reaped.Status != store.TaskFailed || reaped.Error != store.AbandonedTaskReason {
		t.Fatalf("unexpected reaped task: %+v", reaped)
	}
	untouched, _ := st.GetLabelTask(ctx, queued.ID)
	if untouched.Status != store.TaskQueued {
		t.Fatalf("queued task should be untouched, got %s", untouched.Status)
	}

	count, err = st.FailUnfinishedTasks(ctx)
	if err != nil {
		t.Fatalf("FailUnfinishedTasks failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected queued task to be failed, got %d", count)
	}

	failed, err := st.ListLabelTasks(ctx, store.TaskFailed)
	if err != nil {
		t.Fatalf("ListLabelTasks failed: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed tasks, got %d", len(failed))
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.LabelTasks[store.TaskFailed] != 2 {
		t.Fatalf("unexpected task stats: %+v", stats.LabelTasks)
	}
}
