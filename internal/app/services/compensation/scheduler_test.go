package compensation

import (
	"context"
	"testing"
)

func TestSchedulerLifecycle(t *testing.T) {
	svc, _, _ := newTestEngine()
	scheduler := NewScheduler(svc, nil)

	ctx := context.Background()
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := scheduler.Start(ctx); err == nil {
		t.Fatal("expected a second Start to fail")
	}
	if err := scheduler.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stopping an idle scheduler is a no-op.
	if err := scheduler.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	svc, _, _ := newTestEngine()
	scheduler := NewScheduler(svc, nil).WithSpec("not a cron spec")

	if err := scheduler.Start(context.Background()); err == nil {
		t.Fatal("expected an invalid spec to fail")
	}
}
