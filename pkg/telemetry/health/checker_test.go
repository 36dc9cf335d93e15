package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChecker_ReadinessNoChecks(t *testing.T) {
	c := New(0)
	status := c.CheckReadiness(context.Background())
	if status.Status != "ready" {
		t.Errorf("Status = %q, want ready", status.Status)
	}
}

func TestChecker_ReadinessAggregation(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("storage", func(ctx context.Context) error { return nil })
	c.RegisterCheck("vault", func(ctx context.Context) error { return errors.New("sealed") })

	status := c.CheckReadiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", status.Status)
	}
	if status.Checks["storage"].Status != "ok" {
		t.Errorf("storage status = %q, want ok", status.Checks["storage"].Status)
	}
	got := status.Checks["vault"]
	if got.Status != "unhealthy" || got.Message != "sealed" {
		t.Errorf("vault result = %+v, want unhealthy/sealed", got)
	}
}

func TestChecker_ReadinessTimeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.CheckReadiness(context.Background())
	if status.Checks["slow"].Status != "unhealthy" {
		t.Errorf("slow status = %q, want unhealthy", status.Checks["slow"].Status)
	}
}

func TestChecker_UnregisterCheck(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("storage", func(ctx context.Context) error { return errors.New("down") })
	c.UnregisterCheck("storage")

	status := c.CheckReadiness(context.Background())
	if status.Status != "ready" {
		t.Errorf("Status = %q, want ready after unregister", status.Status)
	}
}

func TestChecker_Liveness(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("storage", func(ctx context.Context) error { return errors.New("down") })

	// Liveness ignores component checks.
	status := c.CheckLiveness(context.Background())
	if status.Status != "ok" {
		t.Errorf("Status = %q, want ok", status.Status)
	}
}
