package rategate

import (
	"context"
	"testing"
	"time"

	"github.com/guitaripod/pixie/internal/apperror"
)

type fakeLocks struct {
	held map[string]bool
}

func (f *fakeLocks) Acquire(ctx context.Context, userID string, staleAfter time.Duration) (bool, error) {
	if f.held[userID] {
		return false, nil
	}
	f.held[userID] = true
	return true, nil
}

func (f *fakeLocks) Release(ctx context.Context, userID string) error {
	delete(f.held, userID)
	return nil
}

func TestGate_AcquireRelease(t *testing.T) {
	locks := &fakeLocks{held: map[string]bool{}}
	g := New(locks, time.Minute)

	release, err := g.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = g.Acquire(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected second acquire to fail while first is held")
	}
	var appErr *apperror.Error
	if ae, ok := err.(*apperror.Error); !ok || ae.Kind != apperror.RateLimited {
		t.Errorf("expected RateLimited error, got %v (appErr=%v)", err, appErr)
	}

	release()

	if _, err := g.Acquire(context.Background(), "user-1"); err != nil {
		t.Fatalf("expected acquire to succeed after release, got: %v", err)
	}
}
