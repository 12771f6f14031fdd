package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeIdemStore struct {
	keys   map[string]string
	setErr error
}

func (f *fakeIdemStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if f.keys == nil {
		f.keys = map[string]string{}
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = value.(string)
	return true, nil
}

func (f *fakeIdemStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func (f *fakeIdemStore) IdempotencyKey(scope, eventID string) string {
	return strings.Join([]string{"cm", "idem", scope, eventID}, ":")
}

func TestIdempotencyGuardMarksFirstSeenOnly(t *testing.T) {
	t.Parallel()

	store := &fakeIdemStore{}
	guard, err := NewIdempotencyGuard(store, time.Minute, "notifier")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	ctx := context.Background()

	duplicate, err := guard.CheckAndMark(ctx, "evt-1")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if duplicate {
		t.Fatalf("first delivery reported as duplicate")
	}

	duplicate, err = guard.CheckAndMark(ctx, "evt-1")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !duplicate {
		t.Fatalf("redelivery not reported as duplicate")
	}

	if err := guard.Release(ctx, "evt-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	duplicate, err = guard.CheckAndMark(ctx, "evt-1")
	if err != nil {
		t.Fatalf("check after release: %v", err)
	}
	if duplicate {
		t.Fatalf("released event still marked")
	}
}

func TestIdempotencyGuardPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := &fakeIdemStore{setErr: errors.New("redis down")}
	guard, err := NewIdempotencyGuard(store, time.Minute, "notifier")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	if _, err := guard.CheckAndMark(context.Background(), "evt-1"); err == nil {
		t.Fatalf("expected store error to propagate")
	}
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatalf("expected empty event id to be rejected")
	}
}

func TestNewIdempotencyGuardValidatesInputs(t *testing.T) {
	t.Parallel()

	if _, err := NewIdempotencyGuard(nil, time.Minute, "notifier"); err == nil {
		t.Fatalf("expected nil store to be rejected")
	}
	if _, err := NewIdempotencyGuard(&fakeIdemStore{}, -time.Second, "notifier"); err == nil {
		t.Fatalf("expected negative ttl to be rejected")
	}
	if _, err := NewIdempotencyGuard(&fakeIdemStore{}, time.Minute, ""); err == nil {
		t.Fatalf("expected empty scope to be rejected")
	}
}
