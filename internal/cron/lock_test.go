package cron

import (
	"context"
	"strings"
	"testing"
	"time"
)

type fakeRedisStore struct {
	values map[string]string
}

func (f *fakeRedisStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.values == nil {
		f.values = map[string]string{}
	}
	if _, held := f.values[key]; held {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeRedisStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockSingleHolder(t *testing.T) {
	store := &fakeRedisStore{}
	first, err := NewRedisLock(store, "avb:reconcile-worker:lock:test", 0)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	second, err := NewRedisLock(store, "avb:reconcile-worker:lock:test", 0)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}

	ok, err := first.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(store.values["avb:reconcile-worker:lock:test"], "reconcile-worker:") {
		t.Fatalf("lock value does not name the worker: %q", store.values["avb:reconcile-worker:lock:test"])
	}

	ok, err = second.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("two workers held the lock at once")
	}

	// the non-holder must not free the holder's lock
	if err := second.Release(context.Background()); err != nil {
		t.Fatalf("non-holder release: %v", err)
	}
	if _, held := store.values["avb:reconcile-worker:lock:test"]; !held {
		t.Fatalf("non-holder release deleted the lock")
	}

	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("holder release: %v", err)
	}
	if _, held := store.values["avb:reconcile-worker:lock:test"]; held {
		t.Fatalf("holder release left the lock behind")
	}
}
