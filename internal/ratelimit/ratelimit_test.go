package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWindow_limitsPerKey(t *testing.T) {
	w := NewWindow(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := w.Allow(ctx, "mobicash")
		if err != nil || !ok {
			t.Fatalf("call %d: ok=%v err=%v", i, ok, err)
		}
	}

	if ok, _ := w.Allow(ctx, "mobicash"); ok {
		t.Fatal("third call should be limited")
	}

	// A different collector has its own bucket.
	if ok, _ := w.Allow(ctx, "zeyna-pay"); !ok {
		t.Fatal("other key should not be limited")
	}
}

func TestWindow_slides(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	w := NewWindow(1, time.Minute)
	w.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := w.Allow(ctx, "mobicash"); !ok {
		t.Fatal("first call should pass")
	}
	if ok, _ := w.Allow(ctx, "mobicash"); ok {
		t.Fatal("second call inside window should be limited")
	}

	now = now.Add(61 * time.Second)
	if ok, _ := w.Allow(ctx, "mobicash"); !ok {
		t.Fatal("call after window should pass")
	}
}
