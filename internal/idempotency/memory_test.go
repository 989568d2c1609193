package idempotency

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryStore_ReserveThenReplay(t *testing.T) {
	st := NewMemoryStore(30 * time.Second)
	ctx := context.Background()
	key := testKey()

	res, _, err := st.CheckOrReserve(ctx, key)
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res != Reserved {
		t.Fatalf("first check = %v, want Reserved", res)
	}

	want := []byte(`{"replyText":"hi"}`)
	if err := st.Complete(ctx, key, want); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	res, payload, err := st.CheckOrReserve(ctx, key)
	if err != nil {
		t.Fatalf("CheckOrReserve after complete failed: %v", err)
	}
	if res != Found {
		t.Fatalf("check after complete = %v, want Found", res)
	}
	if !bytes.Equal(payload, want) {
		t.Errorf("replayed payload = %q, want %q", payload, want)
	}
}

func TestMemoryStore_ConcurrentDuplicates(t *testing.T) {
	st := NewMemoryStore(30 * time.Second)
	ctx := context.Background()
	key := testKey()

	var reserved int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := st.CheckOrReserve(ctx, key)
			if err != nil {
				t.Errorf("CheckOrReserve failed: %v", err)
				return
			}
			if res == Reserved {
				atomic.AddInt32(&reserved, 1)
			}
		}()
	}
	wg.Wait()

	if reserved != 1 {
		t.Errorf("reserved = %d, want exactly 1", reserved)
	}
}

func TestMemoryStore_ReleaseMakesKeyRetryable(t *testing.T) {
	st := NewMemoryStore(30 * time.Second)
	ctx := context.Background()
	key := testKey()

	st.CheckOrReserve(ctx, key)
	if res, _, _ := st.CheckOrReserve(ctx, key); res != AlreadyReserved {
		t.Fatal("expected conflict while reserved")
	}

	if err := st.Release(ctx, key); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if res, _, _ := st.CheckOrReserve(ctx, key); res != Reserved {
		t.Error("key should be re-reservable after release")
	}
}

func TestMemoryStore_ReservationExpires(t *testing.T) {
	st := NewMemoryStore(10 * time.Second)
	ctx := context.Background()
	key := testKey()

	now := time.Now()
	st.now = func() time.Time { return now }

	st.CheckOrReserve(ctx, key)
	if res, _, _ := st.CheckOrReserve(ctx, key); res != AlreadyReserved {
		t.Fatal("expected conflict while reserved")
	}

	now = now.Add(11 * time.Second)
	if res, _, _ := st.CheckOrReserve(ctx, key); res != Reserved {
		t.Error("key should be re-reservable after the grace period")
	}
}

func TestMemoryStore_CompletedResultSurvivesExpiry(t *testing.T) {
	st := NewMemoryStore(10 * time.Second)
	ctx := context.Background()
	key := testKey()

	now := time.Now()
	st.now = func() time.Time { return now }

	st.CheckOrReserve(ctx, key)
	st.Complete(ctx, key, []byte("done"))

	now = now.Add(time.Hour)
	res, payload, err := st.CheckOrReserve(ctx, key)
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res != Found {
		t.Fatalf("check = %v, want Found", res)
	}
	if string(payload) != "done" {
		t.Errorf("payload = %q, want %q", payload, "done")
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	st := NewMemoryStore(10 * time.Second)
	ctx := context.Background()

	now := time.Now()
	st.now = func() time.Time { return now }

	st.CheckOrReserve(ctx, Key{Tenant: "t1", Session: "s1", Client: "a"})
	st.CheckOrReserve(ctx, Key{Tenant: "t1", Session: "s1", Client: "b"})
	done := Key{Tenant: "t1", Session: "s1", Client: "c"}
	st.CheckOrReserve(ctx, done)
	st.Complete(ctx, done, []byte("kept"))

	now = now.Add(time.Minute)
	if removed := st.Sweep(); removed != 2 {
		t.Errorf("Sweep removed %d, want 2", removed)
	}

	// Completed results are never swept.
	res, _, _ := st.CheckOrReserve(ctx, done)
	if res != Found {
		t.Errorf("completed key = %v, want Found", res)
	}
}
