package ids

import (
	"sync"
	"testing"
	"time"
)

func TestCreateULIDIsMonotonic(t *testing.T) {
	const total = 64
	prev := ""
	for i := 0; i < total; i++ {
		id := CreateULID()
		if !IsULID(id) {
			t.Fatalf("expected valid ULID, got %q", id)
		}
		if prev != "" && prev >= id {
			t.Fatalf("expected ULIDs to be strictly increasing, %s >= %s", prev, id)
		}
		prev = id
	}
}

func TestCreateULIDConcurrentUniqueness(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 25

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := CreateULID()
				mu.Lock()
				if _, ok := seen[id]; ok {
					t.Errorf("duplicate ULID generated: %s", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Fatalf("expected %d unique ULIDs, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestCreateAtEmbedsTimestamp(t *testing.T) {
	at := time.Date(2022, 1, 26, 10, 16, 0, 0, time.UTC)
	id := createAt(at)
	if got := time.UnixMilli(int64(id.Time())).UTC(); !got.Equal(at) {
		t.Fatalf("expected %s, got %s", at, got)
	}

	for _, bad := range []string{"", "not-a-ulid", id.String() + "0"} {
		if IsULID(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
