package mirror

import (
	"fmt"
	"sync"
	"testing"
)

func TestLedgerRememberClaimsOnce(t *testing.T) {
	t.Parallel()
	l := NewLedger(10)

	if !l.Remember("a") {
		t.Error("first Remember(a) should claim")
	}
	if l.Remember("a") {
		t.Error("second Remember(a) should not claim")
	}
	if !l.Has("a") {
		t.Error("Has(a) = false after Remember")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestLedgerEvictsOldestFirst(t *testing.T) {
	t.Parallel()
	l := NewLedger(3)

	for _, id := range []string{"a", "b", "c"} {
		l.Remember(id)
	}
	l.Remember("d") // evicts "a"

	if l.Has("a") {
		t.Error("oldest id should have been evicted")
	}
	for _, id := range []string{"b", "c", "d"} {
		if !l.Has(id) {
			t.Errorf("id %q should still be present", id)
		}
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}
}

func TestLedgerNeverExceedsLimit(t *testing.T) {
	t.Parallel()
	l := NewLedger(100)

	for i := 0; i < 1000; i++ {
		l.Remember(fmt.Sprintf("id-%d", i))
		if l.Len() > 100 {
			t.Fatalf("Len() = %d exceeds limit after %d inserts", l.Len(), i+1)
		}
	}
}

func TestLedgerConcurrentClaimIsExclusive(t *testing.T) {
	t.Parallel()
	l := NewLedger(100)

	const goroutines = 32
	var wg sync.WaitGroup
	claims := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claims <- l.Remember("contested")
		}()
	}
	wg.Wait()
	close(claims)

	won := 0
	for claimed := range claims {
		if claimed {
			won++
		}
	}
	if won != 1 {
		t.Errorf("%d goroutines claimed the same id, want exactly 1", won)
	}
}
