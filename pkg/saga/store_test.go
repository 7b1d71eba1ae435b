package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func runStoreSuite(t *testing.T, store RunStore) {
	t.Helper()
	ctx := context.Background()

	if err := store.Save(ctx, nil); err == nil {
		t.Error("Save(nil) accepted")
	}

	phases := []Phase{PhaseComplete, PhaseComplete, PhaseAborted}
	for i, phase := range phases {
		state := NewRunState(string(rune('a'+i)) + "-run")
		state.Phase = phase
		if err := store.Save(ctx, state); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	got, err := store.Get(ctx, "a-run")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Phase != PhaseComplete {
		t.Errorf("Get phase = %s, want complete", got.Phase)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrRunNotFound", err)
	}

	// Re-saving under a new phase must move the run between phase buckets.
	moved := NewRunState("a-run")
	moved.Phase = PhaseAborted
	if err := store.Save(ctx, moved); err != nil {
		t.Fatalf("re-Save failed: %v", err)
	}

	_, total, err := store.List(ctx, RunListFilter{Phase: "aborted"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 2 {
		t.Errorf("aborted total = %d, want 2", total)
	}

	runs, total, err := store.List(ctx, RunListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 || len(runs) != 3 {
		t.Errorf("List = %d/%d, want 3/3", len(runs), total)
	}

	runs, total, err = store.List(ctx, RunListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("paginated List failed: %v", err)
	}
	if total != 3 || len(runs) != 1 {
		t.Errorf("paginated List = %d/%d, want 1/3", len(runs), total)
	}

	if err := store.Delete(ctx, "a-run"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "a-run"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get after Delete err = %v, want ErrRunNotFound", err)
	}
	if err := store.Delete(ctx, "a-run"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("double Delete err = %v, want ErrRunNotFound", err)
	}
}

func TestMemoryRunStore(t *testing.T) {
	runStoreSuite(t, NewMemoryRunStore())
}

func TestMemoryRunStore_Isolation(t *testing.T) {
	store := NewMemoryRunStore()
	state := NewRunState("iso")
	state.Phase = PhaseComplete
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the saved state or a fetched copy must not change the store.
	state.AbortReason = "mutated"
	got, err := store.Get(context.Background(), "iso")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AbortReason != "" {
		t.Error("store shares memory with the caller's state")
	}
	got.AbortReason = "mutated again"
	again, _ := store.Get(context.Background(), "iso")
	if again.AbortReason != "" {
		t.Error("store shares memory with fetched copies")
	}
}

func TestBadgerRunStore(t *testing.T) {
	opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("badger.Open failed: %v", err)
	}
	defer db.Close()

	store, err := NewBadgerRunStore(db)
	if err != nil {
		t.Fatalf("NewBadgerRunStore failed: %v", err)
	}
	runStoreSuite(t, store)
}

func TestNewBadgerRunStore_NilDB(t *testing.T) {
	if _, err := NewBadgerRunStore(nil); err == nil {
		t.Error("nil db accepted")
	}
}
