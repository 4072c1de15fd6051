package draft

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestDraftRoundTrip verifies save, load, overwrite, and delete of a
// well-known key.
func TestDraftRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if data, err := store.Load(ctx, KeySessionDraft); err != nil || data != nil {
		t.Fatalf("Load on empty store = %v, %v; want nil, nil", data, err)
	}

	if err := store.Save(ctx, KeySessionDraft, []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	data, err := store.Load(ctx, KeySessionDraft)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"v":1}` {
		t.Errorf("loaded = %s", data)
	}

	// Last write wins.
	if err := store.Save(ctx, KeySessionDraft, []byte(`{"v":2}`)); err != nil {
		t.Fatal(err)
	}
	data, _ = store.Load(ctx, KeySessionDraft)
	if string(data) != `{"v":2}` {
		t.Errorf("after overwrite = %s", data)
	}

	if err := store.Delete(ctx, KeySessionDraft); err != nil {
		t.Fatal(err)
	}
	if data, _ := store.Load(ctx, KeySessionDraft); data != nil {
		t.Errorf("after delete = %s, want nil", data)
	}

	// Deleting an absent key is not an error.
	if err := store.Delete(ctx, KeySessionDraft); err != nil {
		t.Errorf("deleting absent key: %v", err)
	}
}

// TestKeysIndependent verifies the well-known keys do not collide.
func TestKeysIndependent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, KeySessionDraft, []byte("draft")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, KeyCachedPlan, []byte("plan")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, KeySessionDraft); err != nil {
		t.Fatal(err)
	}
	data, err := store.Load(ctx, KeyCachedPlan)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "plan" {
		t.Errorf("cached plan = %s after unrelated delete", data)
	}
}

// TestHistoryAppendAndList verifies committed sessions list newest first with
// the limit applied.
func TestHistoryAppendAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := HistoryRecord{
			RemoteSessionID: "sess-" + string(rune('a'+i)),
			Title:           "Push Day A",
			StartedAt:       base.AddDate(0, 0, i),
			DurationMinutes: 40 + i,
			Payload:         []byte(`{"exercises":[]}`),
			CommittedAt:     base.AddDate(0, 0, i).Add(time.Hour),
		}
		if err := store.AppendHistory(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.ListHistory(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want limit 2", len(records))
	}
	if records[0].RemoteSessionID != "sess-c" || records[1].RemoteSessionID != "sess-b" {
		t.Errorf("order = %s, %s; want newest first",
			records[0].RemoteSessionID, records[1].RemoteSessionID)
	}
	if records[0].DurationMinutes != 42 {
		t.Errorf("duration = %d, want 42", records[0].DurationMinutes)
	}
	if string(records[0].Payload) != `{"exercises":[]}` {
		t.Errorf("payload = %s", records[0].Payload)
	}
	if records[0].ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("record id not assigned")
	}
}

// TestOpenIsIdempotent verifies reopening an existing database re-applies
// migrations cleanly and keeps data.
func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, KeyLastResult, []byte("result")); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	data, err := reopened.Load(ctx, KeyLastResult)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "result" {
		t.Errorf("data after reopen = %s", data)
	}
}
