package objstore

import (
	"context"
	"errors"
	"testing"
)

// runStoreContract checks the behaviour every backend must share.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "missing/key.json")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("head missing", func(t *testing.T) {
		_, err := store.Head(ctx, "missing/key.json")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Head() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("exists missing", func(t *testing.T) {
		ok, err := store.Exists(ctx, "missing/key.json")
		if err != nil || ok {
			t.Errorf("Exists() = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("put get head", func(t *testing.T) {
		key := "eco/a.json"
		meta := map[string]string{"uuid": "a", "dataset_version": "1.0"}
		if err := store.Put(ctx, key, []byte(`{"uuid":"a"}`), meta); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		body, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(body) != `{"uuid":"a"}` {
			t.Errorf("body = %s", body)
		}

		gotMeta, err := store.Head(ctx, key)
		if err != nil {
			t.Fatalf("Head failed: %v", err)
		}
		for k, v := range meta {
			if gotMeta[k] != v {
				t.Errorf("meta[%s] = %q, want %q", k, gotMeta[k], v)
			}
		}

		ok, err := store.Exists(ctx, key)
		if err != nil || !ok {
			t.Errorf("Exists() = %v, %v; want true, nil", ok, err)
		}
	})

	t.Run("put twice last write wins", func(t *testing.T) {
		key := "eco/b.json"
		if err := store.Put(ctx, key, []byte("first"), map[string]string{"v": "1", "old": "x"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := store.Put(ctx, key, []byte("second"), map[string]string{"v": "2"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		body, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(body) != "second" {
			t.Errorf("body = %s, want second", body)
		}

		meta, err := store.Head(ctx, key)
		if err != nil {
			t.Fatalf("Head failed: %v", err)
		}
		if meta["v"] != "2" {
			t.Errorf("meta[v] = %q, want 2", meta["v"])
		}
		if _, ok := meta["old"]; ok {
			t.Error("metadata of the replaced object should be gone")
		}
	})

	t.Run("delete", func(t *testing.T) {
		key := "batches/eco/c.json"
		if err := store.Put(ctx, key, []byte("x"), nil); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := store.Delete(ctx, key); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, key); err != nil {
			t.Errorf("Delete of missing key should not fail: %v", err)
		}
	})
}
