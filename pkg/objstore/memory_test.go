package objstore

import (
	"context"
	"testing"
)

func TestMemory_Contract(t *testing.T) {
	runStoreContract(t, NewMemory())
}

func TestMemory_CopiesInput(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	body := []byte("abc")
	meta := map[string]string{"k": "v"}
	if err := m.Put(ctx, "x.json", body, meta); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	body[0] = 'z'
	meta["k"] = "changed"

	got, _ := m.Get(ctx, "x.json")
	if string(got) != "abc" {
		t.Errorf("stored body mutated: %s", got)
	}
	gotMeta, _ := m.Head(ctx, "x.json")
	if gotMeta["k"] != "v" {
		t.Errorf("stored metadata mutated: %v", gotMeta)
	}
}

func TestMemory_KeysAndPuts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Put(ctx, "b.json", nil, nil)
	m.Put(ctx, "a.json", nil, nil)
	m.Put(ctx, "a.json", nil, nil)

	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "a.json" || keys[1] != "b.json" {
		t.Errorf("Keys() = %v", keys)
	}
	if m.Puts() != 3 {
		t.Errorf("Puts() = %d, want 3", m.Puts())
	}
}
