package contract

import "testing"

func TestHashRecordDataIsOrderIndependent(t *testing.T) {
	a := HashRecordData(map[string]any{"id": 1, "name": "ada"})
	b := HashRecordData(map[string]any{"name": "ada", "id": 1})
	if a != b {
		t.Fatalf("expected equal hashes regardless of map iteration order, got %q and %q", a, b)
	}
}

func TestHashRecordDataDiffersOnValueChange(t *testing.T) {
	a := HashRecordData(map[string]any{"id": 1, "name": "ada"})
	b := HashRecordData(map[string]any{"id": 1, "name": "lovelace"})
	if a == b {
		t.Fatalf("expected different hashes for different data, got equal %q", a)
	}
}

func TestHashRecordDataEmptyMap(t *testing.T) {
	got := HashRecordData(map[string]any{})
	if got == "" {
		t.Fatal("expected a non-empty hash even for an empty record")
	}
}
