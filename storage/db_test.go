package storage

import "testing"

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if ok, err := db.Has([]byte("missing")); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := db.Get([]byte("missing")); err != nil || ok {
		t.Fatalf("expected missing get, got ok=%v err=%v", ok, err)
	}

	if err := db.Put([]byte("pool/alpha"), []byte{0x01, 0x02}); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, ok, err := db.Get([]byte("pool/alpha"))
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(value) != 2 || value[0] != 0x01 {
		t.Fatalf("unexpected value %x", value)
	}

	// Overwrite semantics: puts replace existing values.
	if err := db.Put([]byte("pool/alpha"), []byte{0xFF}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, _, _ = db.Get([]byte("pool/alpha"))
	if len(value) != 1 || value[0] != 0xFF {
		t.Fatalf("overwrite not applied: %x", value)
	}

	if err := db.Delete([]byte("pool/alpha")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := db.Has([]byte("pool/alpha")); ok {
		t.Fatalf("key survived delete")
	}
	// Deleting an absent key must be a no-op.
	if err := db.Delete([]byte("pool/alpha")); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestMemDBGetReturnsCopy(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if err := db.Put([]byte("k"), []byte{0x01}); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, _, _ := db.Get([]byte("k"))
	value[0] = 0xEE
	again, _, _ := db.Get([]byte("k"))
	if again[0] != 0x01 {
		t.Fatalf("stored value mutated through returned slice")
	}
}
