package swap

import (
	"bytes"
	"log/slog"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStore_WriteReadRoundTrip(t *testing.T) {
	st := newTestStore(t)

	page := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x42}
	if err := st.Write(3, page); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := st.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, page) {
		t.Errorf("Read = %x, want %x", got, page)
	}
}

func TestSQLiteStore_WriteCopiesCallerBuffer(t *testing.T) {
	st := newTestStore(t)

	frame := []byte("original")
	if err := st.Write(0, frame); err != nil {
		t.Fatalf("Write: %v", err)
	}
	copy(frame, "clobber!") // frame is reused after eviction

	got, err := st.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("Read = %q, want the image at write time", got)
	}
}

func TestSQLiteStore_OverwriteSlot(t *testing.T) {
	st := newTestStore(t)

	if err := st.Write(1, []byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Write(1, []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := st.Read(1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Read = %q, want %q", got, "second")
	}
}

func TestSQLiteStore_ReadEmptySlot(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.Read(7); err == nil {
		t.Error("reading an empty slot should fail")
	}
}

func TestSQLiteStore_DeleteIsIdempotent(t *testing.T) {
	st := newTestStore(t)

	if err := st.Write(2, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Delete(2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Delete(2); err != nil {
		t.Errorf("second Delete: %v, release paths must be idempotent", err)
	}
	if _, err := st.Read(2); err == nil {
		t.Error("slot still readable after Delete")
	}
}
