package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"resume-feedback/internal/shared/storage/object"
)

func TestSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	payload := []byte("%PDF-1.4\nhello")
	key, size, mimeType, err := store.Save(ctx, "user-1", "cv.pdf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), size)
	}
	if mimeType != "application/pdf" {
		t.Fatalf("expected application/pdf, got %s", mimeType)
	}
	if !strings.HasSuffix(key, "_cv.pdf") {
		t.Fatalf("unexpected key %s", key)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	if _, err := store.Open(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../secret", "/etc/passwd", "."} {
		if _, err := store.Open(context.Background(), key); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
		if err := store.Delete(context.Background(), key); err == nil {
			t.Fatalf("expected delete of %q to be rejected", key)
		}
	}
}
