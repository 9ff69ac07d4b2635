package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type credRecord struct {
	SessionID string `json:"session_id"`
	Blob      []byte `json:"blob"`
	UpdatedAt int64  `json:"updated_at"`
}

func TestStorage_PutAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	rec := credRecord{SessionID: "default", Blob: []byte("opaque"), UpdatedAt: 42}

	err := s.Put(ctx, []string{"credentials", "default"}, rec)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	filePath := filepath.Join(tmpDir, "credentials", "default.json")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Fatal("File was not created")
	}

	var retrieved credRecord
	err = s.Get(ctx, []string{"credentials", "default"}, &retrieved)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if retrieved.SessionID != rec.SessionID || string(retrieved.Blob) != string(rec.Blob) || retrieved.UpdatedAt != rec.UpdatedAt {
		t.Errorf("Data mismatch: got %+v, want %+v", retrieved, rec)
	}
}

func TestStorage_GetNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	var rec credRecord
	err := s.Get(ctx, []string{"credentials", "missing"}, &rec)
	if err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestStorage_PutOverwrites(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	path := []string{"credentials", "default"}
	if err := s.Put(ctx, path, credRecord{SessionID: "default", UpdatedAt: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, path, credRecord{SessionID: "default", UpdatedAt: 2}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var rec credRecord
	if err := s.Get(ctx, path, &rec); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.UpdatedAt != 2 {
		t.Errorf("Expected last write to win, got UpdatedAt=%d", rec.UpdatedAt)
	}
}

func TestStorage_Delete(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	path := []string{"credentials", "default"}
	if err := s.Put(ctx, path, credRecord{SessionID: "default"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := s.Delete(ctx, path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Exists(ctx, path) {
		t.Error("record still exists after delete")
	}

	// Deleting again is not an error.
	if err := s.Delete(ctx, path); err != nil {
		t.Errorf("Delete of missing record failed: %v", err)
	}
}

func TestStorage_List(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Put(ctx, []string{"credentials", id}, credRecord{SessionID: id}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	items, err := s.List(ctx, []string{"credentials"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("Expected 3 items, got %d: %v", len(items), items)
	}
}

func TestStorage_ListEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)

	items, err := s.List(context.Background(), []string{"nope"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected empty list, got %v", items)
	}
}

func TestStorage_ConcurrentPuts(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.Put(ctx, []string{"credentials", "shared"}, credRecord{SessionID: "shared", UpdatedAt: int64(n)})
		}(i)
	}
	wg.Wait()

	// Whatever write won, the record must be intact JSON.
	var rec credRecord
	if err := s.Get(ctx, []string{"credentials", "shared"}, &rec); err != nil {
		t.Fatalf("Get after concurrent puts failed: %v", err)
	}
	if rec.SessionID != "shared" {
		t.Errorf("Corrupt record: %+v", rec)
	}
}
