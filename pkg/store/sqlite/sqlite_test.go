//go:build cgo

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/store"
	"github.com/OFFIS-RIT/kgstore/pkg/store/storetest"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating storage: %v", err)
	}
	return s
}

func TestSQLiteStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.GraphStorage {
		return newTestStorage(t)
	})
}

func TestNewCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "kg.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New with nested path failed: %v", err)
	}
	defer s.Close()
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kg.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.UpsertEntity(ctx, common.Entity{ID: "A", Type: common.EntitySystem, Data: map[string]any{"name": "A", "rank": 2.0}}); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	s.Close()

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.GetEntity(ctx, "A")
	if err != nil {
		t.Fatalf("GetEntity failed: %v", err)
	}
	if got == nil || got.Data["rank"] != 2.0 {
		t.Fatalf("expected persisted entity with rank 2, got %+v", got)
	}
}

func TestCheckConstraintRejectsConfidence(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	defer s.Close()

	_ = s.UpsertEntity(ctx, common.Entity{ID: "A", Type: common.EntitySystem})
	_ = s.UpsertEntity(ctx, common.Entity{ID: "B", Type: common.EntitySystem})

	_, err := s.UpsertRelationship(ctx, common.Relationship{Source: "A", Target: "B", Relation: common.RelPartOf, Confidence: 0.2})
	if !errors.Is(err, store.ErrInvalidConfidence) {
		t.Fatalf("expected ErrInvalidConfidence from check constraint, got %v", err)
	}
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}
	for _, tt := range tests {
		if got := placeholders(tt.n); got != tt.want {
			t.Errorf("placeholders(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
