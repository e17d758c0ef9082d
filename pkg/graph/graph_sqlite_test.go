//go:build cgo

package graph

import (
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/kgstore/pkg/store"
	"github.com/OFFIS-RIT/kgstore/pkg/store/sqlite"
)

func init() {
	testBackends = append(testBackends, backend{"sqlite", func(t *testing.T) store.GraphStorage {
		s, err := sqlite.New(filepath.Join(t.TempDir(), "graph.db"))
		if err != nil {
			t.Fatalf("sqlite.New failed: %v", err)
		}
		return s
	}})
}
