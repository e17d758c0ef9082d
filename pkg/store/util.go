package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize elements. It is used to keep IN lists below driver limits.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings drops empty strings and duplicates, keeping first-seen order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ReferencedEntities returns the distinct entity ids used as source or target
// by rels, in first-seen order.
func ReferencedEntities(rels []common.Relationship) []string {
	ids := make([]string, 0, len(rels)*2)
	for _, r := range rels {
		ids = append(ids, r.Source, r.Target)
	}
	return DedupeStrings(ids)
}

// SortEntities orders entities by id.
func SortEntities(entities []common.Entity) {
	slices.SortFunc(entities, func(a, b common.Entity) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// CloneData returns a copy of data, never nil. Nested maps and slices are
// copied too.
func CloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return CloneData(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// NormalizeData round-trips data through JSON, so it holds the same value
// types the SQL backends read back: numbers become float64, structs and
// typed slices become maps and []any.
func NormalizeData(data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(CloneData(data))
	if err != nil {
		return nil, fmt.Errorf("encoding entity data: %w", err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding entity data: %w", err)
	}
	return out, nil
}

// SanitizeText drops invalid UTF-8 sequences and NUL bytes, which Postgres
// rejects in text columns.
func SanitizeText(value string) string {
	if value == "" {
		return value
	}
	return strings.ReplaceAll(strings.ToValidUTF8(value, ""), "\x00", "")
}
