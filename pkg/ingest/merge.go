package ingest

import (
	"strings"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

var mergeKeyReplacer = strings.NewReplacer("-", "", "/", "")

// mergeKeyName folds case, collapses whitespace and drops hyphens and
// slashes, so "F-35A", "f35a" and "F/35A" compare equal.
func mergeKeyName(name string) string {
	s := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	return strings.TrimSpace(mergeKeyReplacer.Replace(s))
}

// MergeChunkResults concatenates the triples of all results in order and
// keeps the first triple for every (A, B) name pair. The relation is not
// part of the key, so a second relation between the same pair is dropped.
func MergeChunkResults(results []common.ExtractionResult) []common.Triple {
	seen := make(map[string]struct{})
	merged := make([]common.Triple, 0)

	for _, res := range results {
		for _, t := range res.Triples {
			key := mergeKeyName(t.A) + "|" + mergeKeyName(t.B)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, t)
		}
	}
	return merged
}

// MergeChunkResultsStrict keys triples by (A, relation, B) like the graph
// store does and keeps the one with the highest confidence. Output follows
// the order in which each key first appeared.
func MergeChunkResultsStrict(results []common.ExtractionResult) []common.Triple {
	index := make(map[string]int)
	merged := make([]common.Triple, 0)

	for _, res := range results {
		for _, t := range res.Triples {
			key := t.A + "\x00" + string(t.Relation) + "\x00" + t.B
			i, ok := index[key]
			if !ok {
				index[key] = len(merged)
				merged = append(merged, t)
				continue
			}
			if t.Confidence > merged[i].Confidence {
				merged[i] = t
			}
		}
	}
	return merged
}
