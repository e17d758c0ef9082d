// Package validation runs read-only integrity checks over a knowledge graph
// and turns the findings into remediation recommendations.
package validation

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
)

// PassedRecommendation is the only recommendation of a report without findings.
const PassedRecommendation = "Graph validation passed - no issues found"

// GraphReader is the read access the validator needs. *graph.Graph
// implements it.
type GraphReader interface {
	NodeCount(ctx context.Context) (int64, error)
	EdgeCount(ctx context.Context) (int64, error)
	AllNodes(ctx context.Context) ([]common.Entity, error)
	AllEdges(ctx context.Context) ([]common.Relationship, error)
	GetOrphans(ctx context.Context) ([]common.Entity, error)
}

// ConfidenceIssue describes an edge whose confidence lies outside the
// accepted range.
type ConfidenceIssue struct {
	Triple string `json:"triple"`
	Issue  string `json:"issue"`
}

type Results struct {
	TotalEntities     int64             `json:"total_entities"`
	TotalRelations    int64             `json:"total_relations"`
	OrphanNodes       []string          `json:"orphan_nodes"`
	SchemaViolations  []string          `json:"schema_violations"`
	ConfidenceIssues  []ConfidenceIssue `json:"confidence_issues"`
	DuplicateEntities []string          `json:"duplicate_entities"`
	MissingTypes      []string          `json:"missing_types"`
}

type Report struct {
	ValidationResults Results  `json:"validation_results"`
	Recommendations   []string `json:"recommendations"`
}

// Passed reports whether the validation found nothing to fix.
func (r *Report) Passed() bool {
	return len(r.Recommendations) == 1 && r.Recommendations[0] == PassedRecommendation
}

// Validator checks a graph for orphans, schema violations, confidence
// issues, duplicate names and missing types. It holds no state between runs.
type Validator struct {
	graph GraphReader
}

func NewValidator(graph GraphReader) *Validator {
	return &Validator{graph: graph}
}

// Validate inspects the current state of the graph. Malformed data is
// reported, never returned as an error; only read failures are.
// Every list in the report is sorted, so an unchanged graph always produces
// the same report.
func (v *Validator) Validate(ctx context.Context) (*Report, error) {
	nodeCount, err := v.graph.NodeCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate: count nodes: %w", err)
	}
	edgeCount, err := v.graph.EdgeCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate: count edges: %w", err)
	}
	orphans, err := v.graph.GetOrphans(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate: load orphans: %w", err)
	}
	nodes, err := v.graph.AllNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate: load nodes: %w", err)
	}
	edges, err := v.graph.AllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate: load edges: %w", err)
	}

	results := Results{
		TotalEntities:     nodeCount,
		TotalRelations:    edgeCount,
		OrphanNodes:       orphanIDs(orphans),
		SchemaViolations:  schemaViolations(nodes),
		ConfidenceIssues:  confidenceIssues(edges),
		DuplicateEntities: duplicateEntities(nodes),
		MissingTypes:      missingTypes(nodes),
	}
	report := &Report{
		ValidationResults: results,
		Recommendations:   recommendations(results),
	}

	logger.Debug("[Validation][Validate] Finished", "entities", nodeCount, "relations", edgeCount, "recommendations", len(report.Recommendations))
	return report, nil
}

func orphanIDs(orphans []common.Entity) []string {
	ids := make([]string, 0, len(orphans))
	for _, e := range orphans {
		ids = append(ids, e.ID)
	}
	slices.Sort(ids)
	return ids
}

func sortedByID(nodes []common.Entity) []common.Entity {
	out := slices.Clone(nodes)
	slices.SortStableFunc(out, func(a, b common.Entity) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// An empty type is both a schema violation and a missing type.
func schemaViolations(nodes []common.Entity) []string {
	out := make([]string, 0)
	for _, n := range sortedByID(nodes) {
		if !n.Type.Valid() {
			out = append(out, fmt.Sprintf("Node %s has invalid type: %s", n.ID, n.Type))
		}
	}
	return out
}

func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

func confidenceIssues(edges []common.Relationship) []ConfidenceIssue {
	out := make([]ConfidenceIssue, 0)
	for _, e := range edges {
		triple := fmt.Sprintf("%s --[%s]--> %s", e.Source, e.Relation, e.Target)
		if common.ValidConfidence(e.Confidence) {
			continue
		}
		issue := fmt.Sprintf("Confidence %s is below minimum threshold of 0.5", formatConfidence(e.Confidence))
		if e.Confidence > common.MaxConfidence {
			issue = fmt.Sprintf("Confidence %s exceeds maximum of 1.0", formatConfidence(e.Confidence))
		}
		out = append(out, ConfidenceIssue{Triple: triple, Issue: issue})
	}
	slices.SortStableFunc(out, func(a, b ConfidenceIssue) int {
		if c := strings.Compare(a.Triple, b.Triple); c != 0 {
			return c
		}
		return strings.Compare(a.Issue, b.Issue)
	})
	return out
}

func duplicateEntities(nodes []common.Entity) []string {
	byName := make(map[string][]string)
	for _, n := range sortedByID(nodes) {
		name := n.Name()
		byName[name] = append(byName[name], n.ID)
	}

	names := make([]string, 0, len(byName))
	for name, ids := range byName {
		if len(ids) > 1 {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Sprintf("\"%s\" appears as: %s", name, strings.Join(byName[name], ", ")))
	}
	return out
}

func missingTypes(nodes []common.Entity) []string {
	out := make([]string, 0)
	for _, n := range sortedByID(nodes) {
		if n.Type == "" {
			out = append(out, n.ID)
		}
	}
	return out
}

func recommendations(r Results) []string {
	var out []string
	if n := len(r.OrphanNodes); n > 0 {
		out = append(out, fmt.Sprintf("Remove or connect %d orphan node(s) with no relationships", n))
	}
	if n := len(r.SchemaViolations); n > 0 {
		out = append(out, fmt.Sprintf("Fix %d schema violation(s) with invalid entity types", n))
	}
	if n := len(r.ConfidenceIssues); n > 0 {
		out = append(out, fmt.Sprintf("Address %d confidence issue(s) - remove or update low-confidence edges", n))
	}
	if n := len(r.DuplicateEntities); n > 0 {
		out = append(out, fmt.Sprintf("Merge %d duplicate entity name(s) - normalize entity IDs", n))
	}
	if n := len(r.MissingTypes); n > 0 {
		out = append(out, fmt.Sprintf("Add type information to %d node(s) with missing types", n))
	}
	if len(out) == 0 {
		out = append(out, PassedRecommendation)
	}
	return out
}
