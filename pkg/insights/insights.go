// Package insights derives summary views of the knowledge graph: the most
// connected programs, contractor portfolios and program hierarchies.
package insights

import (
	"cmp"
	"slices"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

const (
	maxPrograms        = 10
	maxContractors     = 10
	maxContractorItems = 5
	maxHierarchies     = 5
)

type ProgramConnections struct {
	Name        string `json:"name"`
	Connections int    `json:"connections"`
}

type ContractorPortfolio struct {
	Name        string   `json:"name"`
	SystemCount int      `json:"system_count"`
	Systems     []string `json:"systems"`
}

type HierarchySystem struct {
	Name       string            `json:"name"`
	Type       common.EntityType `json:"type,omitempty"`
	Subsystems []string          `json:"subsystems"`
}

type Hierarchy struct {
	Program string            `json:"program"`
	Systems []HierarchySystem `json:"systems"`
}

// Insights is the summary returned by Compute.
type Insights struct {
	Programs          []ProgramConnections  `json:"programs"`
	Contractors       []ContractorPortfolio `json:"contractors"`
	Hierarchies       []Hierarchy           `json:"hierarchies"`
	TypeBreakdown     map[string]int        `json:"type_breakdown"`
	RelationBreakdown map[string]int        `json:"relation_breakdown"`
	TotalEntities     int                   `json:"total_entities"`
	TotalRelations    int                   `json:"total_relations"`
}

// Compute builds the insights for the given nodes and edges. Rankings are
// stable: ties keep the order of nodes and edges.
func Compute(nodes []common.Entity, edges []common.Relationship) *Insights {
	out := &Insights{
		Programs:          make([]ProgramConnections, 0),
		Contractors:       make([]ContractorPortfolio, 0),
		Hierarchies:       make([]Hierarchy, 0),
		TypeBreakdown:     make(map[string]int),
		RelationBreakdown: make(map[string]int),
		TotalEntities:     len(nodes),
		TotalRelations:    len(edges),
	}

	connections := make(map[string]int)
	for _, e := range edges {
		connections[e.Source]++
		connections[e.Target]++
		out.RelationBreakdown[string(e.Relation)]++
	}

	byID := make(map[string]common.Entity, len(nodes))
	var programs []common.Entity
	for _, n := range nodes {
		byID[n.ID] = n
		out.TypeBreakdown[string(n.Type)]++
		if n.Type == common.EntityProgram {
			programs = append(programs, n)
			out.Programs = append(out.Programs, ProgramConnections{Name: n.ID, Connections: connections[n.ID]})
		}
	}
	slices.SortStableFunc(out.Programs, func(a, b ProgramConnections) int {
		return cmp.Compare(b.Connections, a.Connections)
	})
	out.Programs = truncate(out.Programs, maxPrograms)

	out.Contractors = contractors(edges)
	out.Hierarchies = hierarchies(programs, edges, byID)
	return out
}

func contractors(edges []common.Relationship) []ContractorPortfolio {
	var order []string
	systems := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	for _, e := range edges {
		if e.Relation != common.RelDevelopedBy {
			continue
		}
		set, ok := seen[e.Target]
		if !ok {
			set = make(map[string]struct{})
			seen[e.Target] = set
			order = append(order, e.Target)
		}
		if _, dup := set[e.Source]; dup {
			continue
		}
		set[e.Source] = struct{}{}
		systems[e.Target] = append(systems[e.Target], e.Source)
	}

	out := make([]ContractorPortfolio, 0, len(order))
	for _, name := range order {
		all := systems[name]
		out = append(out, ContractorPortfolio{
			Name:        name,
			SystemCount: len(all),
			Systems:     slices.Clone(truncate(all, maxContractorItems)),
		})
	}
	slices.SortStableFunc(out, func(a, b ContractorPortfolio) int {
		return cmp.Compare(b.SystemCount, a.SystemCount)
	})
	return truncate(out, maxContractors)
}

// hierarchies follows part_of edges two levels down from each of the first
// programs. Programs without part_of edges are left out.
func hierarchies(programs []common.Entity, edges []common.Relationship, byID map[string]common.Entity) []Hierarchy {
	partOf := make(map[string][]string)
	for _, e := range edges {
		if e.Relation == common.RelPartOf {
			partOf[e.Source] = append(partOf[e.Source], e.Target)
		}
	}

	out := make([]Hierarchy, 0)
	for _, p := range truncate(programs, maxHierarchies) {
		targets := partOf[p.ID]
		if len(targets) == 0 {
			continue
		}
		h := Hierarchy{Program: p.ID, Systems: make([]HierarchySystem, 0, len(targets))}
		for _, sys := range targets {
			subs := make([]string, 0)
			for _, sub := range partOf[sys] {
				if _, ok := byID[sub]; ok {
					subs = append(subs, sub)
				}
			}
			h.Systems = append(h.Systems, HierarchySystem{
				Name:       sys,
				Type:       byID[sys].Type,
				Subsystems: subs,
			})
		}
		out = append(out, h)
	}
	return out
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
