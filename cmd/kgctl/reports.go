package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/OFFIS-RIT/kgstore/pkg/insights"
	"github.com/OFFIS-RIT/kgstore/pkg/validation"

	"github.com/spf13/cobra"
)

var strictValidate bool

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show entity, relationship and orphan counts",
	GroupID: "reports",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := session.backend.Graph.Stats(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, stats)
		}
		fmt.Fprintln(w, "Graph Stats")
		fmt.Fprintf(w, "  Entities:      %d\n", stats.TotalEntities)
		fmt.Fprintf(w, "  Relationships: %d\n", stats.TotalRelations)
		fmt.Fprintf(w, "  Orphans:       %d\n", stats.OrphanCount)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:     "validate",
	Short:   "Check the graph for orphans, schema violations and duplicates",
	GroupID: "reports",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := session.services.Validator.Validate(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			if err := printJSON(w, report); err != nil {
				return err
			}
		} else {
			printReport(w, report)
		}
		if strictValidate && !report.Passed() {
			return errors.New("graph validation found issues")
		}
		return nil
	},
}

func printReport(w io.Writer, report *validation.Report) {
	r := report.ValidationResults
	fmt.Fprintln(w, "Validation Results")
	fmt.Fprintf(w, "  Entities:           %d\n", r.TotalEntities)
	fmt.Fprintf(w, "  Relationships:      %d\n", r.TotalRelations)
	printSection(w, "Orphan nodes", r.OrphanNodes)
	printSection(w, "Schema violations", r.SchemaViolations)
	issues := make([]string, 0, len(r.ConfidenceIssues))
	for _, ci := range r.ConfidenceIssues {
		issues = append(issues, ci.Triple+": "+ci.Issue)
	}
	printSection(w, "Confidence issues", issues)
	printSection(w, "Duplicate entities", r.DuplicateEntities)
	printSection(w, "Missing types", r.MissingTypes)

	fmt.Fprintln(w, "\nRecommendations")
	for _, rec := range report.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
}

func printSection(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "  %-19s %d\n", title+":", len(items))
	for _, item := range items {
		fmt.Fprintf(w, "    %s\n", item)
	}
}

var insightsCmd = &cobra.Command{
	Use:     "insights",
	Short:   "Show top programs, contractor portfolios and hierarchies",
	GroupID: "reports",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		nodes, err := session.backend.Graph.AllNodes(ctx)
		if err != nil {
			return err
		}
		edges, err := session.backend.Graph.AllEdges(ctx)
		if err != nil {
			return err
		}
		res := insights.Compute(nodes, edges)

		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, res)
		}
		fmt.Fprintln(w, "Top Programs")
		for i, p := range res.Programs {
			fmt.Fprintf(w, "  %d. %s (%d connections)\n", i+1, p.Name, p.Connections)
		}
		fmt.Fprintln(w, "\nContractors")
		for _, c := range res.Contractors {
			fmt.Fprintf(w, "  %s (%d systems)\n", c.Name, c.SystemCount)
			for _, s := range c.Systems {
				fmt.Fprintf(w, "    - %s\n", s)
			}
		}
		fmt.Fprintln(w, "\nHierarchies")
		for _, h := range res.Hierarchies {
			fmt.Fprintf(w, "  %s\n", h.Program)
			for _, s := range h.Systems {
				fmt.Fprintf(w, "    └─ %s\n", s.Name)
				for _, sub := range s.Subsystems {
					fmt.Fprintf(w, "       └─ %s\n", sub)
				}
			}
		}
		fmt.Fprintf(w, "\nTotals: %d entities, %d relationships\n", res.TotalEntities, res.TotalRelations)
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&strictValidate, "strict", false, "exit non-zero when issues are found")
}
