package main

import (
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/query"

	"github.com/spf13/cobra"
)

var (
	traverseHops int
	retrieveHops int
	clearYes     bool
)

var traverseCmd = &cobra.Command{
	Use:     "traverse <id>",
	Short:   "Show the neighbourhood of an entity",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := session.backend.Graph.Traverse(cmd.Context(), args[0], traverseHops)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, sub)
		}
		printEntities(w, sub.Entities)
		fmt.Fprintln(w)
		printRelationships(w, sub.Relationships)
		return nil
	},
}

var retrieveCmd = &cobra.Command{
	Use:     "retrieve <question>",
	Short:   "Print the graph context retrieved for a question",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hops := retrieveHops
		if hops <= 0 {
			hops = session.services.Hops
		}
		res, err := session.services.Retriever.RetrieveForQuestion(cmd.Context(), args[0], hops, nil)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, res)
		}
		fmt.Fprint(w, query.FormatContext(res.Graph))
		return nil
	},
}

var orphansCmd = &cobra.Command{
	Use:     "orphans",
	Short:   "List entities without any relationship",
	GroupID: "graph",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orphans, err := session.backend.Graph.GetOrphans(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			if orphans == nil {
				orphans = []common.Entity{}
			}
			return printJSON(w, orphans)
		}
		if len(orphans) == 0 {
			fmt.Fprintln(w, "No orphan entities")
			return nil
		}
		printEntities(w, orphans)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Delete every entity, relationship and document",
	GroupID: "graph",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return errors.New("refusing to clear the graph without --yes")
		}
		if err := session.backend.Graph.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph cleared")
		return nil
	},
}

func init() {
	traverseCmd.Flags().IntVar(&traverseHops, "hops", query.DefaultHops, "maximum number of hops")
	retrieveCmd.Flags().IntVar(&retrieveHops, "hops", 0, "maximum number of hops (default TRAVERSE_HOPS)")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm clearing the graph")
}
