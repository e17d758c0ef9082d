package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

func printEntities(w io.Writer, entities []common.Entity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE")
	for _, e := range entities {
		fmt.Fprintf(tw, "%s\t%s\n", e.ID, e.Type)
	}
	tw.Flush()
}

func printRelationships(w io.Writer, rels []common.Relationship) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tRELATION\tTARGET\tCONFIDENCE")
	for _, r := range rels {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Source, r.Relation, r.Target, formatConfidence(r.Confidence))
	}
	tw.Flush()
}
