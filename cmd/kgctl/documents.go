package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/ingest"

	"github.com/spf13/cobra"
)

var triplesFile string

var ingestCmd = &cobra.Command{
	Use:     "ingest <file>",
	Short:   "Extract triples from a text file and store them",
	GroupID: "documents",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		filename := filepath.Base(args[0])

		var res *ingest.IngestResult
		if triplesFile != "" {
			raw, err := os.ReadFile(triplesFile)
			if err != nil {
				return fmt.Errorf("reading %s: %w", triplesFile, err)
			}
			var triples []common.Triple
			if err := json.Unmarshal(raw, &triples); err != nil {
				return fmt.Errorf("parsing %s: %w", triplesFile, err)
			}
			res, err = session.services.Ingestor.IngestTriples(cmd.Context(), filename, string(content), triples)
			if err != nil {
				return err
			}
		} else {
			res, err = session.services.Ingestor.Ingest(cmd.Context(), filename, string(content))
			if err != nil {
				return err
			}
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, res)
		}
		fmt.Fprintf(w, "Stored document %d (%s)\n", res.DocumentID, res.Filename)
		fmt.Fprintf(w, "  Triples:     %d\n", len(res.Triples))
		fmt.Fprintf(w, "  Skipped:     %d\n", len(res.Skipped))
		fmt.Fprintf(w, "  Orphans:     %d\n", len(res.Orphans))
		fmt.Fprintf(w, "  Ambiguities: %d\n", len(res.Ambiguities))
		for _, s := range res.Skipped {
			fmt.Fprintf(w, "  skipped %s --[%s]--> %s: %s\n", s.Triple.A, s.Triple.Relation, s.Triple.B, s.Reason)
		}
		return nil
	},
}

var docsCmd = &cobra.Command{
	Use:     "docs",
	Short:   "List or delete ingested documents",
	GroupID: "documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := session.backend.Graph.AllDocuments(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			if docs == nil {
				docs = []common.Document{}
			}
			return printJSON(w, docs)
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILENAME\tTRIPLES\tUPLOADED")
		for _, d := range docs {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", d.ID, d.Filename, d.TripleCount, d.UploadedAt.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete documents and the entities only they referenced",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", arg)
			}
			reclaimed, err := session.services.Ingestor.DeleteDocument(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("deleting %d: %w", id, err)
			}
			fmt.Fprintf(w, "Deleted document %d, reclaimed %d entities\n", id, len(reclaimed))
			for _, r := range reclaimed {
				fmt.Fprintf(w, "  %s\n", r)
			}
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&triplesFile, "triples", "", "JSON file with pre-extracted triples")
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsDeleteCmd)
}
