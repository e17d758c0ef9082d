package main

import (
	"context"
	"fmt"
	"os"

	"github.com/OFFIS-RIT/kgstore/internal/backend"
	"github.com/OFFIS-RIT/kgstore/internal/storage"
	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/logger/console"

	"github.com/spf13/cobra"
)

var (
	backendKind string
	databaseURL string
	sqlitePath  string
	jsonOutput  bool
	verbose     bool

	session *cliSession
)

// cliSession is the open backend the commands work on.
type cliSession struct {
	backend  *backend.Backend
	services *backend.Services
	owned    bool
}

func (s *cliSession) Close() {
	if s.owned {
		s.backend.Close()
	}
}

func openSession(ctx context.Context) (*cliSession, error) {
	b, err := backend.Open(ctx, backend.Config{
		Kind:        backendKind,
		DatabaseURL: databaseURL,
		SQLitePath:  sqlitePath,
	})
	if err != nil {
		return nil, err
	}

	params := backend.ServicesParamsFromEnv()
	archive, err := storage.NewArchiveFromEnv(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	if archive != nil {
		params.Archive = archive
	}

	services, err := backend.NewServices(b, params)
	if err != nil {
		b.Close()
		return nil, err
	}
	return &cliSession{backend: b, services: services, owned: true}, nil
}

var rootCmd = &cobra.Command{
	Use:           "kgctl <command>",
	Short:         "Inspect and maintain the defense knowledge graph",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Level: level}))

		if session != nil {
			return nil
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to open backend: %w", err)
		}
		session = s
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if session != nil && session.owned {
			session.Close()
			session = nil
		}
	},
}

func init() {
	util.LoadEnv()
	cfg := backend.ConfigFromEnv()

	rootCmd.PersistentFlags().StringVar(&backendKind, "backend", cfg.Kind, "storage backend (postgres, sqlite or memory)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection URL")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "graph", Title: "Graph:"},
		&cobra.Group{ID: "documents", Title: "Documents:"},
		&cobra.Group{ID: "reports", Title: "Reports:"},
	)
	cobra.EnableCommandSorting = false

	// Graph
	rootCmd.AddCommand(traverseCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(clearCmd)

	// Documents
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(docsCmd)

	// Reports
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(insightsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
