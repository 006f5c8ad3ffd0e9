// Package cli implements the linked command line: store maintenance,
// SPARQL reads and updates, view compilation and scenario runs.
package cli

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/linked/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    int
	Format     string // "json" | "text"
	DBPath     string
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the linked CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "linked",
		Short: "linked - live entities and views over an RDF store",
		Long: `linked keeps entities and views bound to a triple store.

Commands read and write the SQLite store directly, compile CUE view
declarations to their standing queries, and run binding scenarios.

Examples:
  linked exec 'INSERT DATA { <urn:a> <urn:p> "x" . }'
  linked query 'SELECT ?s ?o WHERE { ?s <urn:p> ?o }'
  linked import data.nq
  linked export > data.nq
  linked compile ./views
  linked test ./scenarios`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, "invalid format \""+opts.Format+"\": must be one of text, json")
			}
			return nil
		},
	}

	cmd.PersistentFlags().CountVarP(&opts.Verbose, "verbose", "v", "increase log verbosity (-v, -vv)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (default from config: "+config.DefaultDatabasePath+")")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (TOML or YAML)")

	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// LoadConfig reads the config file named by --config, applies LINKED_*
// environment overrides and then --db.
func (o *RootOptions) LoadConfig() (*config.Config, error) {
	v := config.New()
	if o.ConfigPath != "" {
		v.SetConfigFile(o.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", o.ConfigPath)
		}
	}
	if o.DBPath != "" {
		v.Set("database.path", o.DBPath)
	}
	return config.FromViper(v)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose > 0,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
