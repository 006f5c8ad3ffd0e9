package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/cayleygraph/quad"
	"github.com/spf13/cobra"

	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/queryir"
	"github.com/roach88/linked/internal/sparql"
)

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Vars []string            `json:"vars"`
	Rows []map[string]string `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <query>",
		Short: "Evaluate a SPARQL SELECT against the store",
		Long: `Evaluate a basic graph pattern SELECT against the store and print the
solutions in projection order. IRIs print as CURIEs where a prefix is known.
Pass "-" to read the query from stdin.

Examples:
  linked query 'SELECT ?s ?o WHERE { ?s <http://example.org/title> ?o }'
  linked query --format json - < books.rq`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], cmd)
		},
	}
}

func runQuery(opts *RootOptions, arg string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	text, err := readArgument(cmd, arg)
	if err != nil {
		return f.Fail(ErrCodeIO, err)
	}

	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	resolver := s.store.Resolver()
	q, err := sparql.ParseQuery(text, resolver)
	if err != nil {
		return f.Fail(ErrCodeQuery, err)
	}
	rows, err := s.store.Select(cmd.Context(), q)
	if err != nil {
		return f.Fail(ErrCodeQuery, err)
	}
	s.log.Debugw("query evaluated", "rows", len(rows))

	result := buildQueryResult(q.Projection(), rows, resolver)
	if f.Format == "json" {
		return f.Success(result)
	}
	return writeQueryTable(f, result)
}

func buildQueryResult(vars []queryir.Var, rows []queryir.Binding, resolver *namespace.Resolver) QueryResult {
	result := QueryResult{
		Vars: make([]string, len(vars)),
		Rows: make([]map[string]string, 0, len(rows)),
	}
	for i, v := range vars {
		result.Vars[i] = string(v)
	}
	for _, row := range rows {
		out := make(map[string]string, len(vars))
		for _, v := range vars {
			if val, ok := row[v]; ok {
				out[string(v)] = termText(val, resolver)
			}
		}
		result.Rows = append(result.Rows, out)
	}
	return result
}

// termText prints IRIs as CURIEs when a prefix matches and other terms in
// N-Quads form.
func termText(v quad.Value, resolver *namespace.Resolver) string {
	if iri, ok := v.(quad.IRI); ok {
		if short := resolver.Shrink(string(iri)); short != string(iri) {
			return short
		}
	}
	return v.String()
}

func writeQueryTable(f *OutputFormatter, result QueryResult) error {
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	header := make([]string, len(result.Vars))
	for i, v := range result.Vars {
		header[i] = "?" + v
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Vars))
		for i, v := range result.Vars {
			cells[i] = row[v]
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(f.Writer, "\n%d row(s)\n", len(result.Rows))
	return nil
}
