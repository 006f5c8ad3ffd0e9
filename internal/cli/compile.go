package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/linked/internal/compiler"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledView is one view with its standing query and SQL.
type CompiledView struct {
	Name   string `json:"name"`
	URI    string `json:"uri,omitempty"`
	Kind   string `json:"kind"`
	Query  string `json:"query"`
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// CompilationResult holds the compiled views of a directory.
type CompilationResult struct {
	Namespaces map[string]string `json:"namespaces,omitempty"`
	Views      []CompiledView    `json:"views"`
	FileCount  int               `json:"file_count"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <views-dir>",
		Short: "Compile CUE view declarations to standing queries",
		Long: `Compile the CUE view declarations of a directory.

Each view is validated, compiled to its standing query with ORDER BY,
LIMIT and OFFSET applied, and translated to the SQL the store runs.
Namespaces from the config file are available to every view.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the JSON result to this file")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.LoadConfig()
	if err != nil {
		return f.Fail(ErrCodeConfig, err)
	}

	decls, loadErrs := compiler.LoadDir(dir, compiler.LoadModeCollectAll)
	if len(loadErrs) > 0 {
		return outputCompileErrors(f, loadErrs)
	}
	f.VerboseLog("Found %d CUE file(s) in %s", decls.FileCount, dir)

	resolver := namespace.NewResolver()
	cfg.Register(resolver)
	resolver.RegisterAll(decls.Namespaces)

	if verrs := compiler.Validate(decls.Views, resolver); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return outputCompileErrors(f, errs)
	}

	result, err := compileViews(decls, resolver, f)
	if err != nil {
		return f.Fail(ErrCodeInvalid, err)
	}

	if opts.Output != "" {
		if err := writeResultFile(result, opts.Output); err != nil {
			return f.Fail(ErrCodeIO, err)
		}
	}

	return outputCompileSuccess(f, result, opts.Output)
}

func compileViews(decls *compiler.Declarations, resolver *namespace.Resolver, f *OutputFormatter) (*CompilationResult, error) {
	sqlc := querysql.NewSQLCompiler()
	result := &CompilationResult{
		Namespaces: decls.Namespaces,
		Views:      make([]CompiledView, 0, len(decls.Views)),
		FileCount:  decls.FileCount,
	}
	for i := range decls.Views {
		spec := &decls.Views[i]
		f.VerboseLog("Compiling view: %s", spec.Name)

		compiled, q, err := compiler.StandingQuery(spec, resolver)
		if err != nil {
			return nil, errors.Wrapf(err, "view %s", spec.Name)
		}
		sql, err := sqlc.Compile(q)
		if err != nil {
			return nil, errors.Wrapf(err, "view %s: sql", spec.Name)
		}
		result.Views = append(result.Views, CompiledView{
			Name:   spec.Name,
			URI:    spec.URI,
			Kind:   compiled.Kind().String(),
			Query:  q.String(),
			SQL:    sql.SQL,
			Params: sql.Params,
		})
	}
	return result, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(f *OutputFormatter, result *CompilationResult, outputFile string) error {
	if f.Format == "json" {
		return f.Success(result)
	}

	w := f.Writer
	fmt.Fprintf(w, "✓ Compiled %d view(s) from %d file(s)\n\n", len(result.Views), result.FileCount)
	for _, v := range result.Views {
		if v.URI != "" {
			fmt.Fprintf(w, "%s (%s) %s\n", v.Name, v.Kind, v.URI)
		} else {
			fmt.Fprintf(w, "%s (%s)\n", v.Name, v.Kind)
		}
		fmt.Fprintf(w, "  query: %s\n", v.Query)
		fmt.Fprintf(w, "  sql:   %s\n", v.SQL)
		if len(v.Params) > 0 {
			fmt.Fprintf(w, "  args:  %v\n", v.Params)
		}
		fmt.Fprintln(w)
	}
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote %s\n", outputFile)
	}
	return nil
}

// outputCompileErrors outputs load or validation errors. They are
// command-level errors (exit code 2).
func outputCompileErrors(f *OutputFormatter, errs []error) error {
	summary := fmt.Sprintf("compilation failed with %d error(s)", len(errs))

	if f.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := f.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, summary)
	}

	fmt.Fprintln(f.Writer, "✗ Compilation failed")
	fmt.Fprintln(f.Writer)
	for _, err := range errs {
		code, message := parseCompileError(err)
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) && compileErr.Pos.IsValid() {
			fmt.Fprintf(f.Writer, "%s:%d:%d\n",
				compileErr.Pos.Filename(), compileErr.Pos.Line(), compileErr.Pos.Column())
		}
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(f.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", code, message)
	}
	return NewExitError(ExitCommandError, summary)
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return ErrCodeInvalid, compileErr.Field + ": " + compileErr.Message
	}
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code, fmt.Sprintf("view %s: %s: %s", validationErr.View, validationErr.Field, validationErr.Message)
	}
	return compiler.ErrCodeGeneric, err.Error()
}

// writeResultFile writes the compilation result as indented JSON.
func writeResultFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal result")
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", filename)
	}
	return nil
}
