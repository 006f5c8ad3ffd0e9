package cli

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <update>",
		Short: "Apply a SPARQL update to the store",
		Long: `Apply SPARQL INSERT DATA / DELETE DATA operations, separated by ';', to
the store. Pass "-" to read the update from stdin.

Examples:
  linked exec 'PREFIX ex: <http://example.org/> INSERT DATA { ex:dune ex:pages 412 . }'
  linked exec - < update.rq`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(rootOpts, args[0], cmd)
		},
	}
}

func runExec(opts *RootOptions, arg string, cmd *cobra.Command) error {
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

	if err := s.store.ExecuteString(cmd.Context(), text); err != nil {
		return f.Fail(ErrCodeUpdate, err)
	}

	if f.Format == "json" {
		return f.Success(map[string]any{"applied": true})
	}
	return f.Success("✓ Update applied")
}

// readArgument returns arg, or all of stdin when arg is "-".
func readArgument(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", errors.Wrap(err, "read stdin")
	}
	return string(data), nil
}
