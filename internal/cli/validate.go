package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/athena/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Config *config.Config `json:"config,omitempty"`
	Line   int            `json:"line,omitempty"`
	Column int            `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a configuration file",
		Long: `Validate a CUE configuration file against the athena schema and print
the effective configuration, defaults included.

Exit codes:
  0 - Valid
  1 - The file violates the schema
  2 - The file could not be read`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
	formatter.VerboseLog("Validating %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		var le *config.LoadError
		if !errors.As(err, &le) {
			return outputValidateError(formatter, ExitCommandError, "C000", err.Error(), nil)
		}
		exit := ExitFailure
		if le.Code == config.ErrCodeRead {
			exit = ExitCommandError
		}
		details := ValidationResult{}
		if le.Pos.IsValid() {
			details.Line, details.Column = le.Pos.Line(), le.Pos.Column()
		}
		return outputValidateError(formatter, exit, le.Code, le.Error(), details)
	}

	return outputValidateSuccess(formatter, cfg)
}

// outputValidateSuccess outputs the effective configuration.
func outputValidateSuccess(formatter *OutputFormatter, cfg *config.Config) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Config: cfg})
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✓ Configuration valid")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "listen:            %s\n", cfg.Listen)
	fmt.Fprintf(w, "metrics_addr:      %s\n", orNone(cfg.MetricsAddr))
	fmt.Fprintf(w, "max_sessions:      %d\n", cfg.MaxSessions)
	fmt.Fprintf(w, "status_interval:   %s\n", cfg.Interval())
	fmt.Fprintf(w, "log_level:         %s\n", cfg.LogLevel)
	fmt.Fprintf(w, "arena:             initial %d, growth %d, max %d\n",
		cfg.Arena.InitialCapacity, cfg.Arena.GrowthStep, cfg.Arena.MaxObjects)
	fmt.Fprintf(w, "limits:            powerset %d, product %d\n",
		cfg.Limits.MaxPowersetCard, cfg.Limits.MaxProductSize)
	fmt.Fprintf(w, "journal:           %s\n", orNone(cfg.Journal.Path))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, exit int, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(exit, fmt.Sprintf("%s: %s", code, message))
}
