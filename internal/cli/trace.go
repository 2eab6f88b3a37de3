package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/athena/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	Session string // optional - restrict to one session
	Command string // optional - filter to one command name
	Limit   int    // most recent entries; 0 means all
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Journal string          `json:"journal"`
	Session string          `json:"session,omitempty"`
	Entries []journal.Entry `json:"entries"`
	Stats   TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Entries  int `json:"entries"`
	Errors   int `json:"errors"`
	Sessions int `json:"sessions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled commands",
		Long: `List the commands recorded in a journal written by "athena serve
--journal", in execution order.

Each line shows the sequence number, session, command, arguments and
status. --verbose also prints each reply.

Examples:
  athena trace --journal ./journal.db
  athena trace --journal ./journal.db --session 0190f8f2-...
  athena trace --journal ./journal.db --command LOCK --limit 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite command journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Session, "session", "", "only entries of this session")
	cmd.Flags().StringVar(&opts.Command, "command", "", "only entries of this command")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only the most recent N entries (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Open would create an empty journal at a mistyped path.
	if _, err := os.Stat(opts.Journal); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	entries, err := readTrace(ctx, j, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{Journal: opts.Journal, Session: opts.Session, Entries: entries}
	sessions := make(map[string]bool)
	for _, e := range entries {
		sessions[e.Session] = true
		if e.Status == journal.StatusError {
			result.Stats.Errors++
		}
	}
	result.Stats.Entries = len(entries)
	result.Stats.Sessions = len(sessions)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// readTrace loads the entries selected by opts in seq order.
func readTrace(ctx context.Context, j *journal.Journal, opts *TraceOptions) ([]journal.Entry, error) {
	var (
		entries []journal.Entry
		err     error
	)
	if opts.Session != "" {
		entries, err = j.ReadSession(ctx, opts.Session)
	} else {
		entries, err = j.ReadRecent(ctx, 0)
	}
	if err != nil {
		return nil, err
	}

	if opts.Command != "" {
		want := strings.ToUpper(opts.Command)
		kept := entries[:0]
		for _, e := range entries {
			if e.Command == want {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[len(entries)-opts.Limit:]
	}
	return entries, nil
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Journal: %s\n", result.Journal)
	if result.Session != "" {
		fmt.Fprintf(w, "Session: %s\n", result.Session)
	}
	fmt.Fprintln(w)

	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return nil
	}

	for _, e := range result.Entries {
		line := e.Command
		if len(e.Args) > 0 {
			line += " " + strings.Join(e.Args, " ")
		}
		fmt.Fprintf(w, "[%d] %s %s -> %s\n", e.Seq, e.Session, line, e.Status)
		if verbose {
			for reply := range strings.SplitSeq(e.Reply, "\n") {
				fmt.Fprintf(w, "      %s\n", reply)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d entries, %d errors, %d sessions\n",
		result.Stats.Entries, result.Stats.Errors, result.Stats.Sessions)
	return nil
}
