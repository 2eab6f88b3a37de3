package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/athena/internal/command"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Config string
	File   string
}

// ExecReply is one executed command in JSON output.
type ExecReply struct {
	Command string `json:"command"`
	Reply   string `json:"reply"`
	Status  string `json:"status"`
}

// ExecResult holds every reply of an exec run.
type ExecResult struct {
	Replies []ExecReply `json:"replies"`
	Failed  int         `json:"failed"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec [command...]",
		Short: "Run commands against a fresh in-memory store",
		Long: `Execute commands in one session against an empty store and print the
replies. Each argument is one command line; --file reads one command per
line instead (blank lines and lines starting with # are skipped).
Execution stops at QUIT or SHUTDOWN.

Exit codes:
  0 - Every command succeeded
  1 - One or more commands replied with an error
  2 - Command error (unreadable file, bad configuration)

Examples:
  athena exec "SET A {1, 2}" "EVAL A ^"
  athena exec --file ./script.txt --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to CUE configuration file")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read commands from file")

	return cmd
}

func runExec(opts *ExecOptions, args []string, cmd *cobra.Command) error {
	lines := args
	if opts.File != "" {
		if len(args) > 0 {
			return NewExitError(ExitCommandError, "commands and --file are mutually exclusive")
		}
		var err error
		if lines, err = readScript(opts.File); err != nil {
			return WrapExitError(ExitCommandError, "failed to read commands", err)
		}
	}
	if len(lines) == 0 {
		return NewExitError(ExitCommandError, "no commands given")
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions, cfg.Level())
	d := newDispatcher(cfg, logger)
	sess := command.NewSession("exec")
	defer d.CloseSession(sess)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result ExecResult
	w := cmd.OutOrStdout()
	for _, line := range lines {
		reply := d.Execute(ctx, sess, line)
		result.Replies = append(result.Replies, ExecReply{Command: line, Reply: reply.Text, Status: string(reply.Status)})
		if reply.Status == command.StatusError {
			result.Failed++
		}
		if opts.Format != "json" {
			fmt.Fprintln(w, reply.Text)
		}
		if reply.Status == command.StatusQuit || reply.Status == command.StatusShutdown {
			break
		}
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: w}
		if err := f.Success(result); err != nil {
			return err
		}
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d command(s) failed", result.Failed))
	}
	return nil
}

// readScript returns the command lines of a script file.
func readScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scriptLines(f)
}

func scriptLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
