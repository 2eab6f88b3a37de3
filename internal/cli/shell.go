package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/athena/internal/command"
)

// Prompt is printed before each line the shell reads.
const Prompt = "athena> "

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Config string
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session against a fresh in-memory store",
		Long: `Read commands from standard input and print each reply, until QUIT,
SHUTDOWN or end of input. The store is discarded on exit.

Example:
  athena shell
  athena shell --config ./athena.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to CUE configuration file")

	return cmd
}

func runShell(opts *ShellOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions, cfg.Level())
	d := newDispatcher(cfg, logger)
	sess := command.NewSession("shell")
	defer d.CloseSession(sess)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	w := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(w, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(w)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := d.Execute(ctx, sess, line)
		fmt.Fprintln(w, reply.Text)
		if reply.Status == command.StatusQuit || reply.Status == command.StatusShutdown {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitFailure, "reading input", err)
	}
	return nil
}
