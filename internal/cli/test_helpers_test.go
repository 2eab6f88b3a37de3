package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

// createTestCLI returns a root command writing to fresh buffers.
func createTestCLI(t *testing.T, stdin string, args ...string) (run func() error, stdout, stderr *bytes.Buffer) {
	t.Helper()
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	var in io.Reader = strings.NewReader(stdin)
	cmd.SetIn(in)
	cmd.SetArgs(args)
	return func() error { return cmd.ExecuteContext(context.Background()) }, stdout, stderr
}
