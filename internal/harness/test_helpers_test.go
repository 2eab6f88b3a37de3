package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

// createTestScenario builds a single-session scenario from send/expect
// pairs.
func createTestScenario(name string, steps ...[2]string) *Scenario {
	s := &Scenario{Name: name, Description: "test scenario " + name}
	for _, step := range steps {
		s.Steps = append(s.Steps, Step{Send: step[0], Expect: ptr(step[1])})
	}
	return s
}

// loadTestScenario loads testdata/scenarios/<name>.yaml.
func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}
