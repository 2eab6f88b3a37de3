package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its transcript with the golden file of the same name.
func TestScenarios(t *testing.T) {
	paths, err := FindScenarios("scenarios", "testdata")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "set_algebra")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.FormatTranscript(), second.FormatTranscript())
	assert.Equal(t, first.Trace, second.Trace, "sequence numbers restart for every run")
}
