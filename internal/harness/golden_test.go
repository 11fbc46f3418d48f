package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"things_by_name", "unknown_expand", "things_count"} {
		t.Run(name, func(t *testing.T) {
			sc, err := LoadScenario("testdata/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalSnapshot(t *testing.T) {
	data, err := MarshalSnapshot(Snapshot{
		Scenario: "s",
		URL:      "$top=1&$skip=2",
		Entities: []any{map[string]any{"b": 1.0, "a": "<x>"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{
  "scenario": "s",
  "url": "$top=1&$skip=2",
  "entities": [
    {
      "a": "<x>",
      "b": 1
    }
  ]
}
`, string(data))
}
