package explainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLevelMonotonic(t *testing.T) {
	prev := ClassifyLevel(0).Rank()
	require.GreaterOrEqual(t, prev, 0)

	for i := 1; i <= 100000; i++ {
		score := float64(i) / 1000
		rank := ClassifyLevel(score).Rank()
		require.GreaterOrEqual(t, rank, prev, "level dropped at score %v", score)
		prev = rank
	}
	assert.Equal(t, 3, prev)
}

func TestDefaultRulesValidate(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range DefaultRules() {
		assert.NoError(t, r.Validate(), r.ID)
		assert.False(t, seen[r.ID], "duplicate rule %s", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, seen, 6)
}
