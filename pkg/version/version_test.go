package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"1", "2", "*"}, Split("1.2.*"))
	assert.Equal(t, []string{"latest"}, Split("latest"))
	assert.Equal(t, []string{}, Split(""))
}

func TestMatch(t *testing.T) {
	t.Parallel()

	t.Run("fewer candidate tokens never matches", func(t *testing.T) {
		t.Parallel()
		assert.False(t, Match("1.2.3", "1.2"))
	})

	t.Run("wildcard matches any token", func(t *testing.T) {
		t.Parallel()
		assert.True(t, Match("1.2.*", "1.2.9"))
		assert.True(t, Match("1.*", "1.2.9"))
	})

	t.Run("literal token must equal candidate token", func(t *testing.T) {
		t.Parallel()
		assert.False(t, Match("1.3.*", "1.2.9"))
	})

	t.Run("deterministic across repeated calls", func(t *testing.T) {
		t.Parallel()
		for range 5 {
			assert.True(t, Match("3.10.*", "3.10.4"))
		}
	})
}

// TestFindPatternResolution is scenario S2 from the spec: a tag list
// ordered newest-first, matched against a handful of patterns.
func TestFindPatternResolution(t *testing.T) {
	t.Parallel()

	tags := []string{"3.11.0", "3.10.4", "3.9.2"}

	got, err := Find("3.10.*", tags)
	require.NoError(t, err)
	assert.Equal(t, "3.10.4", got)

	got, err = Find("3.*", tags)
	require.NoError(t, err)
	assert.Equal(t, "3.11.0", got)

	_, err = Find("4.*", tags)
	assert.Error(t, err)
}

func TestFindLatest(t *testing.T) {
	t.Parallel()

	got, err := Find("latest", []string{"v3", "v2", "v1"})
	require.NoError(t, err)
	assert.Equal(t, "v3", got)

	_, err = Find("latest", nil)
	assert.Error(t, err)
}
