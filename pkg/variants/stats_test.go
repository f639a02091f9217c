package variants

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	stats, err := ComputeStats(1000, 250)
	require.NoError(t, err)
	assert.Equal(t, CompressionStats{Ratio: 4.0, SavedBytes: 750, SavedPercentage: 75}, stats)
}

func TestComputeStatsRounding(t *testing.T) {
	stats, err := ComputeStats(3000, 1000)
	require.NoError(t, err)
	assert.Equal(t, int32(67), stats.SavedPercentage) // 66.67
	assert.Equal(t, 3.0, stats.Ratio)

	stats, err = ComputeStats(1000, 300)
	require.NoError(t, err)
	assert.Equal(t, 3.33, stats.Ratio)

	stats, err = ComputeStats(200, 199)
	require.NoError(t, err)
	assert.Equal(t, int32(1), stats.SavedPercentage) // 0.5 rounds up
}

func TestComputeStatsGrowth(t *testing.T) {
	stats, err := ComputeStats(100, 150)
	require.NoError(t, err)
	assert.Equal(t, int64(-50), stats.SavedBytes)
	assert.Equal(t, int32(-50), stats.SavedPercentage)
	assert.Equal(t, 0.67, stats.Ratio)
}

func TestComputeStatsRejectsZero(t *testing.T) {
	_, err := ComputeStats(0, 250)
	assert.True(t, errors.Is(err, ErrInvalidStats))

	_, err = ComputeStats(1000, 0)
	assert.True(t, errors.Is(err, ErrInvalidStats))
}
