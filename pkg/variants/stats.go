package variants

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrInvalidStats is returned when a size makes the stats undefined.
var ErrInvalidStats = errors.New("invalid compression stats input")

// CompressionStats compares a source size against its optimized size.
type CompressionStats struct {
	Ratio           float64 `json:"ratio"`
	SavedBytes      int64   `json:"savedBytes"`
	SavedPercentage int32   `json:"savedPercentage"`
}

func (s CompressionStats) String() string {
	return fmt.Sprintf("saved %d bytes (%d%%), ratio %.2f", s.SavedBytes, s.SavedPercentage, s.Ratio)
}

// ComputeStats derives the savings of optimizedSize over originalSize. Both
// sizes must be positive. Percentage and ratio round half up, the ratio to two
// decimals.
func ComputeStats(originalSize, optimizedSize int64) (CompressionStats, error) {
	if originalSize <= 0 {
		return CompressionStats{}, errors.Wrapf(ErrInvalidStats, "original size %d", originalSize)
	}
	if optimizedSize <= 0 {
		return CompressionStats{}, errors.Wrapf(ErrInvalidStats, "optimized size %d", optimizedSize)
	}

	saved := originalSize - optimizedSize
	return CompressionStats{
		SavedBytes:      saved,
		SavedPercentage: int32(roundHalfUp(float64(saved) / float64(originalSize) * 100)),
		Ratio:           roundHalfUp(float64(originalSize)/float64(optimizedSize)*100) / 100,
	}, nil
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
