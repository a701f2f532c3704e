package trend

import "fmt"

// InsufficientHistoryError is returned when a series has too few
// observed points to smooth. The caller degrades the channel instead of
// aborting the entity.
type InsufficientHistoryError struct {
	Got    int
	Needed int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: %d observed points, need %d", e.Got, e.Needed)
}

// DataGapError is returned when a gap run exceeds the configured
// maximum. Smoothing is still attempted on the interpolated series;
// the channel is marked incomplete.
type DataGapError struct {
	Run int
	Max int
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("gap run of %d samples exceeds maximum %d", e.Run, e.Max)
}
