package climatology

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means the historical window or a variable's sample is
	// too small to estimate quantiles from.
	ErrInsufficientData = errors.New("insufficient historical data")

	// ErrMissingCurrentObservation means today's max/min have not been observed
	// yet, so no category can be assigned.
	ErrMissingCurrentObservation = errors.New("current observation missing")
)

// DateAlignmentError reports an ambiguous local calendar-date computation,
// typically a timezone that could not be resolved for a station.
type DateAlignmentError struct {
	StationID string
	Reason    string
}

func (e *DateAlignmentError) Error() string {
	return fmt.Sprintf("date alignment for station %s: %s", e.StationID, e.Reason)
}
