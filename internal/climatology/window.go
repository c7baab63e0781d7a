package climatology

import (
	"fmt"
	"time"

	"github.com/lox/heatcheck/internal/models"
)

// DefaultWindowDays is the half-width of the calendar window used to pool the
// local climatology sample around today's date.
const DefaultWindowDays = 7

// SelectWindow returns every historical day whose (month, day) lies within
// halfWidth calendar days of target's (month, day), pooled across all years in
// the record. The window wraps across the year boundary, so a target in early
// January picks up late-December days from prior years.
func SelectWindow(record []models.DailyObservation, target time.Time, halfWidth int) ([]models.DailyObservation, error) {
	if halfWidth <= 0 {
		halfWidth = DefaultWindowDays
	}

	var selected []models.DailyObservation
	for _, day := range record {
		if calendarDistance(day.Month, day.Day, target) <= halfWidth {
			selected = append(selected, day)
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no historical days within %d days of %s: %w",
			halfWidth, target.Format("01-02"), ErrInsufficientData)
	}
	return selected, nil
}

// calendarDistance is the smallest number of days between a (month, day) pair
// and the target's calendar date, ignoring which year the pair came from. The
// candidate date is anchored in the target's year and its neighbours so that
// distances wrap correctly across Dec 31/Jan 1. A Feb 29 record in a non-leap
// target year normalises to Mar 1, which is close enough for a ±7 day window.
func calendarDistance(month, day int, target time.Time) int {
	anchor := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)

	best := -1
	for _, year := range []int{target.Year() - 1, target.Year(), target.Year() + 1} {
		candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		days := int(candidate.Sub(anchor).Hours() / 24)
		if days < 0 {
			days = -days
		}
		if best < 0 || days < best {
			best = days
		}
	}
	return best
}
