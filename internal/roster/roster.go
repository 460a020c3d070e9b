// Package roster holds the pure, read-only queries over a list of
// domain.Person records: who is active on a date, how long someone has
// been present, and whether they count as Experienced. Nothing here
// mutates a Person; the Fairness Manager owns the only mutable state
// derived from these queries.
package roster

import (
	"time"

	"github.com/arvane/fairshift/internal/calendar"
	"github.com/arvane/fairshift/internal/domain"
)

// Default thresholds for experience classification, per spec.md §4.3 and
// the Open Question in spec.md §9 (28 days, configurable).
const (
	DefaultTenureThresholdDays = 28
	DefaultAssignmentThreshold = 4
)

// IsActiveOn reports whether person has a participation period containing
// date.
func IsActiveOn(person domain.Person, date time.Time) bool {
	for _, p := range person.Periods {
		if p.Contains(date) {
			return true
		}
	}
	return false
}

// ActivePeople filters list to the people active on date, preserving the
// input order.
func ActivePeople(list []domain.Person, date time.Time) []domain.Person {
	active := make([]domain.Person, 0, len(list))
	for _, p := range list {
		if IsActiveOn(p, date) {
			active = append(active, p)
		}
	}
	return active
}

// TotalDaysPresent sums days present across all of person's periods up to
// reference; the reference day itself is not counted.
func TotalDaysPresent(person domain.Person, reference time.Time) int {
	periods := make([]calendar.Period, len(person.Periods))
	for i, p := range person.Periods {
		periods[i] = calendar.Period{Start: p.Start, End: p.End}
	}
	return calendar.DaysPresent(periods, reference)
}

// ExperienceOptions configures IsExperienced's thresholds. Zero value
// resolves to the package defaults.
type ExperienceOptions struct {
	TenureThresholdDays int
	AssignmentThreshold int
}

func (o ExperienceOptions) resolved() ExperienceOptions {
	if o.TenureThresholdDays <= 0 {
		o.TenureThresholdDays = DefaultTenureThresholdDays
	}
	if o.AssignmentThreshold <= 0 {
		o.AssignmentThreshold = DefaultAssignmentThreshold
	}
	return o
}

// IsExperienced reports whether person counts as Experienced on
// reference: tenure at or above the threshold, or at least
// AssignmentThreshold prior main assignments.
func IsExperienced(person domain.Person, reference time.Time, priorMainAssignments int, opts ExperienceOptions) bool {
	opts = opts.resolved()
	earliest := person.EarliestStart()
	if earliest.IsZero() {
		return priorMainAssignments >= opts.AssignmentThreshold
	}
	tenureDays := calendar.DaysBetween(earliest, reference)
	if tenureDays >= opts.TenureThresholdDays {
		return true
	}
	return priorMainAssignments >= opts.AssignmentThreshold
}

// Experience returns the tagged Experience variant for person.
func Experience(person domain.Person, reference time.Time, priorMainAssignments int, opts ExperienceOptions) domain.Experience {
	if IsExperienced(person, reference, priorMainAssignments, opts) {
		return domain.Experienced
	}
	return domain.New
}
