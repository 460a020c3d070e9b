// Package priority implements the penalized priority scorer from
// spec.md §4.5: a single number per person, per week, composing rate
// deficit, mentor load, recency, and cross-period debt. Like the
// fairness package it is a stateless pure function over an Input record
// — the Fairness Manager assembles the Input from its own state.
package priority

import "math"

// Epsilon guards the rate-deficit term against division by zero for a
// person whose posterior mean is exactly 0 (freshly onboarded with an
// ideal rate of 0, or a numerically clamped-to-zero mean).
const Epsilon = 1e-3

// MentorPenalty is the multiplicative discount applied to an active
// mentor's priority so they are not over-selected purely for having a
// low rate while shepherding a newcomer.
const MentorPenalty = 0.85

// Input carries every figure Score needs for one person in one week. The
// caller (the Fairness Manager) is responsible for deriving IsActiveMentor
// and SchedulingDays from the broader run state.
type Input struct {
	PosteriorMean         float64
	IsActiveMentor        bool
	SchedulingDays        float64
	TotalMainAssignments  int
	RecentCount           int
	CrossYearDebt         float64
	// CorrectiveMultiplier is the optional top/bottom-quartile adjustment
	// the constraint evaluator (C7) registers; 0 is treated as 1
	// (no adjustment) so callers that don't use corrective actions can
	// leave it at the Input zero value.
	CorrectiveMultiplier float64
}

// Score computes spec.md §4.5's priority: strictly positive by
// construction, since every factor is strictly positive.
func Score(in Input) float64 {
	base := 1 / (in.PosteriorMean + Epsilon)

	mentor := 1.0
	if in.IsActiveMentor {
		mentor = MentorPenalty
	}

	var expected float64
	if in.SchedulingDays > 0 {
		expected = (4 * 7 / in.SchedulingDays) * float64(in.TotalMainAssignments)
	}
	recency := 1 + math.Max(0, expected-float64(in.RecentCount))

	debt := 1 + 0.8*math.Max(0, in.CrossYearDebt)

	corrective := in.CorrectiveMultiplier
	if corrective == 0 {
		corrective = 1.0
	}

	return base * mentor * recency * debt * corrective
}

// IsActiveMentor reports whether a person counts as an active mentor
// this week: Experienced, with at least one New person present.
func IsActiveMentor(isExperienced, anyNewPersonPresent bool) bool {
	return isExperienced && anyNewPersonPresent
}

// Candidate is the minimal shape the tie-break comparator needs.
type Candidate struct {
	PersonID             string
	AccumulatedMain      int
}

// Less implements spec.md §4.5's tie-break: lower accumulated
// assignments first, then lexicographic person id. It is a secondary
// sort key for candidates whose priority (and, in the selector, Gumbel
// perturbed score) compare equal.
func Less(a, b Candidate) bool {
	if a.AccumulatedMain != b.AccumulatedMain {
		return a.AccumulatedMain < b.AccumulatedMain
	}
	return a.PersonID < b.PersonID
}
