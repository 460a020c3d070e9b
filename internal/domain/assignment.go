package domain

import "time"

// Assignment is one scheduled week: a Monday-keyed roster of main
// assignees plus substitutes, and the fairness scores recorded at
// selection time so later mutations never need to recompute history.
type Assignment struct {
	WeekStart     time.Time
	MainIDs       []string
	SubstituteIDs []string
	Scores        map[string]float64
	HasMentor     bool
	Comment       string
	IsEmergency   bool
	ManuallyEdited bool
}

// Schedule is a dense vector of W weekly Assignments starting on Start.
// Invariant: Assignments[i].WeekStart == Start.AddDate(0, 0, 7*i).
type Schedule struct {
	ID         string
	Start      time.Time
	Weeks      int
	Assignments []Assignment
}

// WeekIndex returns the index into Assignments for the given Monday, or
// -1 if the date does not fall on one of the schedule's week boundaries.
func (s Schedule) WeekIndex(weekStart time.Time) int {
	for i, a := range s.Assignments {
		if a.WeekStart.Equal(weekStart) {
			return i
		}
	}
	return -1
}
