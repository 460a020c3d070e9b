// Package engine implements the Schedule Engine (C9): the week loop
// that drives a generation from start to finish, plus the three
// mutation operations that edit an already-generated schedule without
// rewriting Bayesian history. It is the outermost layer of the core —
// everything else in this module is a building block it orchestrates.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/arvane/fairshift/internal/calendar"
	"github.com/arvane/fairshift/internal/constraint"
	"github.com/arvane/fairshift/internal/domain"
	"github.com/arvane/fairshift/internal/logging"
	"github.com/arvane/fairshift/internal/manager"
	"github.com/arvane/fairshift/internal/priority"
	"github.com/arvane/fairshift/internal/rng"
	"github.com/arvane/fairshift/internal/roster"
	"github.com/arvane/fairshift/internal/selector"
)

var log zerolog.Logger = logging.GetLogger("engine")

// GenerateOptions configures one call to Generate.
type GenerateOptions struct {
	Start          time.Time
	Weeks          int
	Seed           uint64
	PriorSchedules []domain.Schedule
	ManagerOptions manager.Options
}

// Result is what Generate returns: the produced schedule plus any
// non-fatal constraint warnings from the final metrics pass.
type Result struct {
	Schedule domain.Schedule
	Warnings []constraint.ConstraintViolation
}

// Generate implements spec.md §4.9's generate(options) → Result.
func Generate(ctx context.Context, people []domain.Person, opts GenerateOptions) (Result, error) {
	if opts.Weeks < 1 || opts.Weeks > 52 {
		return Result{}, fmt.Errorf("%w: weeks must be in [1,52], got %d", domain.ErrInvalidRange, opts.Weeks)
	}
	if opts.ManagerOptions.TeamSize < 1 {
		return Result{}, fmt.Errorf("%w: team_size must be >= 1, got %d", domain.ErrInvalidRange, opts.ManagerOptions.TeamSize)
	}
	if len(people) == 0 {
		return Result{}, fmt.Errorf("%w: no people supplied", domain.ErrEmptyPool)
	}

	start := calendar.MondayOf(opts.Start)
	rangeEnd := start.AddDate(0, 0, 7*opts.Weeks)

	filtered := make([]domain.Person, 0, len(people))
	for _, p := range people {
		if personIntersects(p, start, rangeEnd) {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return Result{}, fmt.Errorf("%w: no person active in [%s, %s)", domain.ErrEmptyPool, start, rangeEnd)
	}

	mgr := manager.New(opts.Seed, opts.ManagerOptions)
	mgr.Initialize(filtered, opts.PriorSchedules, start)

	assignments := make([]domain.Assignment, opts.Weeks)
	var previousMainIDs []string

	for i := 0; i < opts.Weeks; i++ {
		weekDate := start.AddDate(0, 0, 7*i)
		active := roster.ActivePeople(filtered, weekDate)

		var assignment domain.Assignment
		if len(active) < opts.ManagerOptions.TeamSize {
			assignment = emergencyAssignment(active, weekDate, opts.ManagerOptions.Experience)
			presentIDs := idsOf(active)
			mgr.UpdateAfterAssignment(assignment.MainIDs, presentIDs, weekDate, active)
			log.Warn().Time("week", weekDate).Int("active", len(active)).
				Int("team_size", opts.ManagerOptions.TeamSize).Msg("emergency week: insufficient active pool")
		} else {
			selection := mgr.SelectForWeek(ctx, weekDate, active, previousMainIDs)
			presentIDs := idsOf(active)
			mgr.UpdateAfterAssignment(selection.MainIDs, presentIDs, weekDate, active)
			assignment = domain.Assignment{
				WeekStart:     weekDate,
				MainIDs:       selection.MainIDs,
				SubstituteIDs: selection.SubstituteIDs,
				Scores:        selection.Scores,
				HasMentor:     selection.HasMentor,
				IsEmergency:   selection.IsEmergency,
			}
		}

		mgr.RegisterCorrectiveActions(active, weekDate)
		assignments[i] = assignment
		previousMainIDs = assignment.MainIDs
	}

	finalDate := start.AddDate(0, 0, 7*(opts.Weeks-1))
	snapshot := mgr.Metrics(ctx, filtered, finalDate)

	schedule := domain.Schedule{
		ID:          uuid.NewString(),
		Start:       start,
		Weeks:       opts.Weeks,
		Assignments: assignments,
	}

	log.Info().Str("schedule_id", schedule.ID).Int("weeks", opts.Weeks).
		Float64("gini", snapshot.Gini).Int("violations", len(snapshot.Violations)).
		Msg("generation complete")

	return Result{Schedule: schedule, Warnings: snapshot.Violations}, nil
}

func personIntersects(p domain.Person, start, end time.Time) bool {
	for _, period := range p.Periods {
		periodEnd := end
		if period.End != nil && period.End.Before(end) {
			periodEnd = *period.End
		}
		if period.Start.Before(periodEnd) && periodEnd.After(start) {
			return true
		}
	}
	return false
}

func idsOf(people []domain.Person) []string {
	ids := make([]string, len(people))
	for i, p := range people {
		ids[i] = p.ID
	}
	return ids
}

func emergencyAssignment(active []domain.Person, weekDate time.Time, expOpts roster.ExperienceOptions) domain.Assignment {
	mainIDs := idsOf(active)
	hasMentor := false
	for _, p := range active {
		if roster.IsExperienced(p, weekDate, 0, expOpts) {
			hasMentor = true
			break
		}
	}
	return domain.Assignment{
		WeekStart:   weekDate,
		MainIDs:     mainIDs,
		HasMentor:   hasMentor,
		IsEmergency: true,
	}
}

// ReplaceInWeek implements spec.md §4.9's replace_in_week mutation:
// validates newID is active that week and not already present, swaps
// oldID for newID in the main list, recomputes has_mentor, and marks
// the week manually edited. Historical scores are left untouched.
func ReplaceInWeek(schedule domain.Schedule, weekIndex int, oldID, newID string, peopleByID map[string]domain.Person, expOpts roster.ExperienceOptions) (domain.Schedule, error) {
	if weekIndex < 0 || weekIndex >= len(schedule.Assignments) {
		return schedule, fmt.Errorf("%w: week index %d out of range", domain.ErrInvalidMutation, weekIndex)
	}
	newPerson, ok := peopleByID[newID]
	if !ok {
		return schedule, fmt.Errorf("%w: unknown replacement id %s", domain.ErrInvalidMutation, newID)
	}

	updated := schedule
	updated.Assignments = append([]domain.Assignment(nil), schedule.Assignments...)
	a := updated.Assignments[weekIndex]

	if !roster.IsActiveOn(newPerson, a.WeekStart) {
		return schedule, fmt.Errorf("%w: %s is not active in week of %s", domain.ErrInvalidMutation, newID, a.WeekStart)
	}
	if containsID(a.MainIDs, newID) || containsID(a.SubstituteIDs, newID) {
		return schedule, fmt.Errorf("%w: %s is already present in week of %s", domain.ErrInvalidMutation, newID, a.WeekStart)
	}

	mainIDs := append([]string(nil), a.MainIDs...)
	replaced := false
	for i, id := range mainIDs {
		if id == oldID {
			mainIDs[i] = newID
			replaced = true
			break
		}
	}
	if !replaced {
		return schedule, fmt.Errorf("%w: %s is not a main assignee in week of %s", domain.ErrInvalidMutation, oldID, a.WeekStart)
	}
	a.MainIDs = mainIDs
	a.HasMentor = false
	for _, id := range mainIDs {
		if p, ok := peopleByID[id]; ok && roster.IsExperienced(p, a.WeekStart, 0, expOpts) {
			a.HasMentor = true
			break
		}
	}
	a.ManuallyEdited = true
	updated.Assignments[weekIndex] = a
	return updated, nil
}

func containsID(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func swapInPlace(ids []string, a, b string) {
	for i, id := range ids {
		switch id {
		case a:
			ids[i] = b
		case b:
			ids[i] = a
		}
	}
}

// SwapPeopleGlobally implements spec.md §4.9's swap_people_globally:
// exchanges every occurrence of idA and idB across all weeks where both
// are active, skipping (and reporting) weeks where either is inactive.
// Because swap is its own inverse on every non-skipped week, applying
// it twice with the same arguments restores the original schedule.
func SwapPeopleGlobally(schedule domain.Schedule, idA, idB string, peopleByID map[string]domain.Person) (domain.Schedule, error) {
	personA, ok := peopleByID[idA]
	if !ok {
		return schedule, fmt.Errorf("%w: unknown id %s", domain.ErrInvalidMutation, idA)
	}
	personB, ok := peopleByID[idB]
	if !ok {
		return schedule, fmt.Errorf("%w: unknown id %s", domain.ErrInvalidMutation, idB)
	}

	updated := schedule
	updated.Assignments = append([]domain.Assignment(nil), schedule.Assignments...)

	var skipped *multierror.Error
	for i := range updated.Assignments {
		weekDate := updated.Assignments[i].WeekStart
		aActive := roster.IsActiveOn(personA, weekDate)
		bActive := roster.IsActiveOn(personB, weekDate)
		if !aActive || !bActive {
			skipped = multierror.Append(skipped, fmt.Errorf("week %d (%s): skipped, a_active=%v b_active=%v", i, weekDate, aActive, bActive))
			continue
		}
		a := updated.Assignments[i]
		mainIDs := append([]string(nil), a.MainIDs...)
		subIDs := append([]string(nil), a.SubstituteIDs...)
		swapInPlace(mainIDs, idA, idB)
		swapInPlace(subIDs, idA, idB)
		a.MainIDs = mainIDs
		a.SubstituteIDs = subIDs
		updated.Assignments[i] = a
	}

	return updated, skipped.ErrorOrNil()
}

// HandlePersonDeletion implements spec.md §4.9's handle_person_deletion:
// removes personID from every week; weeks that fall below team_size are
// either left as a marked-emergency hole, or refilled with a single-week
// selection from replacementPool if one is provided. No Bayesian history
// is rewritten — future generations simply see this person's lower
// assignment count.
func HandlePersonDeletion(schedule domain.Schedule, personID string, replacementPool []domain.Person, teamSize int, seed uint64) domain.Schedule {
	updated := schedule
	updated.Assignments = append([]domain.Assignment(nil), schedule.Assignments...)

	source := rng.New(seed)
	for i := range updated.Assignments {
		a := updated.Assignments[i]
		mainIDs := removeID(a.MainIDs, personID)
		subIDs := removeID(a.SubstituteIDs, personID)
		changed := len(mainIDs) != len(a.MainIDs) || len(subIDs) != len(a.SubstituteIDs)
		a.MainIDs = mainIDs
		a.SubstituteIDs = subIDs

		if len(a.MainIDs) < teamSize && len(replacementPool) > 0 {
			need := teamSize - len(a.MainIDs)
			refill := refillWeek(a, replacementPool, need, source)
			a.MainIDs = append(a.MainIDs, refill...)
		}
		a.IsEmergency = a.IsEmergency || len(a.MainIDs) < teamSize
		if changed {
			a.ManuallyEdited = true
		}
		updated.Assignments[i] = a
	}
	return updated
}

func removeID(ids []string, target string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// refillWeek draws `need` replacements from the active, not-yet-present
// candidates using the selector with uniform priority: a point mutation
// has no run-scoped Bayesian history to weight candidates by, so it
// degrades to an unweighted Gumbel-max draw rather than fabricating one.
func refillWeek(a domain.Assignment, pool []domain.Person, need int, source *rng.Source) []string {
	present := make(map[string]bool, len(a.MainIDs)+len(a.SubstituteIDs))
	for _, id := range a.MainIDs {
		present[id] = true
	}
	for _, id := range a.SubstituteIDs {
		present[id] = true
	}

	candidates := make([]selector.Candidate, 0, len(pool))
	for _, p := range pool {
		if present[p.ID] {
			continue
		}
		if !roster.IsActiveOn(p, a.WeekStart) {
			continue
		}
		candidates = append(candidates, selector.Candidate{PersonID: p.ID, Priority: 1.0})
	}
	if len(candidates) == 0 {
		return nil
	}
	result := selector.Select(candidates, selector.Options{TeamSize: need}, source)
	return result.SelectedIDs
}

// IsActiveMentor re-exposes priority.IsActiveMentor for callers wiring
// their own mentor checks outside a full SelectForWeek call.
var IsActiveMentor = priority.IsActiveMentor
