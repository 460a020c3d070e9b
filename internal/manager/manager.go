// Package manager implements the Fairness Manager (C8): the only
// component that owns mutable state across a generation. It holds the
// Bayesian state map, the per-run FairnessContext accumulators, and the
// RNG, and orchestrates the person registry, priority scorer, selector,
// and constraint evaluator week by week. One Manager belongs to exactly
// one generation; it is never shared across concurrent runs.
package manager

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/arvane/fairshift/internal/calendar"
	"github.com/arvane/fairshift/internal/constraint"
	"github.com/arvane/fairshift/internal/domain"
	"github.com/arvane/fairshift/internal/events"
	"github.com/arvane/fairshift/internal/fairness"
	"github.com/arvane/fairshift/internal/logging"
	"github.com/arvane/fairshift/internal/priority"
	"github.com/arvane/fairshift/internal/roster"
	"github.com/arvane/fairshift/internal/rng"
	"github.com/arvane/fairshift/internal/selector"
)

// RecentWindowDays is the lookback window for recency scoring, per
// spec.md §4.7's "window = 4 weeks".
const RecentWindowDays = 28

// LowEntropyFloor is the minimum spread (max - min) across a week's
// Gumbel-perturbed scores below which the manager emits a
// LowEntropyWarning. It is purely observational; the selector's
// temperature is never adjusted by the manager itself.
const LowEntropyFloor = 0.05

// Options bundles every tunable constant the manager's component calls
// need, so a caller configures one record instead of threading five.
type Options struct {
	Fairness    fairness.Options
	Thresholds  constraint.Thresholds
	Experience  roster.ExperienceOptions
	TeamSize    int
	SubSize     int
	Temperature float64
}

// accumulator is the per-person bookkeeping the FairnessContext defines
// in spec.md §3, extended with the longest-gap diagnostic SPEC_FULL.md
// adds.
type accumulator struct {
	accumulatedMain  int
	firstScheduled   *time.Time
	crossYearDebt    float64
	recentMainDates  []time.Time
	lastMainDate     *time.Time
	longestGapDays   int
}

// Manager orchestrates C3 through C7 across the lifetime of one
// generation.
type Manager struct {
	opts     Options
	source   *rng.Source
	log      zerolog.Logger
	states   map[string]fairness.State
	accum    map[string]*accumulator
	actions  []constraint.CorrectiveAction
	weekIdx  int
}

// New constructs a Manager for a single generation, seeded for
// reproducibility per spec.md §9's determinism requirement.
func New(seed uint64, opts Options) *Manager {
	return &Manager{
		opts:   opts,
		source: rng.New(seed),
		log:    logging.GetLogger("manager"),
		states: make(map[string]fairness.State),
		accum:  make(map[string]*accumulator),
	}
}

func (m *Manager) accumulatorFor(id string) *accumulator {
	a, ok := m.accum[id]
	if !ok {
		a = &accumulator{}
		m.accum[id] = a
	}
	return a
}

// Initialize rebuilds accumulators from every prior main assignment
// across priorSchedules and initializes Bayesian states as of
// evaluationDate, per spec.md §4.8. It is idempotent: calling it twice
// with the same inputs leaves the same accumulator values.
func (m *Manager) Initialize(people []domain.Person, priorSchedules []domain.Schedule, evaluationDate time.Time) {
	m.states = make(map[string]fairness.State)
	m.accum = make(map[string]*accumulator)

	for _, sched := range priorSchedules {
		for _, a := range sched.Assignments {
			for _, id := range a.MainIDs {
				acc := m.accumulatorFor(id)
				acc.accumulatedMain++
				weekDate := a.WeekStart
				if acc.lastMainDate == nil || weekDate.After(*acc.lastMainDate) {
					wd := weekDate
					acc.lastMainDate = &wd
				}
				if weekDate.After(evaluationDate.AddDate(0, 0, -RecentWindowDays)) && !weekDate.After(evaluationDate) {
					acc.recentMainDates = append(acc.recentMainDates, weekDate)
				}
			}
		}
	}

	for _, sched := range priorSchedules {
		m.foldCrossYearDebt(sched)
	}

	activeCount := len(roster.ActivePeople(people, evaluationDate))
	for _, p := range people {
		m.MarkAvailableForScheduling(p.ID, p.EarliestStart())
		ideal := fairness.IdealRate(m.opts.TeamSize, activeCount)
		m.states[p.ID] = fairness.Initialize(ideal, m.opts.Fairness)
	}

	m.log.Info().Time("evaluation_date", evaluationDate).Int("people", len(people)).Msg("fairness manager initialized")
}

// MarkAvailableForScheduling sets a person's first-scheduling-date if
// unset, per spec.md §4.8.
func (m *Manager) MarkAvailableForScheduling(id string, date time.Time) {
	acc := m.accumulatorFor(id)
	if acc.firstScheduled == nil {
		d := date
		acc.firstScheduled = &d
	}
}

// foldCrossYearDebt folds one prior schedule's deficit into every
// participant's accumulator, per spec.md §3's "cross-year debt:
// accumulated per-person fairness residual carried across schedule
// boundaries". A person's ideal share of that schedule's main slots (its
// total main slots divided across everyone who actually drew one) is
// compared against how many they actually drew; a shortfall adds to their
// carried debt, a surplus pays it down, never below zero.
func (m *Manager) foldCrossYearDebt(sched domain.Schedule) {
	if len(sched.Assignments) == 0 {
		return
	}

	actual := make(map[string]int)
	teamSlots := 0
	for _, a := range sched.Assignments {
		teamSlots += len(a.MainIDs)
		for _, id := range a.MainIDs {
			actual[id]++
		}
	}
	if len(actual) == 0 {
		return
	}
	idealShare := float64(teamSlots) / float64(len(actual))

	for id, count := range actual {
		acc := m.accumulatorFor(id)
		acc.crossYearDebt += idealShare - float64(count)
		if acc.crossYearDebt < 0 {
			acc.crossYearDebt = 0
		}
	}
}

func (m *Manager) recentCount(id string, weekDate time.Time) int {
	acc := m.accumulatorFor(id)
	count := 0
	cutoff := weekDate.AddDate(0, 0, -RecentWindowDays)
	for _, d := range acc.recentMainDates {
		if d.After(cutoff) {
			count++
		}
	}
	return count
}

func (m *Manager) schedulingDays(id string, weekDate time.Time) float64 {
	acc := m.accumulatorFor(id)
	if acc.firstScheduled == nil {
		return 0
	}
	return float64(calendar.DaysBetween(*acc.firstScheduled, weekDate))
}

// SelectionResult is what select_for_week returns to the engine.
type SelectionResult struct {
	MainIDs       []string
	SubstituteIDs []string
	Scores        map[string]float64
	HasMentor     bool
	IsEmergency   bool
}

// SelectForWeek implements spec.md §4.8's select_for_week: priorities
// are computed for every active candidate, the main team is drawn with
// the Gumbel-max selector (mentor and no-back-to-back constraints
// applied), and substitutes are drawn from whoever remains.
func (m *Manager) SelectForWeek(ctx context.Context, weekDate time.Time, activePeople []domain.Person, previousMainIDs []string) SelectionResult {
	anyNew := false
	experienced := make(map[string]bool, len(activePeople))
	for _, p := range activePeople {
		exp := roster.Experience(p, weekDate, m.accumulatorFor(p.ID).accumulatedMain, m.opts.Experience)
		experienced[p.ID] = exp == domain.Experienced
		if exp == domain.New {
			anyNew = true
		}
	}

	candidates := make([]selector.Candidate, 0, len(activePeople))
	for _, p := range activePeople {
		state := m.states[p.ID]
		acc := m.accumulatorFor(p.ID)
		in := priority.Input{
			PosteriorMean:         state.PosteriorMean,
			IsActiveMentor:        priority.IsActiveMentor(experienced[p.ID], anyNew),
			SchedulingDays:        m.schedulingDays(p.ID, weekDate),
			TotalMainAssignments:  acc.accumulatedMain,
			RecentCount:           m.recentCount(p.ID, weekDate),
			CrossYearDebt:         acc.crossYearDebt,
			CorrectiveMultiplier:  constraint.ActiveMultiplier(m.actions, p.ID),
		}
		candidates = append(candidates, selector.Candidate{
			PersonID:        p.ID,
			Priority:        priority.Score(in),
			AccumulatedMain: acc.accumulatedMain,
			IsExperienced:   experienced[p.ID],
		})
	}

	mainOpts := selector.Options{
		TeamSize:         m.opts.TeamSize,
		RequireMentor:    true,
		AvoidConsecutive: true,
		PreviousMainIDs:  previousMainIDs,
		Temperature:      m.opts.Temperature,
	}
	mainResult := selector.Select(candidates, mainOpts, m.source)

	m.checkEntropy(weekDate, mainResult.Scores)

	selectedSet := make(map[string]bool, len(mainResult.SelectedIDs))
	for _, id := range mainResult.SelectedIDs {
		selectedSet[id] = true
	}
	remaining := make([]selector.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !selectedSet[c.PersonID] {
			remaining = append(remaining, c)
		}
	}

	subOpts := selector.Options{
		TeamSize:    minInt(m.opts.SubSize, len(remaining)),
		Temperature: m.opts.Temperature,
	}
	var subResult selector.Result
	if subOpts.TeamSize > 0 {
		subResult = selector.Select(remaining, subOpts, m.source)
	}

	hasMentor := false
	for _, id := range mainResult.SelectedIDs {
		if experienced[id] {
			hasMentor = true
			break
		}
	}

	result := SelectionResult{
		MainIDs:       mainResult.SelectedIDs,
		SubstituteIDs: subResult.SelectedIDs,
		Scores:        mainResult.Scores,
		HasMentor:     hasMentor,
		IsEmergency:   mainResult.IsEmergency,
	}

	events.EmitWeekScheduled(ctx, events.WeekScheduledData{
		WeekDate: weekDate, MainIDs: result.MainIDs, SubstituteIDs: result.SubstituteIDs,
		HasMentor: result.HasMentor, IsEmergency: result.IsEmergency,
	})

	return result
}

func (m *Manager) checkEntropy(weekDate time.Time, scores map[string]float64) {
	if len(scores) < 2 {
		return
	}
	var min, max float64
	first := true
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	if max-min < LowEntropyFloor {
		events.EmitLowEntropyWarning(context.Background(), events.LowEntropyWarningData{
			WeekDate: weekDate, Detail: "recent selection scores are tightly clustered",
		})
		m.log.Warn().Time("week", weekDate).Msg("low entropy in weekly selection scores")
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// currentRates builds the constraint.PersonRate slice the metrics and
// corrective-action pipeline need, from this manager's own accumulators.
func (m *Manager) currentRates(people []domain.Person, reference time.Time) []constraint.PersonRate {
	rates := make([]constraint.PersonRate, 0, len(people))
	for _, p := range people {
		acc := m.accumulatorFor(p.ID)
		days := roster.TotalDaysPresent(p, reference)
		rates = append(rates, constraint.PersonRate{PersonID: p.ID, Rate: constraint.Rate(acc.accumulatedMain, days)})
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].PersonID < rates[j].PersonID })
	return rates
}

// UpdateAfterAssignment implements spec.md §4.8's update_after_assignment:
// every present person gets a Bayesian update, accumulators advance,
// recent-window and longest-gap bookkeeping refresh, and expired
// corrective actions are dropped.
func (m *Manager) UpdateAfterAssignment(assignedIDs, allPresentIDs []string, weekDate time.Time, activePeople []domain.Person) {
	assigned := make(map[string]bool, len(assignedIDs))
	for _, id := range assignedIDs {
		assigned[id] = true
	}

	activeCount := len(roster.ActivePeople(activePeople, weekDate))
	ideal := fairness.IdealRate(m.opts.TeamSize, activeCount)

	expectedShare := 0.0
	if activeCount > 0 {
		expectedShare = float64(m.opts.TeamSize) / float64(activeCount)
	}

	for _, id := range allPresentIDs {
		state, ok := m.states[id]
		if !ok {
			state = fairness.Initialize(ideal, m.opts.Fairness)
		}
		daysElapsed := 7.0
		if !state.LastUpdate.IsZero() {
			daysElapsed = float64(calendar.DaysBetween(state.LastUpdate, weekDate))
		}
		updated, diag := fairness.Update(state, assigned[id], daysElapsed, ideal, weekDate, m.opts.Fairness)
		m.states[id] = updated
		if diag != nil {
			m.log.Warn().Str("person", id).Str("diagnostic", diag.Kind).
				Float64("raw", diag.RawValue).Float64("clamped", diag.ClampedValue).
				Msg("bayesian tracker clamped posterior variance")
		}

		acc := m.accumulatorFor(id)
		if assigned[id] {
			acc.accumulatedMain++
			acc.recentMainDates = append(acc.recentMainDates, weekDate)
			if acc.lastMainDate != nil {
				gap := calendar.DaysBetween(*acc.lastMainDate, weekDate)
				if gap > acc.longestGapDays {
					acc.longestGapDays = gap
				}
			}
			wd := weekDate
			acc.lastMainDate = &wd
		}
		acc.recentMainDates = pruneOldDates(acc.recentMainDates, weekDate)

		if assigned[id] {
			acc.crossYearDebt -= 1 - expectedShare
		} else {
			acc.crossYearDebt += expectedShare
		}
		if acc.crossYearDebt < 0 {
			acc.crossYearDebt = 0
		}
	}

	rates := m.currentRates(activePeople, weekDate)
	m.actions = constraint.ExpireActions(m.actions, m.weekIdx, rates)
	m.weekIdx++
}

func pruneOldDates(dates []time.Time, weekDate time.Time) []time.Time {
	cutoff := weekDate.AddDate(0, 0, -RecentWindowDays)
	kept := dates[:0]
	for _, d := range dates {
		if d.After(cutoff) {
			kept = append(kept, d)
		}
	}
	return kept
}

// RegisterCorrectiveActions runs the quartile feedback loop over the
// current active population and records the resulting actions for
// future SelectForWeek calls to apply.
func (m *Manager) RegisterCorrectiveActions(activePeople []domain.Person, weekDate time.Time) {
	rates := m.currentRates(activePeople, weekDate)
	m.actions = append(m.actions, constraint.RegisterCorrectiveActions(rates, m.weekIdx)...)
}

// PersonMetric is one person's entry in a MetricsSnapshot.
type PersonMetric struct {
	PersonID         string
	Rate             float64
	PosteriorMean    float64
	PosteriorVariance float64
	LongestGapDays   int
}

// MetricsSnapshot is what spec.md §4.8's metrics operation returns.
type MetricsSnapshot struct {
	PerPerson  []PersonMetric
	Gini       float64
	CV         float64
	Ratio      float64
	Violations []constraint.ConstraintViolation
}

// Metrics computes a MetricsSnapshot as of date from this manager's own
// accumulators, which already reflect every prior schedule folded in by
// Initialize plus whatever weeks this manager's own generation has run
// through UpdateAfterAssignment so far. Use ComputeMetrics instead when
// there is no live Manager to ask — e.g. an external report that only
// has the person roster and the schedule history on hand.
func (m *Manager) Metrics(ctx context.Context, people []domain.Person, date time.Time) MetricsSnapshot {
	rates := m.currentRates(people, date)

	perPerson := make([]PersonMetric, 0, len(people))
	for _, r := range rates {
		state := m.states[r.PersonID]
		acc := m.accumulatorFor(r.PersonID)
		perPerson = append(perPerson, PersonMetric{
			PersonID: r.PersonID, Rate: r.Rate,
			PosteriorMean: state.PosteriorMean, PosteriorVariance: state.PosteriorVariance,
			LongestGapDays: acc.longestGapDays,
		})
	}

	violations := constraint.Evaluate(rates, m.opts.Thresholds)
	for _, v := range violations {
		if v.Severity == constraint.SeverityError {
			events.EmitConstraintBreached(ctx, events.ConstraintBreachedData{
				Kind: string(v.Kind), Value: v.Value, Threshold: v.Threshold,
			})
		}
	}

	return MetricsSnapshot{
		PerPerson:  perPerson,
		Gini:       constraint.Gini(rates),
		CV:         constraint.CoefficientOfVariation(rates),
		Ratio:      constraint.RateRatio(rates),
		Violations: violations,
	}
}

// ComputeMetrics implements spec.md §6's standalone
// compute_metrics(people, schedules, date) egress: it builds a throwaway
// Manager seeded from schedules and people, without running any
// selection, and returns the resulting MetricsSnapshot as of date. Unlike
// Metrics, it needs no live Manager from an in-progress generation — a
// caller producing an ad hoc fairness report from stored history can call
// this directly.
func ComputeMetrics(ctx context.Context, people []domain.Person, schedules []domain.Schedule, date time.Time, opts Options) MetricsSnapshot {
	mgr := New(0, opts)
	mgr.Initialize(people, schedules, date)
	return mgr.Metrics(ctx, people, date)
}

// ConfidenceInterval exposes spec.md §6's confidence_interval egress for
// a single person.
func (m *Manager) ConfidenceInterval(personID string, level float64) (low, high float64) {
	return fairness.ConfidenceInterval(m.states[personID], level)
}
