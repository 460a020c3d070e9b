// Package constraint implements the fairness metrics and violation
// tagging from spec.md §4.7: Gini coefficient, coefficient of
// variation, and rate ratio over per-person assignment rates, plus the
// temporary corrective-action feedback loop that nudges the priority
// scorer away from a detected imbalance.
package constraint

import (
	"math"
	"sort"
)

// Kind tags the family of a ConstraintViolation.
type Kind string

const (
	KindGini  Kind = "gini"
	KindCV    Kind = "coefficient_of_variation"
	KindRatio Kind = "rate_ratio"
)

// Severity distinguishes a soft breach from a severe one.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Thresholds collects the default breach points spec.md §4.7 names.
type Thresholds struct {
	Gini  float64
	CV    float64
	Ratio float64
}

// DefaultThresholds returns the spec's named defaults. Gini and CV are
// breached when the observed value exceeds the threshold; ratio is
// breached when the observed value falls below it (a low ratio means
// unfair), so its severity escalation divides rather than multiplies.
func DefaultThresholds() Thresholds {
	return Thresholds{Gini: 0.25, CV: 0.30, Ratio: 0.80}
}

// ErrorMultiplier is how far past a threshold a breach must go before
// its severity escalates from Warning to Error.
const ErrorMultiplier = 1.5

// ExpiryWeeks is the default lifetime of a corrective action.
const ExpiryWeeks = 4

// ConstraintViolation records one breached fairness threshold.
type ConstraintViolation struct {
	Kind      Kind
	Value     float64
	Threshold float64
	Severity  Severity
}

// PersonRate is one person's accumulated-main-count-over-days-present
// rate, the unit all three metrics in this package operate on.
type PersonRate struct {
	PersonID string
	Rate     float64
}

// Rate computes c / max(d, 1), spec.md §4.7's rate definition.
func Rate(accumulatedMain int, daysPresent int) float64 {
	d := daysPresent
	if d < 1 {
		d = 1
	}
	return float64(accumulatedMain) / float64(d)
}

func mean(rates []PersonRate) float64 {
	if len(rates) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rates {
		sum += r.Rate
	}
	return sum / float64(len(rates))
}

// Gini computes spec.md §4.7's coefficient using a sorted order and
// pairwise absolute differences, per the floating-point determinism
// note: no unordered accumulation that could reassociate rounding.
func Gini(rates []PersonRate) float64 {
	n := len(rates)
	if n == 0 {
		return 0
	}
	mu := mean(rates)
	if mu == 0 {
		return 0
	}

	sorted := make([]float64, n)
	for i, r := range rates {
		sorted[i] = r.Rate
	}
	sort.Float64s(sorted)

	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := sorted[i] - sorted[j]
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return sum / (2 * float64(n*n) * mu)
}

// CoefficientOfVariation is σ/μ over the rates, 0 when μ = 0.
func CoefficientOfVariation(rates []PersonRate) float64 {
	mu := mean(rates)
	if mu == 0 {
		return 0
	}
	var variance float64
	for _, r := range rates {
		d := r.Rate - mu
		variance += d * d
	}
	variance /= float64(len(rates))
	return math.Sqrt(variance) / mu
}

// RateRatio is min/max over the non-zero rates. Returns 1 (perfectly
// fair) when there are fewer than two non-zero rates to compare.
func RateRatio(rates []PersonRate) float64 {
	var min, max float64
	found := false
	for _, r := range rates {
		if r.Rate == 0 {
			continue
		}
		if !found {
			min, max = r.Rate, r.Rate
			found = true
			continue
		}
		if r.Rate < min {
			min = r.Rate
		}
		if r.Rate > max {
			max = r.Rate
		}
	}
	if !found || max == 0 {
		return 1
	}
	return min / max
}

// EvaluateGini checks the Gini coefficient against t.Gini, returning a
// violation only on breach (nil otherwise).
func EvaluateGini(value float64, t Thresholds) *ConstraintViolation {
	return evaluateUpperBound(KindGini, value, t.Gini)
}

// EvaluateCV checks the coefficient of variation against t.CV.
func EvaluateCV(value float64, t Thresholds) *ConstraintViolation {
	return evaluateUpperBound(KindCV, value, t.CV)
}

// EvaluateRatio checks the rate ratio against t.Ratio. Because a low
// ratio is the unfair direction, severity escalates as the value falls
// further *below* the threshold, not above it.
func EvaluateRatio(value float64, t Thresholds) *ConstraintViolation {
	if value >= t.Ratio {
		return nil
	}
	severity := SeverityWarning
	if value <= t.Ratio/ErrorMultiplier {
		severity = SeverityError
	}
	return &ConstraintViolation{Kind: KindRatio, Value: value, Threshold: t.Ratio, Severity: severity}
}

func evaluateUpperBound(kind Kind, value, threshold float64) *ConstraintViolation {
	if value <= threshold {
		return nil
	}
	severity := SeverityWarning
	if value >= threshold*ErrorMultiplier {
		severity = SeverityError
	}
	return &ConstraintViolation{Kind: kind, Value: value, Threshold: threshold, Severity: severity}
}

// Evaluate runs all three metrics and returns every breach found, in
// Gini, CV, ratio order.
func Evaluate(rates []PersonRate, t Thresholds) []ConstraintViolation {
	var violations []ConstraintViolation
	if v := EvaluateGini(Gini(rates), t); v != nil {
		violations = append(violations, *v)
	}
	if v := EvaluateCV(CoefficientOfVariation(rates), t); v != nil {
		violations = append(violations, *v)
	}
	if v := EvaluateRatio(RateRatio(rates), t); v != nil {
		violations = append(violations, *v)
	}
	return violations
}

// CorrectiveAction is a temporary multiplicative nudge on a person's
// next priority score, registered after a quartile breach and expiring
// per spec.md §4.7.
type CorrectiveAction struct {
	PersonID     string
	Multiplier   float64
	RegisteredAt int // week index the action was registered
	ExpiresAfter int // weeks; default ExpiryWeeks
}

const (
	TopQuartilePenalty  = 0.7
	BottomQuartileBoost = 1.3
)

// RegisterCorrectiveActions implements spec.md §4.7's quartile feedback:
// people in the top quartile of rate get a temporary penalty, people in
// the bottom quartile get a temporary boost. Quartile membership is
// computed over the sorted rate order; ties at a quartile boundary are
// included on the side the sort places them, which keeps input order
// because a copy of rates is sorted with sort.SliceStable.
func RegisterCorrectiveActions(rates []PersonRate, weekIndex int) []CorrectiveAction {
	n := len(rates)
	if n < 4 {
		return nil
	}

	ordered := make([]PersonRate, n)
	copy(ordered, rates)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rate < ordered[j].Rate })

	quartile := n / 4
	if quartile == 0 {
		return nil
	}

	actions := make([]CorrectiveAction, 0, quartile*2)
	for i := 0; i < quartile; i++ {
		actions = append(actions, CorrectiveAction{
			PersonID: ordered[i].PersonID, Multiplier: BottomQuartileBoost,
			RegisteredAt: weekIndex, ExpiresAfter: ExpiryWeeks,
		})
	}
	for i := n - quartile; i < n; i++ {
		actions = append(actions, CorrectiveAction{
			PersonID: ordered[i].PersonID, Multiplier: TopQuartilePenalty,
			RegisteredAt: weekIndex, ExpiresAfter: ExpiryWeeks,
		})
	}
	return actions
}

// ExpireActions drops actions whose lifetime has elapsed by
// currentWeek, or whose subject's rate has crossed the mean (the
// condition the scorer no longer needs correcting for).
func ExpireActions(actions []CorrectiveAction, currentWeek int, rates []PersonRate) []CorrectiveAction {
	mu := mean(rates)
	rateByID := make(map[string]float64, len(rates))
	for _, r := range rates {
		rateByID[r.PersonID] = r.Rate
	}

	kept := make([]CorrectiveAction, 0, len(actions))
	for _, a := range actions {
		if currentWeek-a.RegisteredAt >= a.ExpiresAfter {
			continue
		}
		rate, ok := rateByID[a.PersonID]
		if ok {
			crossedDown := a.Multiplier == TopQuartilePenalty && rate <= mu
			crossedUp := a.Multiplier == BottomQuartileBoost && rate >= mu
			if crossedDown || crossedUp {
				continue
			}
		}
		kept = append(kept, a)
	}
	return kept
}

// ActiveMultiplier returns the net corrective multiplier for a person,
// or 1.0 (no adjustment) if none is active. Multiple simultaneous
// actions for the same person multiply together, though in practice
// RegisterCorrectiveActions never assigns more than one per person per
// call.
func ActiveMultiplier(actions []CorrectiveAction, personID string) float64 {
	multiplier := 1.0
	for _, a := range actions {
		if a.PersonID == personID {
			multiplier *= a.Multiplier
		}
	}
	return multiplier
}
