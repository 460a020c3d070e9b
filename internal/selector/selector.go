// Package selector implements the Gumbel-max team selector from
// spec.md §4.6: it turns a priority map into a reproducible, weighted
// top-k sample, subject to mentor-coverage and no-back-to-back
// constraints. It is a stateless pure function of its inputs plus the
// RNG draws it consumes — determinism follows entirely from replaying
// the same rng.Source in the same call sequence.
package selector

import (
	"math"
	"sort"

	"github.com/arvane/fairshift/internal/priority"
	"github.com/arvane/fairshift/internal/rng"
)

// Candidate is one person eligible for this week's selection.
type Candidate struct {
	PersonID        string
	Priority        float64
	AccumulatedMain int
	IsExperienced   bool
}

// Options configures a single Select call.
type Options struct {
	TeamSize         int
	RequireMentor    bool
	AvoidConsecutive bool
	PreviousMainIDs  []string
	// Temperature scales the Gumbel noise: towards 0 recovers deterministic
	// argmax-by-priority, 1.0 is balanced, large values approach uniform
	// sampling. Zero is treated as the spec default of 1.0.
	Temperature float64
}

func (o Options) resolvedTemperature() float64 {
	if o.Temperature <= 0 {
		return 1.0
	}
	return o.Temperature
}

// Result is the outcome of one Select call.
type Result struct {
	SelectedIDs []string
	Scores      map[string]float64
	IsEmergency bool
}

// scored pairs a candidate with its Gumbel-perturbed log-priority, so the
// sort and the greedy pick below never need to recompute it.
type scored struct {
	Candidate
	score float64
}

// Select runs the filter → perturb → sort → greedy-pick pipeline. source
// is drawn from once per surviving candidate, in candidate order, so two
// calls with an equivalently-seeded source and the same candidate slice
// order produce byte-identical results.
func Select(candidates []Candidate, opts Options, source *rng.Source) Result {
	pool := applyAvoidConsecutive(candidates, opts)

	tau := opts.resolvedTemperature()
	scoredPool := make([]scored, len(pool))
	for i, c := range pool {
		g := source.Gumbel()
		scoredPool[i] = scored{Candidate: c, score: math.Log(c.Priority) + g/tau}
	}

	sort.SliceStable(scoredPool, func(i, j int) bool {
		if scoredPool[i].score != scoredPool[j].score {
			return scoredPool[i].score > scoredPool[j].score
		}
		return priority.Less(
			priority.Candidate{PersonID: scoredPool[i].PersonID, AccumulatedMain: scoredPool[i].AccumulatedMain},
			priority.Candidate{PersonID: scoredPool[j].PersonID, AccumulatedMain: scoredPool[j].AccumulatedMain},
		)
	})

	if len(scoredPool) < opts.TeamSize {
		return resultOf(scoredPool, true)
	}
	if len(scoredPool) == opts.TeamSize {
		return resultOf(scoredPool, false)
	}

	picked := greedyPick(scoredPool, opts)
	return resultOf(picked, false)
}

// applyAvoidConsecutive removes the previous week's main ids, degrading
// (returning the original candidates unfiltered) if doing so would leave
// fewer than TeamSize candidates — spec.md §4.6 step 1.
func applyAvoidConsecutive(candidates []Candidate, opts Options) []Candidate {
	if !opts.AvoidConsecutive || len(opts.PreviousMainIDs) == 0 {
		return candidates
	}
	excluded := make(map[string]bool, len(opts.PreviousMainIDs))
	for _, id := range opts.PreviousMainIDs {
		excluded[id] = true
	}
	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !excluded[c.PersonID] {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) < opts.TeamSize {
		return candidates
	}
	return filtered
}

// greedyPick implements spec.md §4.6 step 4: if RequireMentor, the first
// pick is the highest-score Experienced candidate (scanned in the
// already-sorted order); every subsequent pick is simply the next
// highest-score remaining candidate. If no Experienced candidate exists
// at all, the mentor requirement cannot be satisfied and greedyPick
// falls back to a plain top-k pick.
func greedyPick(sortedPool []scored, opts Options) []scored {
	picked := make([]scored, 0, opts.TeamSize)
	used := make([]bool, len(sortedPool))

	if opts.RequireMentor {
		for i, s := range sortedPool {
			if s.IsExperienced {
				picked = append(picked, s)
				used[i] = true
				break
			}
		}
	}

	for i := range sortedPool {
		if len(picked) >= opts.TeamSize {
			break
		}
		if used[i] {
			continue
		}
		picked = append(picked, sortedPool[i])
		used[i] = true
	}
	return picked
}

func resultOf(picked []scored, emergency bool) Result {
	ids := make([]string, len(picked))
	scores := make(map[string]float64, len(picked))
	for i, s := range picked {
		ids[i] = s.PersonID
		scores[s.PersonID] = s.score
	}
	return Result{SelectedIDs: ids, Scores: scores, IsEmergency: emergency}
}
