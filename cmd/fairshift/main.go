package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"go.uber.org/atomic"

	"github.com/arvane/fairshift/internal/config"
	"github.com/arvane/fairshift/internal/constraint"
	"github.com/arvane/fairshift/internal/domain"
	"github.com/arvane/fairshift/internal/engine"
	"github.com/arvane/fairshift/internal/fairness"
	"github.com/arvane/fairshift/internal/logging"
	"github.com/arvane/fairshift/internal/manager"
	"github.com/arvane/fairshift/internal/roster"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.Printf("Starting fairshift v%s (%s) built at %s", version, commit, date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating shutdown", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func run(ctx context.Context) error {
	isDevelopment := os.Getenv("FAIRSHIFT_ENV") != "production"
	logging.Initialize(logging.WithDevelopment(isDevelopment))

	configPath := os.Getenv("CONFIG_FILE")
	opts, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	people := demoPeople()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed, result, err := bestOfSeeds(ctx, people, start, opts, 16)
	if err != nil {
		return fmt.Errorf("generating schedule: %w", err)
	}

	log.Printf("selected seed %d: schedule %s with %d weeks, %d warnings",
		seed, result.Schedule.ID, result.Schedule.Weeks, len(result.Warnings))
	for _, a := range result.Schedule.Assignments {
		log.Printf("week %s: main=%v substitutes=%v has_mentor=%v emergency=%v",
			a.WeekStart.Format("2006-01-02"), a.MainIDs, a.SubstituteIDs, a.HasMentor, a.IsEmergency)
	}
	return nil
}

func demoPeople() []domain.Person {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	people := make([]domain.Person, len(names))
	for i, name := range names {
		people[i] = domain.Person{
			ID:      name,
			Name:    name,
			Periods: []domain.ParticipationPeriod{{Start: start}},
		}
	}
	return people
}

// bestOfSeeds runs several candidate seeds concurrently and keeps the one
// with the lowest Gini coefficient, demonstrating the "regenerate with a
// different seed" path spec.md §7's propagation policy documents. This
// lives outside the single-threaded core: each goroutine owns its own
// Fairness Manager and RNG, never sharing one across concurrent
// generations.
func bestOfSeeds(ctx context.Context, people []domain.Person, start time.Time, opts config.Options, candidateCount int) (uint64, engine.Result, error) {
	managerOpts := manager.Options{
		Fairness: fairness.Options{
			ProcessVariance:     opts.Fairness.ProcessVariance,
			ObservationVariance: opts.Fairness.ObservationVariance,
			DriftThreshold:      opts.Fairness.DriftThreshold,
			DriftAlpha:          opts.Fairness.DriftAlpha,
			InitialVariance:     opts.Fairness.InitialVariance,
			VarianceFloor:       opts.Fairness.VarianceFloor,
			VarianceCeiling:     opts.Fairness.VarianceCeiling,
		},
		Thresholds: constraint.Thresholds{
			Gini:  opts.Constraint.GiniThreshold,
			CV:    opts.Constraint.CVThreshold,
			Ratio: opts.Constraint.RatioThreshold,
		},
		Experience: roster.ExperienceOptions{
			TenureThresholdDays: opts.Roster.TenureThresholdDays,
			AssignmentThreshold: opts.Roster.AssignmentThreshold,
		},
		TeamSize:    opts.Selection.TeamSize,
		SubSize:     opts.Selection.SubSize,
		Temperature: opts.Selection.Temperature,
	}

	type candidate struct {
		seed   uint64
		result engine.Result
		gini   float64
	}

	workers := runtime.NumCPU()
	if workers > candidateCount {
		workers = candidateCount
	}
	seeds := make(chan uint64, candidateCount)
	for i := 0; i < candidateCount; i++ {
		seeds <- uint64(i + 1)
	}
	close(seeds)

	completed := atomic.NewInt32(0)
	var mu sync.Mutex
	var best *candidate
	var firstErr error

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seed := range seeds {
				genOpts := engine.GenerateOptions{
					Start:          start,
					Weeks:          12,
					Seed:           seed,
					ManagerOptions: managerOpts,
				}
				result, err := engine.Generate(ctx, people, genOpts)
				n := completed.Inc()
				log.Printf("seed search: %d/%d candidates evaluated", n, candidateCount)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}

				mainCounts := make(map[string]int, len(people))
				for _, a := range result.Schedule.Assignments {
					for _, id := range a.MainIDs {
						mainCounts[id]++
					}
				}
				rates := make([]constraint.PersonRate, 0, len(people))
				for _, p := range people {
					rates = append(rates, constraint.PersonRate{PersonID: p.ID, Rate: float64(mainCounts[p.ID])})
				}
				gini := constraint.Gini(rates)

				mu.Lock()
				if best == nil || gini < best.gini {
					best = &candidate{seed: seed, result: result, gini: gini}
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if best == nil {
		if firstErr != nil {
			return 0, engine.Result{}, firstErr
		}
		return 0, engine.Result{}, fmt.Errorf("no candidate seeds evaluated")
	}
	return best.seed, best.result, nil
}
