// Package config loads the tunable constants every core component
// defaults to: Bayesian process/observation variance, drift correction,
// team/substitute sizes, experience thresholds, constraint thresholds,
// and selector temperature. It layers a TOML file over built-in
// defaults and then environment variables, using the koanf stack
// already present in the teacher's own dependency set rather than a
// single-shot TOML decode.
package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from every FAIRSHIFT_-prefixed environment
// variable considered during Load; the remainder is lowercased and its
// first underscore separates the section from the key
// (SELECTION_TEAM_SIZE becomes selection.team_size).
const EnvPrefix = "FAIRSHIFT_"

// Options holds every default constant spec.md §4 documents, grouped the
// way the core packages themselves group them.
type Options struct {
	Fairness   FairnessOptions   `koanf:"fairness"`
	Priority   PriorityOptions   `koanf:"priority"`
	Roster     RosterOptions     `koanf:"roster"`
	Selection  SelectionOptions  `koanf:"selection"`
	Constraint ConstraintOptions `koanf:"constraint"`
}

type FairnessOptions struct {
	ProcessVariance     float64 `koanf:"process_variance"`
	ObservationVariance float64 `koanf:"observation_variance"`
	DriftThreshold      float64 `koanf:"drift_threshold"`
	DriftAlpha          float64 `koanf:"drift_alpha"`
	InitialVariance     float64 `koanf:"initial_variance"`
	VarianceFloor       float64 `koanf:"variance_floor"`
	VarianceCeiling     float64 `koanf:"variance_ceiling"`
}

type PriorityOptions struct {
	Epsilon       float64 `koanf:"epsilon"`
	MentorPenalty float64 `koanf:"mentor_penalty"`
}

type RosterOptions struct {
	TenureThresholdDays int `koanf:"tenure_threshold_days"`
	AssignmentThreshold int `koanf:"assignment_threshold"`
}

type SelectionOptions struct {
	TeamSize    int     `koanf:"team_size"`
	SubSize     int     `koanf:"sub_size"`
	Temperature float64 `koanf:"temperature"`
}

type ConstraintOptions struct {
	GiniThreshold  float64 `koanf:"gini_threshold"`
	CVThreshold    float64 `koanf:"cv_threshold"`
	RatioThreshold float64 `koanf:"ratio_threshold"`
	ExpiryWeeks    int     `koanf:"expiry_weeks"`
	TopPenalty     float64 `koanf:"top_penalty"`
	BottomBoost    float64 `koanf:"bottom_boost"`
}

// Defaults returns spec.md's documented constants, matching the
// defaults each core package already falls back to on its own.
func Defaults() Options {
	return Options{
		Fairness: FairnessOptions{
			ProcessVariance:     0.005,
			ObservationVariance: 0.05,
			DriftThreshold:      0.03,
			DriftAlpha:          0.2,
			InitialVariance:     0.1,
			VarianceFloor:       1e-6,
			VarianceCeiling:     10.0,
		},
		Priority: PriorityOptions{
			Epsilon:       1e-3,
			MentorPenalty: 0.85,
		},
		Roster: RosterOptions{
			TenureThresholdDays: 28,
			AssignmentThreshold: 4,
		},
		Selection: SelectionOptions{
			TeamSize:    2,
			SubSize:     2,
			Temperature: 1.0,
		},
		Constraint: ConstraintOptions{
			GiniThreshold:  0.25,
			CVThreshold:    0.30,
			RatioThreshold: 0.80,
			ExpiryWeeks:    4,
			TopPenalty:     0.7,
			BottomBoost:    1.3,
		},
	}
}

// defaultsMap flattens Defaults() into the dotted-key form koanf's
// confmap provider expects, so the TOML file and environment layers
// only need to override what they actually change.
func defaultsMap(d Options) map[string]interface{} {
	return map[string]interface{}{
		"fairness.process_variance":     d.Fairness.ProcessVariance,
		"fairness.observation_variance": d.Fairness.ObservationVariance,
		"fairness.drift_threshold":      d.Fairness.DriftThreshold,
		"fairness.drift_alpha":          d.Fairness.DriftAlpha,
		"fairness.initial_variance":     d.Fairness.InitialVariance,
		"fairness.variance_floor":       d.Fairness.VarianceFloor,
		"fairness.variance_ceiling":     d.Fairness.VarianceCeiling,
		"priority.epsilon":              d.Priority.Epsilon,
		"priority.mentor_penalty":       d.Priority.MentorPenalty,
		"roster.tenure_threshold_days":  d.Roster.TenureThresholdDays,
		"roster.assignment_threshold":   d.Roster.AssignmentThreshold,
		"selection.team_size":           d.Selection.TeamSize,
		"selection.sub_size":            d.Selection.SubSize,
		"selection.temperature":         d.Selection.Temperature,
		"constraint.gini_threshold":     d.Constraint.GiniThreshold,
		"constraint.cv_threshold":       d.Constraint.CVThreshold,
		"constraint.ratio_threshold":    d.Constraint.RatioThreshold,
		"constraint.expiry_weeks":       d.Constraint.ExpiryWeeks,
		"constraint.top_penalty":        d.Constraint.TopPenalty,
		"constraint.bottom_boost":       d.Constraint.BottomBoost,
	}
}

// Load layers a TOML file at path over Defaults(), then environment
// variables prefixed FAIRSHIFT_ (e.g. FAIRSHIFT_SELECTION_TEAM_SIZE),
// and decodes the result with go-viper/mapstructure. An empty path skips
// the file layer; a missing file is an error (callers that want
// defaults-only should pass "").
func Load(path string) (Options, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(Defaults()), "."), nil); err != nil {
		return Options{}, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Options{}, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
			key = strings.Replace(key, "_", ".", 1)
			return key, v
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Options{}, fmt.Errorf("config: loading environment: %w", err)
	}

	var opts Options
	if err := k.UnmarshalWithConf("", &opts, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &opts,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	}); err != nil {
		return Options{}, fmt.Errorf("config: decoding: %w", err)
	}

	if err := Validate(opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate sanity-checks the defaults themselves (range checks on
// team/sub size, temperature, the tenure threshold, and the Gini and
// ratio thresholds; the CV threshold is not range-checked), distinct from the
// engine's own InvalidRange checks on a single generate call's
// arguments.
func Validate(o Options) error {
	if o.Selection.TeamSize < 1 {
		return fmt.Errorf("config: selection.team_size must be >= 1, got %d", o.Selection.TeamSize)
	}
	if o.Selection.SubSize < 0 {
		return fmt.Errorf("config: selection.sub_size must be >= 0, got %d", o.Selection.SubSize)
	}
	if o.Selection.Temperature <= 0 {
		return fmt.Errorf("config: selection.temperature must be > 0, got %f", o.Selection.Temperature)
	}
	if o.Constraint.GiniThreshold <= 0 || o.Constraint.GiniThreshold > 1 {
		return fmt.Errorf("config: constraint.gini_threshold must be in (0,1], got %f", o.Constraint.GiniThreshold)
	}
	if o.Constraint.RatioThreshold <= 0 || o.Constraint.RatioThreshold > 1 {
		return fmt.Errorf("config: constraint.ratio_threshold must be in (0,1], got %f", o.Constraint.RatioThreshold)
	}
	if o.Roster.TenureThresholdDays < 1 {
		return fmt.Errorf("config: roster.tenure_threshold_days must be >= 1, got %d", o.Roster.TenureThresholdDays)
	}
	return nil
}
