package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func uniformRates(n int, rate float64) []PersonRate {
	out := make([]PersonRate, n)
	for i := 0; i < n; i++ {
		out[i] = PersonRate{PersonID: string(rune('a' + i)), Rate: rate}
	}
	return out
}

func TestRate_FloorsDaysPresentAtOne(t *testing.T) {
	assert.Equal(t, 3.0, Rate(3, 0))
	assert.Equal(t, 1.5, Rate(3, 2))
}

func TestGini_ZeroForIdenticalRates(t *testing.T) {
	rates := uniformRates(8, 0.05)
	assert.Equal(t, 0.0, Gini(rates))
}

func TestGini_ZeroMeanIsZero(t *testing.T) {
	rates := uniformRates(4, 0)
	assert.Equal(t, 0.0, Gini(rates))
}

func TestGini_WithinUnitInterval(t *testing.T) {
	rates := []PersonRate{{PersonID: "a", Rate: 0}, {PersonID: "b", Rate: 1}, {PersonID: "c", Rate: 0.5}}
	g := Gini(rates)
	assert.GreaterOrEqual(t, g, 0.0)
	assert.LessOrEqual(t, g, 1.0)
}

func TestGini_InvariantUnderUniformScaling(t *testing.T) {
	rates := []PersonRate{{PersonID: "a", Rate: 0.1}, {PersonID: "b", Rate: 0.2}, {PersonID: "c", Rate: 0.4}}
	scaled := []PersonRate{{PersonID: "a", Rate: 0.3}, {PersonID: "b", Rate: 0.6}, {PersonID: "c", Rate: 1.2}}
	assert.InDelta(t, Gini(rates), Gini(scaled), 1e-9)
}

func TestCoefficientOfVariation_ZeroForIdenticalRates(t *testing.T) {
	rates := uniformRates(5, 0.1)
	assert.Equal(t, 0.0, CoefficientOfVariation(rates))
}

func TestCoefficientOfVariation_ZeroMeanIsZero(t *testing.T) {
	rates := uniformRates(3, 0)
	assert.Equal(t, 0.0, CoefficientOfVariation(rates))
}

func TestRateRatio_IdenticalRatesIsOne(t *testing.T) {
	rates := uniformRates(4, 0.2)
	assert.Equal(t, 1.0, RateRatio(rates))
}

func TestRateRatio_IgnoresZeroRates(t *testing.T) {
	rates := []PersonRate{{PersonID: "a", Rate: 0}, {PersonID: "b", Rate: 0.5}, {PersonID: "c", Rate: 1.0}}
	assert.InDelta(t, 0.5, RateRatio(rates), 1e-12)
}

func TestEvaluateGini_WarningThenError(t *testing.T) {
	th := DefaultThresholds()
	assert.Nil(t, EvaluateGini(0.2, th))

	warn := EvaluateGini(0.3, th)
	if assert.NotNil(t, warn) {
		assert.Equal(t, SeverityWarning, warn.Severity)
	}

	err := EvaluateGini(0.4, th)
	if assert.NotNil(t, err) {
		assert.Equal(t, SeverityError, err.Severity)
	}
}

func TestEvaluateRatio_BreachesBelowThreshold(t *testing.T) {
	th := DefaultThresholds()
	assert.Nil(t, EvaluateRatio(0.9, th))

	warn := EvaluateRatio(0.7, th)
	if assert.NotNil(t, warn) {
		assert.Equal(t, SeverityWarning, warn.Severity)
	}

	err := EvaluateRatio(0.4, th)
	if assert.NotNil(t, err) {
		assert.Equal(t, SeverityError, err.Severity)
	}
}

func TestRegisterCorrectiveActions_TopAndBottomQuartiles(t *testing.T) {
	rates := []PersonRate{
		{PersonID: "lowest", Rate: 0.01},
		{PersonID: "low", Rate: 0.02},
		{PersonID: "mid1", Rate: 0.05},
		{PersonID: "mid2", Rate: 0.05},
		{PersonID: "high", Rate: 0.09},
		{PersonID: "highest", Rate: 0.10},
		{PersonID: "mid3", Rate: 0.06},
		{PersonID: "mid4", Rate: 0.06},
	}
	actions := RegisterCorrectiveActions(rates, 3)

	byID := map[string]CorrectiveAction{}
	for _, a := range actions {
		byID[a.PersonID] = a
	}

	assert.Equal(t, BottomQuartileBoost, byID["lowest"].Multiplier)
	assert.Equal(t, BottomQuartileBoost, byID["low"].Multiplier)
	assert.Equal(t, TopQuartilePenalty, byID["highest"].Multiplier)
	assert.Equal(t, TopQuartilePenalty, byID["high"].Multiplier)
	_, midActioned := byID["mid1"]
	assert.False(t, midActioned)
}

func TestRegisterCorrectiveActions_TooFewPeopleYieldsNone(t *testing.T) {
	rates := uniformRates(3, 0.05)
	assert.Nil(t, RegisterCorrectiveActions(rates, 0))
}

func TestExpireActions_DropsAfterExpiryWeeks(t *testing.T) {
	actions := []CorrectiveAction{{PersonID: "a", Multiplier: TopQuartilePenalty, RegisteredAt: 0, ExpiresAfter: 4}}
	rates := []PersonRate{{PersonID: "a", Rate: 0.2}, {PersonID: "b", Rate: 0.01}}

	stillActive := ExpireActions(actions, 3, rates)
	assert.Len(t, stillActive, 1)

	expired := ExpireActions(actions, 4, rates)
	assert.Len(t, expired, 0)
}

func TestExpireActions_DropsWhenRateCrossesMean(t *testing.T) {
	actions := []CorrectiveAction{{PersonID: "a", Multiplier: TopQuartilePenalty, RegisteredAt: 0, ExpiresAfter: 4}}
	rates := []PersonRate{{PersonID: "a", Rate: 0.01}, {PersonID: "b", Rate: 0.2}}

	kept := ExpireActions(actions, 1, rates)
	assert.Len(t, kept, 0)
}

func TestActiveMultiplier_DefaultsToOne(t *testing.T) {
	assert.Equal(t, 1.0, ActiveMultiplier(nil, "anyone"))
}
