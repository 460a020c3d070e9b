package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_MapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", ErrInvalidRange)
	assert.Equal(t, KindInvalidRange, KindOf(wrapped))

	wrapped = fmt.Errorf("generate: %w", ErrEmptyPool)
	assert.Equal(t, KindEmptyPool, KindOf(wrapped))

	wrapped = fmt.Errorf("mutate: %w", ErrInvalidMutation)
	assert.Equal(t, KindInvalidMutation, KindOf(wrapped))
}

func TestKindOf_UnrecognizedErrorReturnsEmptyKind(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("something else")))
}

func TestPerson_EarliestStart_ZeroWhenNoPeriods(t *testing.T) {
	var p Person
	assert.True(t, p.EarliestStart().IsZero())
}
