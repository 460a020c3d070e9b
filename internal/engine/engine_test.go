package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvane/fairshift/internal/constraint"
	"github.com/arvane/fairshift/internal/domain"
	"github.com/arvane/fairshift/internal/fairness"
	"github.com/arvane/fairshift/internal/manager"
	"github.com/arvane/fairshift/internal/roster"
)

func openPeople(n int, start time.Time) []domain.Person {
	people := make([]domain.Person, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		people[i] = domain.Person{
			ID:   id,
			Name: id,
			Periods: []domain.ParticipationPeriod{
				{Start: start},
			},
		}
	}
	return people
}

func baseOptions(start time.Time, weeks, seed int) GenerateOptions {
	return GenerateOptions{
		Start: start,
		Weeks: weeks,
		Seed:  uint64(seed),
		ManagerOptions: manager.Options{
			Fairness:    fairness.DefaultOptions(),
			Thresholds:  constraint.DefaultThresholds(),
			Experience:  roster.ExperienceOptions{},
			TeamSize:    2,
			SubSize:     2,
			Temperature: 1.0,
		},
	}
}

func mondayStart() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestGenerate_RejectsWeeksOutOfRange(t *testing.T) {
	people := openPeople(4, mondayStart())
	_, err := Generate(context.Background(), people, baseOptions(mondayStart(), 0, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = Generate(context.Background(), people, baseOptions(mondayStart(), 53, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestGenerate_RejectsEmptyPool(t *testing.T) {
	_, err := Generate(context.Background(), nil, baseOptions(mondayStart(), 4, 1))
	assert.ErrorIs(t, err, domain.ErrEmptyPool)
}

func TestGenerate_ProducesOneAssignmentPerWeek(t *testing.T) {
	people := openPeople(8, mondayStart())
	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 12, 42))
	require.NoError(t, err)

	assert.Len(t, result.Schedule.Assignments, 12)
	for i, a := range result.Schedule.Assignments {
		expected := mondayStart().AddDate(0, 0, 7*i)
		assert.True(t, a.WeekStart.Equal(expected))
		assert.LessOrEqual(t, len(a.MainIDs), 2)
		assert.LessOrEqual(t, len(a.SubstituteIDs), 2)
	}
}

func TestGenerate_NoBackToBackMainAssignment(t *testing.T) {
	people := openPeople(8, mondayStart())
	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 12, 42))
	require.NoError(t, err)

	for i := 1; i < len(result.Schedule.Assignments); i++ {
		prev := result.Schedule.Assignments[i-1].MainIDs
		curr := result.Schedule.Assignments[i].MainIDs
		for _, id := range curr {
			assert.NotContains(t, prev, id)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	people := openPeople(8, mondayStart())
	r1, err := Generate(context.Background(), people, baseOptions(mondayStart(), 12, 42))
	require.NoError(t, err)
	r2, err := Generate(context.Background(), people, baseOptions(mondayStart(), 12, 42))
	require.NoError(t, err)

	for i := range r1.Schedule.Assignments {
		assert.Equal(t, r1.Schedule.Assignments[i].MainIDs, r2.Schedule.Assignments[i].MainIDs)
		assert.Equal(t, r1.Schedule.Assignments[i].SubstituteIDs, r2.Schedule.Assignments[i].SubstituteIDs)
		assert.Equal(t, r1.Schedule.Assignments[i].Scores, r2.Schedule.Assignments[i].Scores)
	}
}

func TestGenerate_InsufficientPoolEmitsEmergencyWithoutEmptyPoolWarning(t *testing.T) {
	people := openPeople(1, mondayStart())
	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 4, 1))
	require.NoError(t, err)

	for _, a := range result.Schedule.Assignments {
		assert.True(t, a.IsEmergency)
		assert.Len(t, a.MainIDs, 1)
		assert.Empty(t, a.SubstituteIDs)
	}
}

func TestGenerate_ExcludesPersonAfterDeparture(t *testing.T) {
	people := openPeople(6, mondayStart())
	departure := mondayStart().AddDate(0, 0, 42)
	people[2].Periods[0].End = &departure

	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 12, 9))
	require.NoError(t, err)

	for i, a := range result.Schedule.Assignments {
		weekDate := mondayStart().AddDate(0, 0, 7*i)
		if !weekDate.Before(departure) {
			assert.NotContains(t, a.MainIDs, people[2].ID)
			assert.NotContains(t, a.SubstituteIDs, people[2].ID)
		}
	}
}

func TestReplaceInWeek_SwapsMainAssignee(t *testing.T) {
	people := openPeople(4, mondayStart())
	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 4, 3))
	require.NoError(t, err)

	peopleByID := map[string]domain.Person{}
	for _, p := range people {
		peopleByID[p.ID] = p
	}

	oldID := result.Schedule.Assignments[0].MainIDs[0]
	var newID string
	for _, p := range people {
		if p.ID != oldID && !contains(result.Schedule.Assignments[0].MainIDs, p.ID) {
			newID = p.ID
			break
		}
	}
	require.NotEmpty(t, newID)

	updated, err := ReplaceInWeek(result.Schedule, 0, oldID, newID, peopleByID, roster.ExperienceOptions{})
	require.NoError(t, err)
	assert.Contains(t, updated.Assignments[0].MainIDs, newID)
	assert.NotContains(t, updated.Assignments[0].MainIDs, oldID)
	assert.True(t, updated.Assignments[0].ManuallyEdited)
}

func TestReplaceInWeek_RejectsAlreadyPresentReplacement(t *testing.T) {
	people := openPeople(4, mondayStart())
	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 4, 3))
	require.NoError(t, err)

	peopleByID := map[string]domain.Person{}
	for _, p := range people {
		peopleByID[p.ID] = p
	}

	main := result.Schedule.Assignments[0].MainIDs
	require.Len(t, main, 2)

	_, err = ReplaceInWeek(result.Schedule, 0, main[0], main[1], peopleByID, roster.ExperienceOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidMutation)
}

func TestSwapPeopleGlobally_IsIdempotentUnderDoubleApplication(t *testing.T) {
	people := openPeople(8, mondayStart())
	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 8, 5))
	require.NoError(t, err)

	peopleByID := map[string]domain.Person{}
	for _, p := range people {
		peopleByID[p.ID] = p
	}

	once, err := SwapPeopleGlobally(result.Schedule, "a", "b", peopleByID)
	require.NoError(t, err)
	twice, err := SwapPeopleGlobally(once, "a", "b", peopleByID)
	require.NoError(t, err)

	for i := range result.Schedule.Assignments {
		assert.ElementsMatch(t, result.Schedule.Assignments[i].MainIDs, twice.Assignments[i].MainIDs)
	}
}

func TestSwapPeopleGlobally_RejectsUnknownID(t *testing.T) {
	people := openPeople(4, mondayStart())
	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 4, 3))
	require.NoError(t, err)

	peopleByID := map[string]domain.Person{}
	for _, p := range people {
		peopleByID[p.ID] = p
	}

	_, err = SwapPeopleGlobally(result.Schedule, "a", "nonexistent", peopleByID)
	assert.ErrorIs(t, err, domain.ErrInvalidMutation)
}

func TestHandlePersonDeletion_NeverAssignsDeletedPerson(t *testing.T) {
	people := openPeople(4, mondayStart())
	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 6, 11))
	require.NoError(t, err)

	updated := HandlePersonDeletion(result.Schedule, "b", nil, 2, 99)
	for _, a := range updated.Assignments {
		assert.NotContains(t, a.MainIDs, "b")
		assert.NotContains(t, a.SubstituteIDs, "b")
	}
}

func TestHandlePersonDeletion_RefillsFromReplacementPool(t *testing.T) {
	people := openPeople(2, mondayStart())
	result, err := Generate(context.Background(), people, baseOptions(mondayStart(), 4, 11))
	require.NoError(t, err)

	replacement := openPeople(3, mondayStart())[2:]
	updated := HandlePersonDeletion(result.Schedule, "a", replacement, 2, 99)

	for _, a := range updated.Assignments {
		assert.NotContains(t, a.MainIDs, "a")
		assert.Contains(t, a.MainIDs, "c")
	}
}

func contains(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
