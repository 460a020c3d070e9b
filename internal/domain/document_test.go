package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearDocument_RoundTripsThroughJSON(t *testing.T) {
	end := "2024-06-01"
	doc := YearDocument{
		Year:         2024,
		LastModified: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		People: []PersonRecord{
			{
				ID:   "alice",
				Name: "Alice",
				Periods: []PeriodRecord{
					{Start: "2023-01-01", End: &end},
				},
				Tags: []string{"team-a"},
			},
		},
		Schedules: []ScheduleRecord{
			{
				ID:    "sched-1",
				Start: "2024-01-01",
				Weeks: 1,
				Assignments: []AssignmentRecord{
					{
						WeekStart:     "2024-01-01",
						MainIDs:       []string{"alice"},
						SubstituteIDs: []string{},
						Scores:        map[string]float64{"alice": 1.23},
						HasMentor:     true,
					},
				},
			},
		},
	}

	encoded, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded YearDocument
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, doc.Year, decoded.Year)
	assert.True(t, doc.LastModified.Equal(decoded.LastModified))
	require.Len(t, decoded.People, 1)
	assert.Equal(t, doc.People[0].ID, decoded.People[0].ID)
	require.NotNil(t, decoded.People[0].Periods[0].End)
	assert.Equal(t, end, *decoded.People[0].Periods[0].End)
	assert.Equal(t, doc.People[0].Tags, decoded.People[0].Tags)
	require.Len(t, decoded.Schedules, 1)
	assert.Equal(t, doc.Schedules[0].Assignments[0].Scores, decoded.Schedules[0].Assignments[0].Scores)
	assert.True(t, decoded.Schedules[0].Assignments[0].HasMentor)
}

func TestPeriodRecord_OmitsEndWhenOpen(t *testing.T) {
	p := PeriodRecord{Start: "2023-01-01"}
	encoded, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "end")
}
