package domain

import "time"

// YearDocument is the semantic content of the collaborator-owned,
// one-file-per-calendar-year persistence format described in spec.md §6.
// The core never reads or writes this shape from disk; it only defines
// the fields a collaborator's JSON encoder/decoder must round-trip
// faithfully, which is why every field here carries an explicit tag.
type YearDocument struct {
	Year         int              `json:"year"`
	LastModified time.Time        `json:"last_modified"`
	People       []PersonRecord   `json:"people"`
	Schedules    []ScheduleRecord `json:"schedules"`
}

// PersonRecord is the wire shape of a Person. Dates are ISO YYYY-MM-DD.
type PersonRecord struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Periods []PeriodRecord       `json:"periods"`
	Tags    []string             `json:"tags,omitempty"`
}

// PeriodRecord is the wire shape of a ParticipationPeriod.
type PeriodRecord struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

// ScheduleRecord is the wire shape of a Schedule.
type ScheduleRecord struct {
	ID          string             `json:"id"`
	Start       string             `json:"start"`
	Weeks       int                `json:"weeks"`
	Assignments []AssignmentRecord `json:"assignments"`
}

// AssignmentRecord is the wire shape of a single week's Assignment.
type AssignmentRecord struct {
	WeekStart      string             `json:"week_start"`
	MainIDs        []string           `json:"main_ids"`
	SubstituteIDs  []string           `json:"substitute_ids"`
	Scores         map[string]float64 `json:"scores,omitempty"`
	HasMentor      bool               `json:"has_mentor"`
	Comment        string             `json:"comment,omitempty"`
	IsEmergency    bool               `json:"is_emergency,omitempty"`
	ManuallyEdited bool               `json:"manually_edited,omitempty"`
}
