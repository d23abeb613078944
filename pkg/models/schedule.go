package models

import (
	"time"
)

// ScheduleType is the recurrence unit of a rule schedule.
type ScheduleType string

const (
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
	ScheduleYearly  ScheduleType = "yearly"
)

// Schedule describes when a recurring rule fires.
// Interval is only a frequency multiplier ("every N units"); the run cap lives on
// RecurringRule.MaxExecutions.
type Schedule struct {
	Type ScheduleType `json:"type"                   validate:"required,oneof=daily weekly monthly yearly"`

	// Interval multiplies the unit: every Interval days, weeks, months or years.
	Interval int `json:"interval"               validate:"min=1"`

	// Time is the time of day in HH:MM, evaluated in Timezone.
	Time string `json:"time"                   validate:"required"`

	// Weekdays is stored for weekly schedules (0 = Sunday). The next execution is
	// still a fixed 7*Interval day jump.
	Weekdays []int `json:"weekdays,omitempty"     validate:"omitempty,dive,min=0,max=6"`

	// DayOfMonth pins the day for monthly schedules.
	DayOfMonth *int `json:"day_of_month,omitempty" validate:"omitempty,min=1,max=31"`

	// Timezone is an IANA zone name; empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

// Location resolves the schedule timezone, defaulting to UTC.
func (s Schedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}

	return time.LoadLocation(s.Timezone)
}
