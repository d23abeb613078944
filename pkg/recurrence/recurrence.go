// Package recurrence computes execution instants for recurring rule schedules.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a schedule before it is stored or evaluated.
func Validate(schedule models.Schedule) error {
	if err := validate.Struct(schedule); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				fields = append(fields, fmt.Sprintf("%s failed on %s", strings.ToLower(fieldErr.Field()), fieldErr.Tag()))
			}

			return fmt.Errorf("%w: %s", ErrInvalidSchedule, strings.Join(fields, ", "))
		}

		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	if _, _, err := parseClock(schedule.Time); err != nil {
		return err
	}

	seen := make(map[int]bool, len(schedule.Weekdays))
	for _, day := range schedule.Weekdays {
		if seen[day] {
			return fmt.Errorf("%w: weekday %d listed twice", ErrInvalidSchedule, day)
		}

		seen[day] = true
	}

	if _, err := schedule.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %w", ErrInvalidSchedule, schedule.Timezone, err)
	}

	return nil
}

// Next returns the execution instant following from. The result is never
// before from.
//
// Weekly schedules jump a fixed 7*interval days; the weekday set does not pick
// the next matching day.
func Next(schedule models.Schedule, from time.Time) (time.Time, error) {
	if err := Validate(schedule); err != nil {
		return time.Time{}, err
	}

	loc, _ := schedule.Location()
	hour, minute, _ := parseClock(schedule.Time)

	next := step(schedule, from.In(loc), hour, minute)
	for next.Before(from) {
		next = step(schedule, next, hour, minute)
	}

	return next, nil
}

// First returns the initial execution instant of a rule starting at from: the
// schedule's slot on from's own day when it is still ahead, otherwise Next.
// Monthly schedules with a pinned day use that day of from's month.
func First(schedule models.Schedule, from time.Time) (time.Time, error) {
	if err := Validate(schedule); err != nil {
		return time.Time{}, err
	}

	loc, _ := schedule.Location()
	hour, minute, _ := parseClock(schedule.Time)
	local := from.In(loc)

	day := local.Day()
	if schedule.Type == models.ScheduleMonthly && schedule.DayOfMonth != nil {
		day = clampDay(local.Year(), local.Month(), *schedule.DayOfMonth)
	}

	slot := time.Date(local.Year(), local.Month(), day, hour, minute, 0, 0, loc)
	if !slot.Before(from) {
		return slot, nil
	}

	return Next(schedule, from)
}

// Preview returns the n execution instants following from.
func Preview(schedule models.Schedule, from time.Time, n int) ([]time.Time, error) {
	instants := make([]time.Time, 0, n)
	cursor := from

	for range n {
		next, err := Next(schedule, cursor)
		if err != nil {
			return nil, err
		}

		instants = append(instants, next)
		cursor = next
	}

	return instants, nil
}

func step(schedule models.Schedule, from time.Time, hour, minute int) time.Time {
	loc := from.Location()
	year, month, day := from.Date()

	switch schedule.Type {
	case models.ScheduleDaily:
		today := time.Date(year, month, day, hour, minute, 0, 0, loc)
		if today.After(from) {
			return today
		}

		return time.Date(year, month, day+schedule.Interval, hour, minute, 0, 0, loc)
	case models.ScheduleWeekly:
		return time.Date(year, month, day+7*schedule.Interval, hour, minute, 0, 0, loc)
	case models.ScheduleMonthly:
		target := time.Date(year, month+time.Month(schedule.Interval), 1, 0, 0, 0, 0, loc)

		pinned := day
		if schedule.DayOfMonth != nil {
			pinned = *schedule.DayOfMonth
		}

		return time.Date(target.Year(), target.Month(), clampDay(target.Year(), target.Month(), pinned), hour, minute, 0, 0, loc)
	case models.ScheduleYearly:
		targetYear := year + schedule.Interval

		return time.Date(targetYear, month, clampDay(targetYear, month, day), hour, minute, 0, 0, loc)
	default:
		// unreachable after Validate
		return from
	}
}

// clampDay limits day to the last day of the month.
func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}

	return day
}

func parseClock(clock string) (int, int, error) {
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSchedule, clock)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: time %q has an invalid hour", ErrInvalidSchedule, clock)
	}

	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q has an invalid minute", ErrInvalidSchedule, clock)
	}

	return hour, minute, nil
}
