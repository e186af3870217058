package model

import (
	"fmt"
	"slices"
	"time"
)

// Schedule describes when a playlist is eligible to play.
// StartTime and EndTime are zero padded "HH:MM" in device local time.
type Schedule struct {
	Days      []int  `json:"days"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Active    bool   `json:"active"`
	Priority  int    `json:"priority,omitempty"`
}

func (s Schedule) HasDay(day time.Weekday) bool {
	return slices.Contains(s.Days, int(day))
}

// ClockString formats t as the "HH:MM" used by schedules.
func ClockString(t time.Time) string {
	return t.Format("15:04")
}

// Validate checks the shape of a schedule written by an operator.
func (s Schedule) Validate() error {
	for _, d := range s.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("day %d out of range 0-6", d)
		}
	}
	for _, v := range []string{s.StartTime, s.EndTime} {
		if _, err := time.Parse("15:04", v); err != nil || len(v) != 5 {
			return fmt.Errorf("time %q is not HH:MM", v)
		}
	}
	return nil
}
